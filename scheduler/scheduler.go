package scheduler

// Package scheduler drives the background cache refresh pipeline.
// It owns two independently-timed repeating jobs plus a one-shot startup
// run:
// - Bookings snapshots + raw rows + CAD→USD rate, every 10 minutes
// - Open orders snapshots + raw rows, every 60 minutes
//
// Readers never wait on these jobs; they read the cache store the jobs
// publish into. The jobs are implemented in jobs.go
