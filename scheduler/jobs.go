package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"sales_portal_backend/models"

	"github.com/go-co-op/gocron"
)

// Refresher is the slice of the sales data service the scheduler drives.
type Refresher interface {
	RefreshDataset(ctx context.Context, dataset string) error
	RefreshRate(ctx context.Context) models.RateQuote
}

// Job states. Failures never escape a job: a failed cycle logs, records
// its error, and rests back at idle with the cache as it was, ready for
// the next tick.
const (
	JobIdle    = "idle"
	JobRunning = "running"
)

// JobStatus is the observable state of one scheduled job.
type JobStatus struct {
	State       string    `json:"state"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Scheduler manages the background refresh jobs
type Scheduler struct {
	cron      *gocron.Scheduler
	refresher Refresher

	bookingsInterval   time.Duration
	openOrdersInterval time.Duration

	mu   sync.RWMutex
	jobs map[string]*JobStatus
}

// NewScheduler creates a new scheduler instance
func NewScheduler(refresher Refresher, bookingsInterval, openOrdersInterval time.Duration) *Scheduler {
	return &Scheduler{
		cron:               gocron.NewScheduler(time.UTC),
		refresher:          refresher,
		bookingsInterval:   bookingsInterval,
		openOrdersInterval: openOrdersInterval,
		jobs: map[string]*JobStatus{
			models.DatasetBookings:   {State: JobIdle},
			models.DatasetOpenOrders: {State: JobIdle},
		},
	}
}

// Start registers the repeating jobs and fires the one-shot startup run so
// the cache is never empty on first read.
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Populate everything once before the timers take over.
	go s.RunStartupRefresh()

	s.cron.Every(s.bookingsInterval).Do(func() {
		s.RunBookingsJob()
	})

	s.cron.Every(s.openOrdersInterval).Do(func() {
		s.RunOpenOrdersJob()
	})

	s.cron.StartAsync()
	log.Printf("Scheduler started (bookings every %v, open orders every %v)",
		s.bookingsInterval, s.openOrdersInterval)
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// RunStartupRefresh populates all caches immediately at process start.
func (s *Scheduler) RunStartupRefresh() {
	log.Println("Startup refresh: populating all caches...")
	s.RunBookingsJob()
	s.RunOpenOrdersJob()
	log.Println("Startup refresh complete")
}

// RunBookingsJob refreshes the exchange rate and the bookings dataset.
// The rate rides the fast job because both dashboards share it.
func (s *Scheduler) RunBookingsJob() {
	s.runJob(models.DatasetBookings, func(ctx context.Context) error {
		s.refresher.RefreshRate(ctx)
		return s.refresher.RefreshDataset(ctx, models.DatasetBookings)
	})
}

// RunOpenOrdersJob refreshes the open orders dataset on its slower cadence
// to keep source load low.
func (s *Scheduler) RunOpenOrdersJob() {
	s.runJob(models.DatasetOpenOrders, func(ctx context.Context) error {
		return s.refresher.RefreshDataset(ctx, models.DatasetOpenOrders)
	})
}

// runJob executes one cycle with Idle → Running → Idle transitions; a
// failed cycle passes back through idle with LastError set. Readers never
// observe more than "cache not updated this cycle".
func (s *Scheduler) runJob(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	status := s.jobs[name]
	if status.State == JobRunning {
		s.mu.Unlock()
		log.Printf("Job %s already running, skipping this tick", name)
		return
	}
	status.State = JobRunning
	status.LastRun = time.Now()
	s.mu.Unlock()

	err := fn(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	status.State = JobIdle
	if err != nil {
		// The failure is observable through LastError; the job is retried
		// automatically next tick.
		status.LastError = err.Error()
		log.Printf("Job %s finished with errors: %v", name, err)
		return
	}
	status.LastSuccess = time.Now()
	status.LastError = ""
}

// JobStatuses returns a copy of the current job states.
func (s *Scheduler) JobStatuses() map[string]JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]JobStatus, len(s.jobs))
	for name, status := range s.jobs {
		out[name] = *status
	}
	return out
}
