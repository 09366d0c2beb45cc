package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is one published cache slot together with its metadata.
type Entry struct {
	Key         string
	Value       interface{}
	TTL         time.Duration
	LastUpdated time.Time
}

// Stale reports whether the entry has outlived its advisory TTL. Stale
// entries are still served; callers surface staleness via LastUpdated.
func (e Entry) Stale(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.LastUpdated) > e.TTL
}

// Store is the process-wide cache all readers consult. A single scheduler
// writer publishes into it; any number of concurrent readers call Get.
// Values persist until the next publish overwrites them — a prolonged
// source outage degrades to visibly stale data, never to an empty result.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	group   singleflight.Group
}

// NewStore creates an empty cache store.
func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Publish atomically replaces the entry for a key and stamps it with the
// current time. Readers observe either the previous value or the new one,
// never a mix.
func (s *Store) Publish(key string, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key] = Entry{Key: key, Value: value, TTL: ttl, LastUpdated: time.Now()}
	s.mu.Unlock()
}

// PublishBatch publishes a set of entries under one write lock so paired
// values — a snapshot and its raw rows for the same region — become
// visible together with the same timestamp.
func (s *Store) PublishBatch(values map[string]interface{}, ttl time.Duration) {
	now := time.Now()
	s.mu.Lock()
	for key, value := range values {
		s.entries[key] = Entry{Key: key, Value: value, TTL: ttl, LastUpdated: now}
	}
	s.mu.Unlock()
}

// Get returns the current value and its last-updated time. It never blocks
// on a fetch; a miss simply reports found=false.
func (s *Store) Get(key string) (interface{}, time.Time, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, time.Time{}, false
	}
	return entry.Value, entry.LastUpdated, true
}

// GetOrFetch returns the cached value for a key, running fetchFn to
// populate it on a miss. Concurrent callers during a miss share a single
// in-flight fetch and all receive the resulting value, so a burst of cold
// readers causes exactly one call against the source.
func (s *Store) GetOrFetch(key string, ttl time.Duration, fetchFn func() (interface{}, error)) (interface{}, error) {
	if value, _, ok := s.Get(key); ok {
		return value, nil
	}

	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		// A sibling caller may have published while we waited on the flight.
		if value, _, ok := s.Get(key); ok {
			return value, nil
		}
		value, err := fetchFn()
		if err != nil {
			return nil, err
		}
		s.Publish(key, value, ttl)
		return value, nil
	})
	return value, err
}

// Entries returns a point-in-time copy of all entry metadata, without the
// values. Used by the status endpoint to report cache ages.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entry.Value = nil
		out = append(out, entry)
	}
	return out
}
