package salesdata

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"sales_portal_backend/models"
	"sales_portal_backend/services/cache"
	"sales_portal_backend/services/exchangerate"
)

// KeyFXRate is the cache key for the current CAD→USD quote.
const KeyFXRate = "fx_rate"

// SnapshotKey returns the cache key for a region's dashboard snapshot.
func SnapshotKey(dataset, region string) string {
	return fmt.Sprintf("%s_snapshot_%s", dataset, region)
}

// RawKey returns the cache key for a region's raw export rows.
func RawKey(dataset, region string) string {
	return fmt.Sprintf("%s_raw_%s", dataset, region)
}

// LastUpdatedKey returns the cache key for a dataset's refresh timestamp.
func LastUpdatedKey(dataset string) string {
	return fmt.Sprintf("%s_last_updated", dataset)
}

// LineFetcher is the slice of the fetcher the service needs. *Fetcher is
// the production implementation.
type LineFetcher interface {
	Fetch(ctx context.Context, region, dataset string) ([]models.OrderLine, error)
}

// Service owns the fetch → aggregate → publish cycle and is the only thing
// readers and the scheduler talk to. Reads come from the cache store; a
// genuinely cold key triggers one synchronous backfill shared across
// concurrent callers.
type Service struct {
	fetcher  LineFetcher
	store    *cache.Store
	resolver *exchangerate.Resolver
	excl     Exclusions
	regions  []string

	bookingsTTL   time.Duration
	openOrdersTTL time.Duration

	mu          sync.RWMutex
	onPublished func(*models.Snapshot)
	onRate      func(models.RateQuote)
}

// NewService wires the fetcher, aggregation exclusions, cache store, and
// rate resolver together.
func NewService(fetcher LineFetcher, store *cache.Store, resolver *exchangerate.Resolver,
	excl Exclusions, regions []string, bookingsTTL, openOrdersTTL time.Duration) *Service {
	return &Service{
		fetcher:       fetcher,
		store:         store,
		resolver:      resolver,
		excl:          excl,
		regions:       regions,
		bookingsTTL:   bookingsTTL,
		openOrdersTTL: openOrdersTTL,
	}
}

// SetPublishHook registers a callback invoked after each snapshot publish.
// The archive writer and the websocket hub hang off this.
func (s *Service) SetPublishHook(fn func(*models.Snapshot)) {
	s.mu.Lock()
	s.onPublished = fn
	s.mu.Unlock()
}

func (s *Service) notifyPublished(snap *models.Snapshot) {
	s.mu.RLock()
	fn := s.onPublished
	s.mu.RUnlock()
	if fn != nil {
		fn(snap)
	}
}

// SetRateHook registers a callback invoked after each rate publish.
func (s *Service) SetRateHook(fn func(models.RateQuote)) {
	s.mu.Lock()
	s.onRate = fn
	s.mu.Unlock()
}

func (s *Service) notifyRate(quote models.RateQuote) {
	s.mu.RLock()
	fn := s.onRate
	s.mu.RUnlock()
	if fn != nil {
		fn(quote)
	}
}

func (s *Service) ttlFor(dataset string) time.Duration {
	if dataset == models.DatasetOpenOrders {
		return s.openOrdersTTL
	}
	return s.bookingsTTL
}

// Regions returns the configured region identifiers.
func (s *Service) Regions() []string {
	return s.regions
}

// refreshRegion runs one full cycle for a region+dataset and publishes the
// snapshot and its raw rows together. On a source failure nothing is
// written and the previous entries stay authoritative.
func (s *Service) refreshRegion(ctx context.Context, dataset, region string) (*models.Snapshot, error) {
	rows, err := s.fetcher.Fetch(ctx, region, dataset)
	if err != nil {
		return nil, err
	}

	snap := Aggregate(rows, dataset, region, s.excl)
	raw := MapLineTerritories(rows, region, s.excl)

	ttl := s.ttlFor(dataset)
	s.store.PublishBatch(map[string]interface{}{
		SnapshotKey(dataset, region): snap,
		RawKey(dataset, region):      raw,
	}, ttl)

	log.Printf("%s %s snapshot published: $%d across %d territories (%d raw rows)",
		strings.ToUpper(region), dataset, snap.Summary.TotalAmount,
		snap.Summary.TotalTerritories, len(rows))

	s.notifyPublished(snap)
	return snap, nil
}

// RefreshDataset refreshes every region for a dataset, regions in parallel
// since their sources are independent. A failing region is logged and
// skipped without touching its cache entries or aborting the sibling; the
// dataset timestamp moves only when at least one region succeeded.
func (s *Service) RefreshDataset(ctx context.Context, dataset string) error {
	var wg sync.WaitGroup
	errs := make([]error, len(s.regions))
	succeeded := make([]bool, len(s.regions))

	for i, region := range s.regions {
		wg.Add(1)
		go func(i int, region string) {
			defer wg.Done()
			if _, err := s.refreshRegion(ctx, dataset, region); err != nil {
				log.Printf("%s %s refresh failed, keeping stale cache: %v",
					strings.ToUpper(region), dataset, err)
				errs[i] = err
				return
			}
			succeeded[i] = true
		}(i, region)
	}
	wg.Wait()

	for _, ok := range succeeded {
		if ok {
			s.store.Publish(LastUpdatedKey(dataset), time.Now(), s.ttlFor(dataset))
			break
		}
	}

	return errors.Join(errs...)
}

// RefreshRate resolves the current exchange rate and publishes it. The
// resolver degrades to the constant fallback, so this always publishes.
func (s *Service) RefreshRate(ctx context.Context) models.RateQuote {
	quote := s.resolver.Resolve(ctx)
	s.store.Publish(KeyFXRate, quote, s.openOrdersTTL)
	s.notifyRate(quote)
	return quote
}

// Snapshot returns the cached snapshot for a region+dataset, backfilling
// synchronously on a cold cache. Concurrent cold readers share one fetch.
func (s *Service) Snapshot(ctx context.Context, dataset, region string) (*models.Snapshot, error) {
	key := SnapshotKey(dataset, region)
	value, err := s.store.GetOrFetch(key, s.ttlFor(dataset), func() (interface{}, error) {
		log.Printf("%s cache miss, running synchronous fetch", key)
		snap, err := s.refreshRegion(ctx, dataset, region)
		if err != nil {
			return nil, err
		}
		s.store.Publish(LastUpdatedKey(dataset), time.Now(), s.ttlFor(dataset))
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*models.Snapshot), nil
}

// Raw returns the cached raw export rows for a region+dataset, with the
// same cold-cache backfill behavior as Snapshot.
func (s *Service) Raw(ctx context.Context, dataset, region string) ([]models.OrderLine, error) {
	key := RawKey(dataset, region)
	value, err := s.store.GetOrFetch(key, s.ttlFor(dataset), func() (interface{}, error) {
		log.Printf("%s cache miss, running synchronous fetch", key)
		if _, err := s.refreshRegion(ctx, dataset, region); err != nil {
			return nil, err
		}
		raw, _, _ := s.store.Get(key)
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]models.OrderLine), nil
}

// Rate returns the cached exchange rate quote, resolving one synchronously
// on a cold cache. The result is always usable — worst case the fallback.
func (s *Service) Rate(ctx context.Context) models.RateQuote {
	value, err := s.store.GetOrFetch(KeyFXRate, s.openOrdersTTL, func() (interface{}, error) {
		quote := s.resolver.Resolve(ctx)
		s.notifyRate(quote)
		return quote, nil
	})
	if err != nil {
		// Unreachable: the resolve fn never errors. Kept for safety.
		return s.resolver.Resolve(ctx)
	}
	return value.(models.RateQuote)
}

// LastUpdated returns the dataset's refresh timestamp, if any cycle has
// completed for it.
func (s *Service) LastUpdated(dataset string) (time.Time, bool) {
	value, _, ok := s.store.Get(LastUpdatedKey(dataset))
	if !ok {
		return time.Time{}, false
	}
	ts, ok := value.(time.Time)
	return ts, ok
}
