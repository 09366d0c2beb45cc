package salesdata

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"sales_portal_backend/config"
	"sales_portal_backend/models"
	"sales_portal_backend/services/cache"
	"sales_portal_backend/services/exchangerate"
)

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{SnapshotKey(models.DatasetBookings, config.RegionUS), "bookings_snapshot_us"},
		{SnapshotKey(models.DatasetOpenOrders, config.RegionCA), "open_orders_snapshot_ca"},
		{RawKey(models.DatasetBookings, config.RegionCA), "bookings_raw_ca"},
		{LastUpdatedKey(models.DatasetOpenOrders), "open_orders_last_updated"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %q, want %q", tt.got, tt.want)
		}
	}
}

// stubFetcher serves canned rows per region, or a canned error.
type stubFetcher struct {
	rows map[string][]models.OrderLine
	errs map[string]error
}

func (f stubFetcher) Fetch(ctx context.Context, region, dataset string) ([]models.OrderLine, error) {
	if err := f.errs[region]; err != nil {
		return nil, err
	}
	return f.rows[region], nil
}

// warmService builds a service over a pre-populated store so reads never
// reach a fetcher.
func warmService(store *cache.Store) *Service {
	return NewService(nil, store, exchangerate.NewResolver(nil, 0.72, time.Second),
		DefaultExclusions(), []string{config.RegionUS, config.RegionCA},
		15*time.Minute, 65*time.Minute)
}

func TestSnapshotServedFromCache(t *testing.T) {
	store := cache.NewStore()
	want := &models.Snapshot{
		Region:  config.RegionUS,
		Dataset: models.DatasetBookings,
		Summary: models.SnapshotSummary{TotalAmount: 1702},
	}
	store.Publish(SnapshotKey(models.DatasetBookings, config.RegionUS), want, time.Minute)

	svc := warmService(store)
	got, err := svc.Snapshot(context.Background(), models.DatasetBookings, config.RegionUS)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Snapshot returned %+v, want the published value", got)
	}
}

func TestRawServedFromCache(t *testing.T) {
	store := cache.NewStore()
	want := []models.OrderLine{{SalesOrder: "SO1", Territory: "Houston"}}
	store.Publish(RawKey(models.DatasetBookings, config.RegionUS), want, time.Minute)

	svc := warmService(store)
	got, err := svc.Raw(context.Background(), models.DatasetBookings, config.RegionUS)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].SalesOrder != "SO1" {
		t.Errorf("Raw returned %+v, want the published rows", got)
	}
}

func TestRateColdCacheResolves(t *testing.T) {
	store := cache.NewStore()
	svc := warmService(store)

	// Empty provider chain degrades to the fallback constant; the quote is
	// then cached for subsequent readers.
	quote := svc.Rate(context.Background())
	if quote.Rate != 0.72 || quote.Source != exchangerate.SourceFallback {
		t.Errorf("quote = %+v, want 0.72 fallback", quote)
	}

	if _, _, ok := store.Get(KeyFXRate); !ok {
		t.Error("resolved rate was not published to the cache")
	}
}

func TestRefreshRatePublishes(t *testing.T) {
	store := cache.NewStore()
	svc := warmService(store)

	quote := svc.RefreshRate(context.Background())
	if quote.Rate != 0.72 {
		t.Errorf("rate = %v, want fallback 0.72", quote.Rate)
	}

	value, _, ok := store.Get(KeyFXRate)
	if !ok {
		t.Fatal("RefreshRate did not publish")
	}
	if cached := value.(models.RateQuote); cached.Rate != quote.Rate {
		t.Errorf("cached rate = %v, want %v", cached.Rate, quote.Rate)
	}
}

func TestLastUpdated(t *testing.T) {
	store := cache.NewStore()
	svc := warmService(store)

	if _, ok := svc.LastUpdated(models.DatasetBookings); ok {
		t.Error("LastUpdated reported a timestamp before any refresh")
	}

	ts := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store.Publish(LastUpdatedKey(models.DatasetBookings), ts, time.Minute)

	got, ok := svc.LastUpdated(models.DatasetBookings)
	if !ok || !got.Equal(ts) {
		t.Errorf("LastUpdated = %v/%v, want %v/true", got, ok, ts)
	}
}

func TestRefreshDatasetIsolatesRegionFailure(t *testing.T) {
	store := cache.NewStore()

	// CA starts with a previously published cycle.
	oldSnap := &models.Snapshot{Region: config.RegionCA, Dataset: models.DatasetBookings}
	oldRaw := []models.OrderLine{{SalesOrder: "OLD1"}}
	store.PublishBatch(map[string]interface{}{
		SnapshotKey(models.DatasetBookings, config.RegionCA): oldSnap,
		RawKey(models.DatasetBookings, config.RegionCA):      oldRaw,
	}, time.Minute)
	_, caTS, _ := store.Get(SnapshotKey(models.DatasetBookings, config.RegionCA))

	fetcher := stubFetcher{
		rows: map[string][]models.OrderLine{
			config.RegionUS: {{
				SalesOrder: "SO1", CustomerNo: "ACME", HeaderTerr: "210",
				QtyOrdered: 2, UnitPrice: dec("100"), Discount: dec("0"),
			}},
		},
		errs: map[string]error{
			config.RegionCA: fmt.Errorf("%w: ca bookings query: timeout", ErrSourceUnavailable),
		},
	}
	svc := NewService(fetcher, store, exchangerate.NewResolver(nil, 0.72, time.Second),
		DefaultExclusions(), []string{config.RegionUS, config.RegionCA},
		15*time.Minute, 65*time.Minute)

	err := svc.RefreshDataset(context.Background(), models.DatasetBookings)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable from the failing region", err)
	}

	// The healthy region's entries moved.
	usValue, _, ok := store.Get(SnapshotKey(models.DatasetBookings, config.RegionUS))
	if !ok {
		t.Fatal("US snapshot not published")
	}
	if got := usValue.(*models.Snapshot).Summary.TotalAmount; got != 200 {
		t.Errorf("US TotalAmount = %d, want 200", got)
	}
	if _, _, ok := store.Get(RawKey(models.DatasetBookings, config.RegionUS)); !ok {
		t.Error("US raw rows not published")
	}

	// The failing region's entries are untouched, value and timestamp both.
	caValue, caTS2, _ := store.Get(SnapshotKey(models.DatasetBookings, config.RegionCA))
	if caValue != oldSnap {
		t.Error("CA snapshot was replaced despite the source failure")
	}
	if !caTS2.Equal(caTS) {
		t.Errorf("CA snapshot timestamp moved: %v -> %v", caTS, caTS2)
	}
	caRaw, _, _ := store.Get(RawKey(models.DatasetBookings, config.RegionCA))
	if rows := caRaw.([]models.OrderLine); len(rows) != 1 || rows[0].SalesOrder != "OLD1" {
		t.Errorf("CA raw rows changed: %+v", caRaw)
	}

	// Partial success still advances the dataset timestamp.
	if _, ok := svc.LastUpdated(models.DatasetBookings); !ok {
		t.Error("dataset timestamp did not advance after a partial success")
	}
}

func TestRefreshDatasetAllRegionsFail(t *testing.T) {
	store := cache.NewStore()
	fetcher := stubFetcher{
		errs: map[string]error{
			config.RegionUS: fmt.Errorf("%w: us", ErrSourceUnavailable),
			config.RegionCA: fmt.Errorf("%w: ca", ErrSourceUnavailable),
		},
	}
	svc := NewService(fetcher, store, exchangerate.NewResolver(nil, 0.72, time.Second),
		DefaultExclusions(), []string{config.RegionUS, config.RegionCA},
		15*time.Minute, 65*time.Minute)

	if err := svc.RefreshDataset(context.Background(), models.DatasetBookings); err == nil {
		t.Error("expected an error when every region fails")
	}
	if _, ok := svc.LastUpdated(models.DatasetBookings); ok {
		t.Error("dataset timestamp advanced with zero successful regions")
	}
}

func TestRateColdCacheNotifiesHook(t *testing.T) {
	store := cache.NewStore()
	svc := warmService(store)

	var quotes []models.RateQuote
	svc.SetRateHook(func(q models.RateQuote) {
		quotes = append(quotes, q)
	})

	svc.Rate(context.Background())
	if len(quotes) != 1 {
		t.Fatalf("hook fired %d times on a cold resolve, want 1", len(quotes))
	}

	// Warm reads serve the cache and must not re-notify.
	svc.Rate(context.Background())
	if len(quotes) != 1 {
		t.Errorf("hook fired %d times after a warm read, want 1", len(quotes))
	}
}

func TestPublishHook(t *testing.T) {
	store := cache.NewStore()
	svc := warmService(store)

	var seen []*models.Snapshot
	svc.SetPublishHook(func(snap *models.Snapshot) {
		seen = append(seen, snap)
	})

	snap := &models.Snapshot{Region: config.RegionUS, Dataset: models.DatasetBookings}
	svc.notifyPublished(snap)

	if len(seen) != 1 || seen[0] != snap {
		t.Errorf("hook saw %v, want the published snapshot", seen)
	}
}
