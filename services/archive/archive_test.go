package archive

import (
	"path/filepath"
	"testing"
	"time"

	"sales_portal_backend/models"
)

func testArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := NewArchive(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func testSnapshot(region string, amount int64, generated time.Time) *models.Snapshot {
	return &models.Snapshot{
		Region:  region,
		Dataset: models.DatasetBookings,
		Summary: models.SnapshotSummary{
			TotalAmount:      amount,
			TotalUnits:       10,
			TotalOrders:      3,
			TotalTerritories: 2,
		},
		GeneratedAt: generated,
	}
}

func TestSaveAndRecentSnapshots(t *testing.T) {
	a := testArchive(t)

	base := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	for i, amount := range []int64{1000, 1500, 1702} {
		snap := testSnapshot("us", amount, base.Add(time.Duration(i)*time.Hour))
		if err := a.SaveSnapshot(snap); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
	// A different region must not bleed into the query.
	if err := a.SaveSnapshot(testSnapshot("ca", 500, base)); err != nil {
		t.Fatal(err)
	}

	records, err := a.RecentSnapshots(models.DatasetBookings, "us", 10)
	if err != nil {
		t.Fatalf("RecentSnapshots: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	// Newest first.
	if records[0].TotalAmount != 1702 {
		t.Errorf("newest TotalAmount = %d, want 1702", records[0].TotalAmount)
	}
	for _, r := range records {
		if r.Region != "us" || r.Dataset != models.DatasetBookings {
			t.Errorf("record leaked from another partition: %+v", r)
		}
	}
}

func TestRecentSnapshotsLimit(t *testing.T) {
	a := testArchive(t)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		if err := a.SaveSnapshot(testSnapshot("us", int64(i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	records, err := a.RecentSnapshots(models.DatasetBookings, "us", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}

func TestRecentSnapshotsEmpty(t *testing.T) {
	a := testArchive(t)

	records, err := a.RecentSnapshots(models.DatasetBookings, "us", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records from an empty archive", len(records))
	}
}

func TestPrune(t *testing.T) {
	a := testArchive(t)

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()
	if err := a.SaveSnapshot(testSnapshot("us", 100, old)); err != nil {
		t.Fatal(err)
	}
	if err := a.SaveSnapshot(testSnapshot("us", 200, recent)); err != nil {
		t.Fatal(err)
	}

	if err := a.Prune(time.Now().UTC().Add(-24 * time.Hour)); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	records, err := a.RecentSnapshots(models.DatasetBookings, "us", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].TotalAmount != 200 {
		t.Errorf("after prune: %+v, want only the recent record", records)
	}
}
