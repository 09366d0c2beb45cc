package archive

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sales_portal_backend/models"

	_ "github.com/mattn/go-sqlite3"
)

// SnapshotRecord is one archived snapshot's headline totals.
type SnapshotRecord struct {
	ID               int64     `json:"id"`
	Dataset          string    `json:"dataset"`
	Region           string    `json:"region"`
	TotalAmount      int64     `json:"total_amount"`
	TotalUnits       int64     `json:"total_units"`
	TotalOrders      int       `json:"total_orders"`
	TotalTerritories int       `json:"total_territories"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Archive persists the headline totals of every published snapshot to a
// local SQLite database, giving the dashboard a refresh history that
// survives restarts without touching the source systems.
type Archive struct {
	db *sql.DB
	mu sync.Mutex
}

// NewArchive opens (or creates) the archive database at path.
func NewArchive(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping archive: %w", err)
	}

	a := &Archive{db: db}
	if err := a.createTables(); err != nil {
		return nil, err
	}

	log.Printf("Snapshot archive initialized at %s", path)
	return a, nil
}

// Close closes the archive database.
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Archive) createTables() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	table := `
		CREATE TABLE IF NOT EXISTS snapshot_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			dataset VARCHAR NOT NULL,
			region VARCHAR NOT NULL,
			total_amount INTEGER NOT NULL,
			total_units INTEGER NOT NULL,
			total_orders INTEGER NOT NULL,
			total_territories INTEGER NOT NULL,
			generated_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := a.db.Exec(table); err != nil {
		return fmt.Errorf("failed to create snapshot_history table: %w", err)
	}

	index := `
		CREATE INDEX IF NOT EXISTS idx_history_lookup
		ON snapshot_history (dataset, region, generated_at)
	`
	if _, err := a.db.Exec(index); err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}
	return nil
}

// SaveSnapshot appends one published snapshot's totals to the history.
func (a *Archive) SaveSnapshot(snap *models.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.Exec(`
		INSERT INTO snapshot_history
			(dataset, region, total_amount, total_units, total_orders, total_territories, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.Dataset, snap.Region,
		snap.Summary.TotalAmount, snap.Summary.TotalUnits,
		snap.Summary.TotalOrders, snap.Summary.TotalTerritories,
		snap.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots returns the newest archived records for a region+dataset,
// most recent first.
func (a *Archive) RecentSnapshots(dataset, region string, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.Query(`
		SELECT id, dataset, region, total_amount, total_units, total_orders, total_territories, generated_at
		FROM snapshot_history
		WHERE dataset = ? AND region = ?
		ORDER BY generated_at DESC
		LIMIT ?`,
		dataset, region, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		var rec SnapshotRecord
		if err := rows.Scan(&rec.ID, &rec.Dataset, &rec.Region, &rec.TotalAmount,
			&rec.TotalUnits, &rec.TotalOrders, &rec.TotalTerritories, &rec.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes archived records older than the retention window.
func (a *Archive) Prune(olderThan time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	result, err := a.db.Exec(`DELETE FROM snapshot_history WHERE generated_at < ?`, olderThan)
	if err != nil {
		return fmt.Errorf("failed to prune snapshot history: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		log.Printf("Pruned %d archived snapshots", n)
	}
	return nil
}
