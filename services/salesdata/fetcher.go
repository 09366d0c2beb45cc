package salesdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sales_portal_backend/models"

	"gorm.io/gorm"
)

// ErrSourceUnavailable marks a regional source that could not be reached or
// queried this cycle. Callers skip the region and keep serving the previous
// cache entries.
var ErrSourceUnavailable = errors.New("source unavailable")

const lineColumns = `tr.sono, tr.tranlineno, tr.ordate, tr.custno, cu.company,
	tr.item, tr.descrip, ic.plinid, tr.origqtyord, tr.qtyord, tr.qtyshp,
	tr.price, tr.disc, tr.sostat, sm.sostat AS order_status, tr.currhist,
	tr.sotype, tr.terr, sm.terr AS header_terr, cu.terr AS cust_terr,
	tr.salesmn, tr.loctid, tr.rqdate, tr.shipdate, sm.shipvia`

// Fetcher issues read-only line item queries against the regional source
// databases. It narrows rows with cheap declarative filters only; all
// aggregation, ranking, and exclusion-set logic lives in the aggregator.
type Fetcher struct {
	dbs     map[string]*gorm.DB
	timeout time.Duration
}

// NewFetcher creates a fetcher over one source connection per region.
func NewFetcher(dbs map[string]*gorm.DB, timeout time.Duration) *Fetcher {
	return &Fetcher{dbs: dbs, timeout: timeout}
}

// Fetch returns the raw order lines for a region and dataset.
func (f *Fetcher) Fetch(ctx context.Context, region, dataset string) ([]models.OrderLine, error) {
	if dataset == models.DatasetOpenOrders {
		return f.FetchOpenOrders(ctx, region)
	}
	return f.FetchBookings(ctx, region)
}

// FetchBookings returns today's booked order lines for a region: lines
// ordered today that are not voided, cancelled, historical, or of
// blanket/return type.
func (f *Fetcher) FetchBookings(ctx context.Context, region string) ([]models.OrderLine, error) {
	db, err := f.regionDB(region)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var rows []models.OrderLine
	err = db.WithContext(ctx).
		Table("sotran AS tr").
		Select(lineColumns).
		Joins("LEFT JOIN somast AS sm ON sm.sono = tr.sono").
		Joins("LEFT JOIN arcust AS cu ON cu.custno = tr.custno").
		Joins("LEFT JOIN icitem AS ic ON ic.item = tr.item").
		Where("tr.ordate = CURRENT_DATE").
		Where("tr.currhist <> 'X'").
		Where("tr.sostat NOT IN ('V','X')").
		Where("tr.sotype NOT IN ('B','R')").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %s bookings query: %v", ErrSourceUnavailable, region, err)
	}

	for i := range rows {
		rows[i].Region = region
	}
	return rows, nil
}

// FetchOpenOrders returns all currently open order lines for a region:
// remaining quantity above zero on orders that are not closed at either the
// line or header level, excluding blanket/return types. No date filter —
// open orders count regardless of age.
func (f *Fetcher) FetchOpenOrders(ctx context.Context, region string) ([]models.OrderLine, error) {
	db, err := f.regionDB(region)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var rows []models.OrderLine
	err = db.WithContext(ctx).
		Table("sotran AS tr").
		Select(lineColumns).
		Joins("INNER JOIN somast AS sm ON sm.sono = tr.sono").
		Joins("LEFT JOIN arcust AS cu ON cu.custno = tr.custno").
		Joins("LEFT JOIN icitem AS ic ON ic.item = tr.item").
		Where("tr.qtyord > 0").
		Where("tr.sostat NOT IN ('C','V','X')").
		Where("sm.sostat <> 'C'").
		Where("tr.sotype NOT IN ('B','R')").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %s open orders query: %v", ErrSourceUnavailable, region, err)
	}

	for i := range rows {
		rows[i].Region = region
	}
	return rows, nil
}

func (f *Fetcher) regionDB(region string) (*gorm.DB, error) {
	db, ok := f.dbs[region]
	if !ok || db == nil {
		return nil, fmt.Errorf("%w: no connection for region %q", ErrSourceUnavailable, region)
	}
	return db, nil
}
