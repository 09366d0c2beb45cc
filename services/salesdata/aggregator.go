package salesdata

import (
	"sort"
	"strings"
	"time"

	"sales_portal_backend/models"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// lineQty returns the dataset-appropriate quantity for a line: the original
// ordered quantity for bookings, the remaining open quantity for open orders.
func lineQty(row models.OrderLine, dataset string) int64 {
	if dataset == models.DatasetOpenOrders {
		return row.OpenQty
	}
	return row.QtyOrdered
}

// lineAmount computes qty × price × (1 − disc/100) exactly.
func lineAmount(row models.OrderLine, dataset string) decimal.Decimal {
	qty := decimal.NewFromInt(lineQty(row, dataset))
	return qty.Mul(row.UnitPrice).Mul(oneHundred.Sub(row.Discount)).Div(oneHundred)
}

// ceil rounds a monetary total up to the next whole currency unit.
// Zero stays zero; rounding is never down or to nearest.
func ceil(d decimal.Decimal) int64 {
	return d.Ceil().IntPart()
}

// Aggregate rolls raw order lines into a Snapshot for one region+dataset.
// It is deterministic and side-effect free: rows failing an exclusion
// predicate are discarded, surviving rows are bucketed by resolved
// territory (and by salesman for open orders), and every monetary total is
// ceiling-rounded. Empty input yields an all-zero snapshot, not an error.
func Aggregate(rows []models.OrderLine, dataset, region string, excl Exclusions) *models.Snapshot {
	totalAmount := decimal.Zero
	var totalUnits int64
	totalLines := 0
	distinctOrders := make(map[string]bool)
	territoryTotals := make(map[string]decimal.Decimal)
	salesmanTotals := make(map[string]decimal.Decimal)
	var orderDate *time.Time

	for _, row := range rows {
		if excl.ExcludesCustomer(row.CustomerNo) {
			continue
		}
		if excl.ExcludesProductLine(row.ProductLine) {
			continue
		}
		if excl.ExcludesStatus(row.LineStatus, row.OrderType) {
			continue
		}

		territory := MapTerritory(ResolveTerritoryCode(row.CustTerr, row.HeaderTerr), region)
		amt := lineAmount(row, dataset)

		totalAmount = totalAmount.Add(amt)
		totalUnits += lineQty(row, dataset)
		totalLines++
		distinctOrders[row.SalesOrder] = true
		territoryTotals[territory] = territoryTotals[territory].Add(amt)

		if dataset == models.DatasetOpenOrders {
			salesman := strings.TrimSpace(row.Salesman)
			if salesman == "" {
				salesman = "Unassigned"
			}
			salesmanTotals[salesman] = salesmanTotals[salesman].Add(amt)
		}

		if orderDate == nil && dataset == models.DatasetBookings {
			d := row.OrderDate
			orderDate = &d
		}
	}

	snap := &models.Snapshot{
		Region:  region,
		Dataset: dataset,
		Summary: models.SnapshotSummary{
			OrderDate:        orderDate,
			TotalAmount:      ceil(totalAmount),
			TotalUnits:       totalUnits,
			TotalLines:       totalLines,
			TotalOrders:      len(distinctOrders),
			TotalTerritories: len(territoryTotals),
			TotalSalesmen:    len(salesmanTotals),
		},
		TerritoryRanking: rankBuckets(territoryTotals),
		GeneratedAt:      time.Now(),
	}

	if dataset == models.DatasetOpenOrders {
		snap.SalesmanRanking = rankBuckets(salesmanTotals)
	}

	return snap
}

// rankBuckets turns bucket totals into a ranking sorted descending by
// ceiling-rounded total. Equal totals order by label so the result is
// stable across refreshes.
func rankBuckets(totals map[string]decimal.Decimal) []models.RankEntry {
	entries := make([]models.RankEntry, 0, len(totals))
	for label, total := range totals {
		entries = append(entries, models.RankEntry{Label: label, Total: ceil(total)})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Total != entries[j].Total {
			return entries[i].Total > entries[j].Total
		}
		return entries[i].Label < entries[j].Label
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// MapLineTerritories fills in the mapped display territory on a slice of
// export lines and drops excluded ones, mirroring what Aggregate filters
// so raw export rows and snapshot totals describe the same population.
func MapLineTerritories(rows []models.OrderLine, region string, excl Exclusions) []models.OrderLine {
	out := make([]models.OrderLine, 0, len(rows))
	for _, row := range rows {
		if excl.ExcludesCustomer(row.CustomerNo) {
			continue
		}
		if excl.ExcludesProductLine(row.ProductLine) {
			continue
		}
		if excl.ExcludesStatus(row.LineStatus, row.OrderType) {
			continue
		}
		row.Region = region
		row.Territory = MapTerritory(ResolveTerritoryCode(row.CustTerr, row.HeaderTerr), region)
		out = append(out, row)
	}
	return out
}
