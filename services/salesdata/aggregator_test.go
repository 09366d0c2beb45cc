package salesdata

import (
	"testing"
	"time"

	"sales_portal_backend/config"
	"sales_portal_backend/models"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func bookingLine(order, custno, headerTerr string, qty int64, price, disc string) models.OrderLine {
	return models.OrderLine{
		SalesOrder: order,
		OrderDate:  time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		CustomerNo: custno,
		QtyOrdered: qty,
		UnitPrice:  dec(price),
		Discount:   dec(disc),
		HeaderTerr: headerTerr,
	}
}

func TestAggregateDiscountedTotals(t *testing.T) {
	// Two lines on one order, both at 5% discount:
	// 4 x 219.05 x 0.95 = 832.39 and 4 x 228.80 x 0.95 = 869.44,
	// summing to 1701.83 which ceilings to 1702.
	rows := []models.OrderLine{
		bookingLine("SO1001", "ACME", "210", 4, "219.05", "5"),
		bookingLine("SO1001", "ACME", "210", 4, "228.80", "5"),
	}

	snap := Aggregate(rows, models.DatasetBookings, config.RegionUS, DefaultExclusions())

	if snap.Summary.TotalAmount != 1702 {
		t.Errorf("TotalAmount = %d, want 1702", snap.Summary.TotalAmount)
	}
	if snap.Summary.TotalUnits != 8 {
		t.Errorf("TotalUnits = %d, want 8", snap.Summary.TotalUnits)
	}
	if snap.Summary.TotalLines != 2 {
		t.Errorf("TotalLines = %d, want 2", snap.Summary.TotalLines)
	}
	if snap.Summary.TotalOrders != 1 {
		t.Errorf("TotalOrders = %d, want 1", snap.Summary.TotalOrders)
	}

	if len(snap.TerritoryRanking) != 1 {
		t.Fatalf("TerritoryRanking has %d entries, want 1", len(snap.TerritoryRanking))
	}
	top := snap.TerritoryRanking[0]
	if top.Label != "Houston" || top.Total != 1702 || top.Rank != 1 {
		t.Errorf("top bucket = %+v, want Houston/1702/1", top)
	}
}

func TestAggregateZeroDiscount(t *testing.T) {
	rows := []models.OrderLine{
		bookingLine("SO2001", "ACME", "211", 2, "10.50", "0"),
	}

	snap := Aggregate(rows, models.DatasetBookings, config.RegionUS, DefaultExclusions())

	if snap.Summary.TotalAmount != 21 {
		t.Errorf("TotalAmount = %d, want 21", snap.Summary.TotalAmount)
	}
}

func TestAggregateCentralBillingOverride(t *testing.T) {
	// A customer flagged for central billing keeps its own territory even
	// when the order header says otherwise.
	row := bookingLine("SO3001", "ACME", "210", 1, "100", "0")
	row.CustTerr = "900"

	snap := Aggregate([]models.OrderLine{row}, models.DatasetBookings, config.RegionUS, DefaultExclusions())

	if len(snap.TerritoryRanking) != 1 {
		t.Fatalf("TerritoryRanking has %d entries, want 1", len(snap.TerritoryRanking))
	}
	if got := snap.TerritoryRanking[0].Label; got != "Central Billing" {
		t.Errorf("territory = %q, want Central Billing", got)
	}
}

func TestAggregateExclusions(t *testing.T) {
	excluded := []models.OrderLine{
		bookingLine("SO1", "W1VAN", "210", 1, "50", "0"),
		bookingLine("SO2", "twgmarket ", "210", 1, "50", "0"),
	}
	taxed := bookingLine("SO3", "ACME", "210", 1, "50", "0")
	taxed.ProductLine = "TAX"
	voided := bookingLine("SO4", "ACME", "210", 1, "50", "0")
	voided.LineStatus = "V"
	blanket := bookingLine("SO5", "ACME", "210", 1, "50", "0")
	blanket.OrderType = "B"
	kept := bookingLine("SO6", "ACME", "210", 3, "50", "0")

	rows := append(excluded, taxed, voided, blanket, kept)
	snap := Aggregate(rows, models.DatasetBookings, config.RegionUS, DefaultExclusions())

	if snap.Summary.TotalLines != 1 {
		t.Errorf("TotalLines = %d, want 1 (only the clean line survives)", snap.Summary.TotalLines)
	}
	if snap.Summary.TotalAmount != 150 {
		t.Errorf("TotalAmount = %d, want 150", snap.Summary.TotalAmount)
	}
	if snap.Summary.TotalOrders != 1 {
		t.Errorf("TotalOrders = %d, want 1", snap.Summary.TotalOrders)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	snap := Aggregate(nil, models.DatasetBookings, config.RegionUS, DefaultExclusions())

	if snap.Summary.TotalAmount != 0 || snap.Summary.TotalUnits != 0 ||
		snap.Summary.TotalLines != 0 || snap.Summary.TotalOrders != 0 {
		t.Errorf("empty input produced non-zero summary: %+v", snap.Summary)
	}
	if len(snap.TerritoryRanking) != 0 {
		t.Errorf("empty input produced %d ranking entries", len(snap.TerritoryRanking))
	}
	if snap.Summary.OrderDate != nil {
		t.Error("empty input should have no order date")
	}
}

func TestAggregateRankingOrder(t *testing.T) {
	rows := []models.OrderLine{
		bookingLine("SO1", "A1", "210", 1, "300", "0"), // Houston 300
		bookingLine("SO2", "A2", "211", 1, "500", "0"), // Dallas 500
		bookingLine("SO3", "A3", "312", 1, "300", "0"), // Atlanta 300, ties Houston
		bookingLine("SO4", "A4", "999", 1, "100", "0"), // unmapped -> Others
	}

	snap := Aggregate(rows, models.DatasetBookings, config.RegionUS, DefaultExclusions())

	want := []models.RankEntry{
		{Label: "Dallas", Total: 500, Rank: 1},
		{Label: "Atlanta", Total: 300, Rank: 2},
		{Label: "Houston", Total: 300, Rank: 3},
		{Label: "Others", Total: 100, Rank: 4},
	}
	if len(snap.TerritoryRanking) != len(want) {
		t.Fatalf("ranking has %d entries, want %d", len(snap.TerritoryRanking), len(want))
	}
	for i, w := range want {
		if snap.TerritoryRanking[i] != w {
			t.Errorf("ranking[%d] = %+v, want %+v", i, snap.TerritoryRanking[i], w)
		}
	}
	if snap.Summary.TotalTerritories != 4 {
		t.Errorf("TotalTerritories = %d, want 4", snap.Summary.TotalTerritories)
	}
}

func TestAggregateOpenOrders(t *testing.T) {
	// Open orders measure the remaining open quantity, not the original
	// order quantity, and additionally rank by salesman.
	row1 := models.OrderLine{
		SalesOrder: "SO1", CustomerNo: "ACME", HeaderTerr: "210",
		QtyOrdered: 10, OpenQty: 4,
		UnitPrice: dec("25"), Discount: dec("0"),
		Salesman: "JDOE",
	}
	row2 := models.OrderLine{
		SalesOrder: "SO2", CustomerNo: "BETA", HeaderTerr: "211",
		QtyOrdered: 6, OpenQty: 2,
		UnitPrice: dec("10"), Discount: dec("0"),
		Salesman: "  ",
	}

	snap := Aggregate([]models.OrderLine{row1, row2}, models.DatasetOpenOrders, config.RegionUS, DefaultExclusions())

	if snap.Summary.TotalUnits != 6 {
		t.Errorf("TotalUnits = %d, want 6 (open quantities)", snap.Summary.TotalUnits)
	}
	if snap.Summary.TotalAmount != 120 {
		t.Errorf("TotalAmount = %d, want 120", snap.Summary.TotalAmount)
	}
	if len(snap.SalesmanRanking) != 2 {
		t.Fatalf("SalesmanRanking has %d entries, want 2", len(snap.SalesmanRanking))
	}
	if snap.SalesmanRanking[0].Label != "JDOE" {
		t.Errorf("top salesman = %q, want JDOE", snap.SalesmanRanking[0].Label)
	}
	if snap.SalesmanRanking[1].Label != "Unassigned" {
		t.Errorf("blank salesman bucket = %q, want Unassigned", snap.SalesmanRanking[1].Label)
	}
	if snap.Summary.OrderDate != nil {
		t.Error("open orders snapshot should not carry an order date")
	}
}

func TestResolveTerritoryCode(t *testing.T) {
	tests := []struct {
		custTerr   string
		headerTerr string
		want       string
	}{
		{"900", "210", "900"},
		{" 900 ", "210", "900"},
		{"100", "210", "210"},
		{"", "211", "211"},
		{"", "", ""},
	}

	for _, tt := range tests {
		if got := ResolveTerritoryCode(tt.custTerr, tt.headerTerr); got != tt.want {
			t.Errorf("ResolveTerritoryCode(%q, %q) = %q, want %q",
				tt.custTerr, tt.headerTerr, got, tt.want)
		}
	}
}

func TestMapTerritory(t *testing.T) {
	tests := []struct {
		code   string
		region string
		want   string
	}{
		{"210", config.RegionUS, "Houston"},
		{"000", config.RegionUS, "LA"},
		{"001", config.RegionUS, "LA"},
		{"900", config.RegionUS, "Central Billing"},
		{"502", config.RegionCA, "Toronto"},
		{"210", config.RegionCA, "Others"},
		{"777", config.RegionUS, "Others"},
		{"", config.RegionUS, "Others"},
	}

	for _, tt := range tests {
		if got := MapTerritory(tt.code, tt.region); got != tt.want {
			t.Errorf("MapTerritory(%q, %q) = %q, want %q", tt.code, tt.region, got, tt.want)
		}
	}
}

func TestMapLineTerritories(t *testing.T) {
	rows := []models.OrderLine{
		bookingLine("SO1", "ACME", "210", 1, "50", "0"),
		bookingLine("SO2", "W1VAN", "210", 1, "50", "0"),
	}

	out := MapLineTerritories(rows, config.RegionUS, DefaultExclusions())

	if len(out) != 1 {
		t.Fatalf("got %d rows, want 1 (excluded customer dropped)", len(out))
	}
	if out[0].Territory != "Houston" {
		t.Errorf("Territory = %q, want Houston", out[0].Territory)
	}
	if out[0].Region != config.RegionUS {
		t.Errorf("Region = %q, want %q", out[0].Region, config.RegionUS)
	}
}
