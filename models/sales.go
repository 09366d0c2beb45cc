package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dataset identifiers for the two refresh categories.
const (
	DatasetBookings   = "bookings"
	DatasetOpenOrders = "open_orders"
)

// OrderLine is one raw sales order line item as read from a regional source.
// Column tags match the aliases used by the fetcher queries. Lines are
// immutable once read: the aggregator consumes them and the full slice is
// retained verbatim under the raw cache key for export consumers.
type OrderLine struct {
	Region       string          `gorm:"-" json:"region"`
	SalesOrder   string          `gorm:"column:sono" json:"sales_order"`
	LineNo       int             `gorm:"column:tranlineno" json:"line_no"`
	OrderDate    time.Time       `gorm:"column:ordate" json:"order_date"`
	CustomerNo   string          `gorm:"column:custno" json:"customer_no"`
	CustomerName string          `gorm:"column:company" json:"customer_name"`
	Item         string          `gorm:"column:item" json:"item"`
	Description  string          `gorm:"column:descrip" json:"description"`
	ProductLine  string          `gorm:"column:plinid" json:"product_line"`
	QtyOrdered   int64           `gorm:"column:origqtyord" json:"qty_ordered"`
	OpenQty      int64           `gorm:"column:qtyord" json:"open_qty"`
	QtyShipped   int64           `gorm:"column:qtyshp" json:"qty_shipped"`
	UnitPrice    decimal.Decimal `gorm:"column:price" json:"unit_price"`
	Discount     decimal.Decimal `gorm:"column:disc" json:"discount"`
	LineStatus   string          `gorm:"column:sostat" json:"line_status"`
	OrderStatus  string          `gorm:"column:order_status" json:"order_status"`
	HistoryFlag  string          `gorm:"column:currhist" json:"curr_hist"`
	OrderType    string          `gorm:"column:sotype" json:"order_type"`
	TranTerr     string          `gorm:"column:terr" json:"tran_terr"`
	HeaderTerr   string          `gorm:"column:header_terr" json:"so_mast_terr"`
	CustTerr     string          `gorm:"column:cust_terr" json:"cust_terr"`
	Salesman     string          `gorm:"column:salesmn" json:"salesman"`
	Location     string          `gorm:"column:loctid" json:"location"`
	RequestDate  *time.Time      `gorm:"column:rqdate" json:"request_date"`
	ShipDate     *time.Time      `gorm:"column:shipdate" json:"ship_date"`
	ShipVia      string          `gorm:"column:shipvia" json:"ship_via"`

	// Territory is the mapped display name, filled in after territory
	// resolution; it never comes from the source.
	Territory string `gorm:"-" json:"territory"`
}

// RankEntry is one bucket of a snapshot ranking.
type RankEntry struct {
	Label string `json:"label"`
	Total int64  `json:"total"`
	Rank  int    `json:"rank"`
}

// SnapshotSummary holds the rolled-up totals for one region+dataset.
// TotalAmount is in whole currency units, always ceiling-rounded.
type SnapshotSummary struct {
	OrderDate        *time.Time `json:"order_date,omitempty"`
	TotalAmount      int64      `json:"total_amount"`
	TotalUnits       int64      `json:"total_units"`
	TotalLines       int        `json:"total_lines"`
	TotalOrders      int        `json:"total_orders"`
	TotalTerritories int        `json:"total_territories"`
	TotalSalesmen    int        `json:"total_salesmen,omitempty"`
}

// Snapshot is the aggregated, ranked result for one region+dataset as of a
// refresh cycle. A refresh builds a new Snapshot; published ones are never
// mutated.
type Snapshot struct {
	Region           string          `json:"region"`
	Dataset          string          `json:"dataset"`
	Summary          SnapshotSummary `json:"summary"`
	TerritoryRanking []RankEntry     `json:"territory_ranking"`
	SalesmanRanking  []RankEntry     `json:"salesman_ranking,omitempty"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// RateQuote is a resolved currency conversion rate.
type RateQuote struct {
	Rate      float64   `json:"rate"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}
