package controllers

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"sales_portal_backend/config"
	"sales_portal_backend/models"
	"sales_portal_backend/scheduler"
	"sales_portal_backend/services/archive"
	"sales_portal_backend/services/cache"
	"sales_portal_backend/services/salesdata"
	"sales_portal_backend/services/stream"

	"github.com/gin-gonic/gin"
)

// SalesController serves the dashboard and export consumers from the cache.
// Handlers never query the sources directly; the only time a request waits
// on a source is a genuinely cold cache backfill.
type SalesController struct {
	service *salesdata.Service
	store   *cache.Store
	jobs    *scheduler.Scheduler
	history *archive.Archive
	hub     *stream.Hub
}

// NewSalesController creates a new sales controller
func NewSalesController(service *salesdata.Service, store *cache.Store,
	jobs *scheduler.Scheduler, history *archive.Archive, hub *stream.Hub) *SalesController {
	return &SalesController{
		service: service,
		store:   store,
		jobs:    jobs,
		history: history,
		hub:     hub,
	}
}

// buildRegionData shapes a snapshot for the dashboard payload. For Canada
// it adds USD equivalents (ceiling-rounded) to every monetary figure.
func buildRegionData(snap *models.Snapshot, rate float64, isCanada bool) gin.H {
	if snap == nil {
		return gin.H{
			"total_amount":      0,
			"total_amount_usd":  0,
			"total_units":       0,
			"total_orders":      0,
			"total_territories": 0,
			"total_lines":       0,
			"territory_ranking": []gin.H{},
			"salesman_ranking":  []gin.H{},
			"order_date":        nil,
		}
	}

	toUSD := func(total int64) int64 {
		return int64(math.Ceil(float64(total) * rate))
	}

	rankingData := func(entries []models.RankEntry) []gin.H {
		out := make([]gin.H, 0, len(entries))
		for _, e := range entries {
			item := gin.H{"label": e.Label, "total": e.Total, "rank": e.Rank}
			if isCanada && rate > 0 {
				item["total_usd"] = toUSD(e.Total)
			}
			out = append(out, item)
		}
		return out
	}

	data := gin.H{
		"total_amount":      snap.Summary.TotalAmount,
		"total_amount_usd":  int64(0),
		"total_units":       snap.Summary.TotalUnits,
		"total_orders":      snap.Summary.TotalOrders,
		"total_territories": snap.Summary.TotalTerritories,
		"total_lines":       snap.Summary.TotalLines,
		"territory_ranking": rankingData(snap.TerritoryRanking),
		"salesman_ranking":  rankingData(snap.SalesmanRanking),
		"order_date":        snap.Summary.OrderDate,
		"generated_at":      snap.GeneratedAt,
	}

	if isCanada && rate > 0 {
		data["total_amount_usd"] = toUSD(snap.Summary.TotalAmount)
	}

	return data
}

// getDashboard assembles the dashboard payload for a dataset: both regions
// by default, one when ?region= narrows it.
func (sc *SalesController) getDashboard(c *gin.Context, dataset string) {
	ctx := c.Request.Context()

	regions := sc.service.Regions()
	if region := c.Query("region"); region != "" {
		regions = []string{region}
	}

	quote := sc.service.Rate(ctx)

	payload := gin.H{"dataset": dataset, "cad_rate": quote}
	anyLoaded := false
	for _, region := range regions {
		snap, err := sc.service.Snapshot(ctx, dataset, region)
		if err != nil {
			log.Printf("Dashboard: %s %s snapshot unavailable: %v", region, dataset, err)
		} else {
			anyLoaded = true
		}
		payload[region] = buildRegionData(snap, quote.Rate, region == config.RegionCA)
	}

	if ts, ok := sc.service.LastUpdated(dataset); ok {
		payload["last_updated"] = ts
	} else {
		payload["last_updated"] = nil
	}

	// Readers get a soft error message, never an HTTP failure; stale data
	// remains served with its timestamp.
	if !anyLoaded {
		payload["error"] = "Unable to load data. Please try again shortly."
	} else {
		payload["error"] = nil
	}

	c.JSON(http.StatusOK, payload)
}

// GetBookings returns the bookings dashboard payload
// GET /api/v1/sales/bookings
func (sc *SalesController) GetBookings(c *gin.Context) {
	sc.getDashboard(c, models.DatasetBookings)
}

// GetOpenOrders returns the open orders dashboard payload
// GET /api/v1/sales/open-orders
func (sc *SalesController) GetOpenOrders(c *gin.Context) {
	sc.getDashboard(c, models.DatasetOpenOrders)
}

// getRaw serves the cached raw export rows for a dataset.
func (sc *SalesController) getRaw(c *gin.Context, dataset string) {
	ctx := c.Request.Context()
	region := c.Query("region")

	regions := sc.service.Regions()
	if region != "" {
		regions = []string{region}
	}

	payload := gin.H{}
	total := 0
	for _, r := range regions {
		rows, err := sc.service.Raw(ctx, dataset, r)
		if err != nil {
			log.Printf("Export: %s %s raw rows unavailable: %v", r, dataset, err)
			rows = []models.OrderLine{}
		}
		payload[r] = rows
		total += len(rows)
	}
	payload["row_count"] = total

	c.JSON(http.StatusOK, payload)
}

// GetBookingsRaw returns raw bookings line items for export consumers
// GET /api/v1/sales/bookings/raw
func (sc *SalesController) GetBookingsRaw(c *gin.Context) {
	sc.getRaw(c, models.DatasetBookings)
}

// GetOpenOrdersRaw returns raw open order line items for export consumers
// GET /api/v1/sales/open-orders/raw
func (sc *SalesController) GetOpenOrdersRaw(c *gin.Context) {
	sc.getRaw(c, models.DatasetOpenOrders)
}

// GetRate returns the current exchange rate quote
// GET /api/v1/sales/rate
func (sc *SalesController) GetRate(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": sc.service.Rate(c.Request.Context())})
}

// GetStatus reports scheduler job states and cache entry ages
// GET /api/v1/sales/status
func (sc *SalesController) GetStatus(c *gin.Context) {
	entries := sc.store.Entries()
	cacheInfo := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		cacheInfo = append(cacheInfo, gin.H{
			"key":          e.Key,
			"last_updated": e.LastUpdated,
			"ttl_seconds":  int(e.TTL.Seconds()),
			"stale":        e.Stale(time.Now()),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":           sc.jobs.JobStatuses(),
		"cache":          cacheInfo,
		"stream_clients": sc.hub.ClientCount(),
	})
}

// TriggerRefresh kicks off an immediate refresh for a dataset
// POST /api/v1/sales/refresh/:dataset
func (sc *SalesController) TriggerRefresh(c *gin.Context) {
	dataset := c.Param("dataset")

	switch dataset {
	case models.DatasetBookings:
		go sc.jobs.RunBookingsJob()
	case models.DatasetOpenOrders:
		go sc.jobs.RunOpenOrdersJob()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown dataset"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "refresh started", "dataset": dataset})
}

// GetHistory returns archived snapshot totals for a region+dataset
// GET /api/v1/sales/history?dataset=bookings&region=us&limit=50
func (sc *SalesController) GetHistory(c *gin.Context) {
	dataset := c.DefaultQuery("dataset", models.DatasetBookings)
	region := c.DefaultQuery("region", config.RegionUS)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if sc.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Archive not available"})
		return
	}

	records, err := sc.history.RecentSnapshots(dataset, region, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records, "count": len(records)})
}
