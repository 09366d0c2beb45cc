package routes

import (
	"time"

	"sales_portal_backend/controllers"
	"sales_portal_backend/middleware"
	"sales_portal_backend/scheduler"
	"sales_portal_backend/services/archive"
	"sales_portal_backend/services/cache"
	"sales_portal_backend/services/salesdata"
	"sales_portal_backend/services/stream"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, service *salesdata.Service, store *cache.Store,
	jobs *scheduler.Scheduler, history *archive.Archive, hub *stream.Hub) {

	// Initialize controllers
	salesController := controllers.NewSalesController(service, store, jobs, history, hub)

	// Exports and manual refresh hit the cache store or the scheduler
	// harder than dashboard reads, so they get a per-IP cap.
	exportLimiter := middleware.NewRateLimiter(30, time.Minute)
	refreshLimiter := middleware.NewRateLimiter(5, time.Minute)

	// API v1 group
	api := router.Group("/api/v1")
	{
		sales := api.Group("/sales")
		{
			sales.GET("/bookings", salesController.GetBookings)
			sales.GET("/bookings/raw", exportLimiter.Middleware(), salesController.GetBookingsRaw)
			sales.GET("/open-orders", salesController.GetOpenOrders)
			sales.GET("/open-orders/raw", exportLimiter.Middleware(), salesController.GetOpenOrdersRaw)
			sales.GET("/rate", salesController.GetRate)
			sales.GET("/status", salesController.GetStatus)
			sales.GET("/history", salesController.GetHistory)
			sales.POST("/refresh/:dataset", refreshLimiter.Middleware(), salesController.TriggerRefresh)
		}
	}

	// WebSocket stream for dashboard push updates
	router.GET("/ws/sales", func(c *gin.Context) {
		hub.HandleWebSocket(c.Writer, c.Request)
	})
}
