// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"bt-discovery/internal/config"
	"bt-discovery/internal/database"
	"bt-discovery/internal/events"
	"bt-discovery/internal/handler"
	"bt-discovery/internal/middleware"
	"bt-discovery/internal/service"
	"bt-discovery/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config           *config.Config
	logger           *zap.Logger
	db               *database.DB
	discoveryService *service.DiscoveryService
	eventBus         *events.EventBus
	rateLimiter      *middleware.RateLimiter

	wsHandler *handler.WebSocketHandler
}

// NewRouter creates a new router instance. db may be nil.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	discoveryService *service.DiscoveryService,
	eventBus *events.EventBus,
	rateLimiter *middleware.RateLimiter,
) *Router {
	return &Router{
		config:           config,
		logger:           logger,
		db:               db,
		discoveryService: discoveryService,
		eventBus:         eventBus,
		rateLimiter:      rateLimiter,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	// gin's route dump and debug warnings only when debugging
	if r.config.IsProduction() || !r.config.IsDebugEnabled() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// WebSocketHandler returns the event stream handler created by SetupRouter
func (r *Router) WebSocketHandler() *handler.WebSocketHandler {
	return r.wsHandler
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")

	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(serviceLogger))
	router.Use(middleware.CORSMiddleware(&r.config.Security))

	if r.rateLimiter != nil {
		router.Use(middleware.RateLimitMiddleware(&r.config.Security, r.rateLimiter, serviceLogger))
	}

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.discoveryService, r.config, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.discoveryService, r.logger)
	deviceHandler := handler.NewDeviceHandler(r.discoveryService, r.logger)
	r.wsHandler = handler.NewWebSocketHandler(r.eventBus, r.config.Security.AllowedOrigins, r.logger)

	healthHandler.RegisterRoutes(router)

	apiV1 := router.Group("/api/v1")
	r.addDiscoveryRoutes(apiV1, discoveryHandler)
	r.addDeviceRoutes(apiV1, deviceHandler)

	r.addWebSocketRoutes(router, r.wsHandler)
	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDiscoveryRoutes sets up device discovery routes
func (r *Router) addDiscoveryRoutes(api *gin.RouterGroup, handler *handler.DiscoveryHandler) {
	discovery := api.Group("/discovery")
	{
		discovery.GET("/scan", handler.ScanDevices)
		discovery.GET("/scan/json", handler.ScanDevicesJSON)
		discovery.POST("/scan/start", handler.StartScan)
		discovery.GET("/scans", handler.ListScans)
		discovery.GET("/scans/:scan_id", handler.GetScan)
		discovery.GET("/scanners", handler.GetScanners)
	}
}

// addDeviceRoutes sets up device info and connection routes
func (r *Router) addDeviceRoutes(api *gin.RouterGroup, handler *handler.DeviceHandler) {
	api.POST("/device-info/decode", handler.DecodeDeviceInfo)

	devices := api.Group("/devices")
	{
		devices.POST("/disconnect", handler.DisconnectDevice)
		devices.POST("/:identifier/connect", handler.ConnectDevice)
	}
}

// addWebSocketRoutes sets up WebSocket routes
func (r *Router) addWebSocketRoutes(router *gin.Engine, handler *handler.WebSocketHandler) {
	ws := router.Group("/ws")
	{
		ws.GET("/events", handler.HandleEventConnection)
		ws.GET("/stats", func(c *gin.Context) {
			utils.SuccessResponse(c, http.StatusOK, "WebSocket connections", handler.GetConnectionStats())
		})
	}
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
