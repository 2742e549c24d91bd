package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/api/handlers"
	"github.com/ksw5434/realestate/internal/api/middleware"
	"github.com/ksw5434/realestate/internal/config"
	"github.com/ksw5434/realestate/internal/metrics"
	"github.com/ksw5434/realestate/internal/services"
)

// Services are the application services the public API is built on.
type Services struct {
	Accounts services.IAccountService
	Access   services.IAccessService
	Profiles services.IProfileService
	Listings services.IListingService
	Queries  services.IListingQueryService
	Assets   services.IAssetService
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, svc Services, rateLimiter *middleware.RateLimiterMiddleware, m *metrics.MetricsManager, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = handlers.MaxMultipartMemory

	// Apply global middleware first (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigins))
	r.Use(rateLimiter.Limit())
	r.Use(middleware.SessionMiddleware(cfg.JwtSecret, cfg.SessionCookieName, logger))

	// Initialize handlers
	jsonApiHandler := handlers.NewJsonApiHandler(cfg, handlers.JsonApiServices{
		Accounts: svc.Accounts,
		Access:   svc.Access,
		Profiles: svc.Profiles,
		Listings: svc.Listings,
		Queries:  svc.Queries,
	}, m, logger)
	restListingHandler := handlers.NewRestListingHandler(svc.Queries, logger)
	uploadHandler := handlers.NewUploadHandler(cfg, svc.Assets, svc.Profiles, logger)

	v1 := r.Group("/v1")
	{
		v1.POST("/api", jsonApiHandler.HandleRequest)

		v1.GET("/listing", restListingHandler.SearchListings)
		v1.GET("/listing/:id", restListingHandler.GetListingByID)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		upload := v1.Group("/upload")
		upload.Use(middleware.RequireAuth())
		{
			upload.POST("/listing-images", uploadHandler.UploadListingImages)
			upload.POST("/profile-image", uploadHandler.UploadProfileImage)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the internal service Gin engine.
func SetupServiceRouter(m *metrics.MetricsManager, logger *zap.Logger, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.POST("/v1/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			logger.Info("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "data": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				logger.Warn("Shutdown channel already signaled")
			}
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
