package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"occupancy-status-backend/config"
	"occupancy-status-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg config.ServerConfig, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(logger))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	r.GET("/healthz", Healthz)

	// Agent-facing routes are not rate limited: a single agent reports every tick.
	r.POST("/motion", handler.PostMotion)
	r.GET("/motion", handler.GetOccupancy)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/motion", handler.PostMotion)
		api.GET("/occupancy", handler.GetOccupancy)
		api.GET("/view", handler.GetView)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", caching, handler.GetVAPIDPublicKey)
	}

	return r
}
