package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dealdesk/internal/auth"
	"dealdesk/internal/events"
	"dealdesk/internal/function"
	"dealdesk/internal/lineitems"
)

// Router builds the HTTP API: health probes, metrics, the websocket feed,
// token issuance and the authenticated aggregation routes.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(a.Log), gin.Recovery())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", a.ready)
	router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))
	router.GET("/ws", events.WSHandler(a.Hub, a.Log.Named("ws")))

	auth.NewHandler(a.Clients, a.Tokens).RegisterRoutes(router.Group("/auth"))

	required := auth.AuthMiddleware(a.Tokens, a.Clients)
	lineitems.NewHandler(a.Tracker).RegisterRoutes(router.Group("/deals", required))
	function.New(a.Tracker).RegisterRoutes(router.Group("/functions", required))

	return router
}

func (a *App) ready(c *gin.Context) {
	stats := a.Hub.Stats()
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := a.DB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"db_error":   err.Error(),
			"ws_clients": stats.WSClients,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ready",
		"db":             "ok",
		"crm_configured": a.Config.CRM.AccessToken != "",
		"ws_clients":     stats.WSClients,
	})
}

// RequestLogger logs one line per request through zap.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
