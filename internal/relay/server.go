package relay

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/marginalia/internal/api"
	"github.com/lalith-99/marginalia/internal/middleware"
	"github.com/lalith-99/marginalia/internal/repository"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the collaborators the relay's HTTP server is built from.
type Deps struct {
	Repo     repository.AnnotationRepository
	Notifier api.Notifier
	Hub      *Hub

	JWTSecret      string
	PassphraseHash string

	// Health reports whether backing stores are reachable. Nil means
	// always healthy.
	Health func(ctx context.Context) error

	Logger *zap.Logger
}

// NewRouter builds the relay's gin engine.
func NewRouter(d Deps) *gin.Engine {
	srv := gin.New()
	srv.Use(gin.Recovery())

	srv.GET("/v1/health", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": d.Hub.Clients()})
	})
	srv.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := api.NewAuthHandler(d.PassphraseHash, d.JWTSecret, d.Logger)
	srv.POST("/v1/auth/token", authHandler.Token)

	authed := middleware.AuthMiddleware(d.JWTSecret)
	srv.GET("/ws", authed, d.Hub.ServeWS)

	annotations := api.NewAnnotationHandler(d.Repo, d.Notifier, d.Logger)
	v1 := srv.Group("/v1")
	v1.Use(authed)
	v1.GET("/annotations", annotations.List)
	v1.POST("/annotations", annotations.Create)
	v1.PATCH("/annotations/:id", annotations.Update)
	v1.DELETE("/annotations/:id", annotations.Delete)

	return srv
}
