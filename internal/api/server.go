// Package api exposes the gateway over HTTP.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"broker-gate/internal/asset"
	"broker-gate/internal/events"
	"broker-gate/internal/monitor"
	"broker-gate/internal/order"
	"broker-gate/internal/risk"
	"broker-gate/pkg/db"
)

// Server wires HTTP endpoints around the order pipeline.
type Server struct {
	Router    *gin.Engine
	Queries   *db.Queries
	Orders    *order.Service
	Assets    *asset.Service
	Risk      *risk.Service
	Bus       *events.Bus
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	Paper   bool
	Venue   string
	Version string
}

// NewServer builds the router and registers all routes.
func NewServer(database *db.Database, orders *order.Service, assets *asset.Service, riskSvc *risk.Service, bus *events.Bus, meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Queries:   database.Queries(),
		Orders:    orders,
		Assets:    assets,
		Risk:      riskSvc,
		Bus:       bus,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", gin.WrapH(monitor.Handler()))
	s.Router.GET("/ws", s.eventStream)

	api := s.Router.Group("/api")
	{
		// Auth endpoints (no auth required)
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		// Everything else requires a valid token.
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/orders", s.submitOrder)
			protected.POST("/orders/validate", s.validateOrder)
			protected.GET("/orders", s.listOrderAudits)
			protected.GET("/assets/search", s.searchAssets)
			protected.GET("/assets/:symbol", s.getAsset)
			protected.GET("/policy", s.getPolicy)
		}
	}
}
