// Package server is the thin HTTP adapter over the integrity engine:
// request DTO validation, verdict serialization, and the RFC 7807 error
// mapping. No attendance rule lives here.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fieldops/attendance-engine/internal/integrity"
)

// Server hosts the attendance endpoints.
type Server struct {
	engine *integrity.Engine
	logger *zap.Logger
	router *gin.Engine
}

// New builds the router.
func New(engine *integrity.Engine, logger *zap.Logger) *Server {
	s := &Server{engine: engine, logger: logger}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.Default())

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1/attendance")
	{
		v1.POST("/clock-in", s.handleClockIn)
		v1.POST("/clock-out", s.handleClockOut)
		v1.POST("/sessions/check-in", s.handleSessionCheckIn)
		v1.POST("/sessions/check-out", s.handleSessionCheckOut)
		v1.POST("/locations/check-in", s.handleLocationCheckIn)
		v1.POST("/locations/check-out", s.handleLocationCheckOut)
	}

	s.router = router
	return s
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() *gin.Engine { return s.router }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
