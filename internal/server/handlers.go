package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fieldops/attendance-engine/internal/integrity"
	"github.com/fieldops/attendance-engine/pkg/models"
)

// operationRequest is the wire shape shared by every attendance endpoint.
// Coordinates are pointers so a missing field and a legitimate zero are
// distinguishable.
type operationRequest struct {
	UserID      string    `json:"user_id" binding:"required,uuid"`
	Latitude    *float64  `json:"latitude" binding:"required"`
	Longitude   *float64  `json:"longitude" binding:"required"`
	Timestamp   time.Time `json:"timestamp" binding:"required"`
	SessionType string    `json:"session_type" binding:"omitempty,oneof=work break lunch meeting errand"`
}

// verdictResponse is the success payload.
type verdictResponse struct {
	Decision models.Decision      `json:"decision"`
	Reason   string               `json:"reason,omitempty"`
	Signals  []models.FraudSignal `json:"signals,omitempty"`
}

func (s *Server) handleClockIn(c *gin.Context)  { s.perform(c, models.OpClockIn) }
func (s *Server) handleClockOut(c *gin.Context) { s.perform(c, models.OpClockOut) }
func (s *Server) handleSessionCheckIn(c *gin.Context) {
	s.perform(c, models.OpSessionCheckIn)
}
func (s *Server) handleSessionCheckOut(c *gin.Context) {
	s.perform(c, models.OpSessionCheckOut)
}
func (s *Server) handleLocationCheckIn(c *gin.Context) {
	s.perform(c, models.OpLocationCheckIn)
}
func (s *Server) handleLocationCheckOut(c *gin.Context) {
	s.perform(c, models.OpLocationCheckOut)
}

func (s *Server) perform(c *gin.Context, op models.OperationType) {
	var req operationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeValidationError(c, err)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		s.writeValidationError(c, err)
		return
	}

	verdict, err := s.engine.Perform(c.Request.Context(), integrity.Request{
		Op:          op,
		UserID:      userID,
		Point:       models.GeoPoint{Latitude: *req.Latitude, Longitude: *req.Longitude},
		At:          req.Timestamp,
		SessionType: models.SessionType(req.SessionType),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	if verdict.Decision == models.DecisionReject {
		s.writeFraudRejection(c, verdict)
		return
	}

	c.JSON(http.StatusOK, verdictResponse{
		Decision: verdict.Decision,
		Reason:   verdict.Reason,
		Signals:  verdict.Signals,
	})
}
