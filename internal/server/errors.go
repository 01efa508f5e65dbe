package server

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	commonerrors "github.com/fieldops/attendance-engine/common/errors"
	"github.com/fieldops/attendance-engine/internal/integrity"
	"github.com/fieldops/attendance-engine/internal/integrity/state"
	"github.com/fieldops/attendance-engine/pkg/models"
)

// writeError converts the engine's typed failures into RFC 7807 problems.
func (s *Server) writeError(c *gin.Context, err error) {
	instance := c.Request.URL.Path

	var stateErr *state.ViolationError
	var geoErr *integrity.GeospatialViolation
	var timeErr *integrity.TimeSequenceViolation
	var conflictErr *integrity.ConflictError

	var problem *commonerrors.ProblemDetails
	switch {
	case errors.As(err, &stateErr):
		problem = commonerrors.NewStateViolation(stateErr.Error(), instance).
			WithCode(string(stateErr.Code)).
			WithSuggestion(stateErr.Suggestion)
	case errors.As(err, &geoErr):
		problem = commonerrors.NewGeospatialViolation(geoErr.Error(), instance)
	case errors.As(err, &timeErr):
		problem = commonerrors.NewTimeViolation(timeErr.Error(), instance)
	case errors.As(err, &conflictErr):
		problem = commonerrors.NewConcurrencyConflict(conflictErr.Error(), instance)
	default:
		s.logger.Error("attendance operation failed", zap.Error(err), zap.String("instance", instance))
		problem = commonerrors.NewInternalError("unexpected failure, see server logs", instance)
	}

	writeProblem(c, problem)
}

// writeFraudRejection surfaces a fraud block with its signals attached.
func (s *Server) writeFraudRejection(c *gin.Context, verdict *models.IntegrityVerdict) {
	problem := commonerrors.NewFraudBlocked(verdict.Reason, c.Request.URL.Path)
	c.Header("Content-Type", "application/problem+json")
	c.JSON(problem.Status, gin.H{
		"type":      problem.Type,
		"title":     problem.Title,
		"status":    problem.Status,
		"detail":    problem.Detail,
		"instance":  problem.Instance,
		"timestamp": problem.Timestamp,
		"signals":   verdict.Signals,
	})
}

func (s *Server) writeValidationError(c *gin.Context, err error) {
	writeProblem(c, commonerrors.NewValidationError(err.Error(), c.Request.URL.Path))
}

func writeProblem(c *gin.Context, problem *commonerrors.ProblemDetails) {
	c.Header("Content-Type", "application/problem+json")
	c.JSON(problem.Status, problem)
}
