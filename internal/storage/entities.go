package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldops/attendance-engine/internal/integrity/geo"
	"github.com/fieldops/attendance-engine/pkg/models"
)

// EntityStore is the gorm-backed EntityProvider: it resolves which of the
// user's assigned geofences a point belongs to.
type EntityStore struct {
	db *gorm.DB
}

// NewEntityStore wraps an open gorm connection.
func NewEntityStore(db *gorm.DB) *EntityStore {
	return &EntityStore{db: db}
}

// ResolveAuthorizedEntity returns the nearest entity the user is assigned
// to, with the computed distance to its center. Nil when the user has no
// assignments. The caller decides whether the distance breaches the
// radius; returning the nearest entity either way lets it report the
// breached bound.
func (s *EntityStore) ResolveAuthorizedEntity(ctx context.Context, userID uuid.UUID, point models.GeoPoint) (*models.AuthorizedEntity, error) {
	var entities []models.WorkEntity
	err := s.db.WithContext(ctx).
		Joins("JOIN entity_assignments ON entity_assignments.entity_id = work_entities.id").
		Where("entity_assignments.user_id = ?", userID).
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("load assigned entities: %w", err)
	}
	if len(entities) == 0 {
		return nil, nil
	}

	var nearest *models.AuthorizedEntity
	for _, entity := range entities {
		distance, derr := geo.Distance(entity.Center, point)
		if derr != nil {
			return nil, fmt.Errorf("distance to entity %s: %w", entity.ID, derr)
		}
		if nearest == nil || distance < nearest.DistanceMeters {
			nearest = &models.AuthorizedEntity{
				EntityID:       entity.ID,
				Name:           entity.Name,
				Center:         entity.Center,
				RadiusMeters:   entity.RadiusMeters,
				DistanceMeters: distance,
			}
		}
	}
	return nearest, nil
}
