package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkEntity is a geofenced site workers may be assigned to: an office,
// depot, or field location.
type WorkEntity struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(120);not null" json:"name"`
	Center       GeoPoint  `gorm:"embedded;embeddedPrefix:center_" json:"center"`
	RadiusMeters float64   `gorm:"not null" json:"radius_meters"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the gorm table name.
func (WorkEntity) TableName() string { return "work_entities" }

// EntityAssignment authorizes a user for a work entity's geofence.
type EntityAssignment struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	EntityID uuid.UUID `gorm:"type:uuid;not null;index" json:"entity_id"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName sets the gorm table name.
func (EntityAssignment) TableName() string { return "entity_assignments" }
