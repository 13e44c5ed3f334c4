package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Location is where a service order takes place. It is stored as three
// flattened columns but serialized as a single structured value.
type Location struct {
	Lat     float64 `gorm:"column:location_lat" json:"lat"`
	Lng     float64 `gorm:"column:location_lng" json:"lng"`
	Address string  `gorm:"column:location_address" json:"address"`
}

// ServiceOrder represents a unit of field work
type ServiceOrder struct {
	ID                   string         `gorm:"primaryKey" json:"id"`
	Title                string         `gorm:"not null" json:"title"`
	Description          string         `gorm:"not null" json:"description"`
	Date                 time.Time      `gorm:"not null;index" json:"date"` // scheduled time, distinct from CreatedAt
	Location             Location       `gorm:"embedded" json:"location"`
	Status               string         `gorm:"not null;default:'pending'" json:"status"` // pending, in-progress, completed, cancelled
	AssignedTechnicianID *string        `gorm:"index" json:"assigned_technician_id"`      // nullable, foreign key to users table
	AssignedTechnician   *User          `gorm:"foreignKey:AssignedTechnicianID" json:"assigned_technician,omitempty"`
	CreatedByID          string         `gorm:"not null;index" json:"created_by_id"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the ServiceOrder model
func (ServiceOrder) TableName() string {
	return "service_orders"
}

// BeforeCreate assigns an opaque identifier when none is set
func (o *ServiceOrder) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// ValidOrderStatus reports whether s is one of the known workflow states
func ValidOrderStatus(s string) bool {
	switch s {
	case "pending", "in-progress", "completed", "cancelled":
		return true
	}
	return false
}
