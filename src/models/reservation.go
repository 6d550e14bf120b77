package models

import (
	"time"
	"tqs/src/types"

	"github.com/google/uuid"
)

type Reservation struct {
	ID       uuid.UUID               `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	EventID  uuid.UUID               `gorm:"type:uuid" json:"event_id"`
	UserID   uuid.UUID               `gorm:"type:uuid" json:"user_id"`
	Status   types.ReservationStatus `gorm:"default:'PENDING_PAYMENT'" json:"status"`
	Deadline time.Time               `json:"deadline"`
	PaidAt   *time.Time              `json:"paid_at,omitempty"`

	Event Event `gorm:"foreignKey:event_id" json:"-"`
	User  User  `gorm:"foreignKey:user_id" json:"-"`

	types.Timestamps
}

// Expired reports whether the payment deadline has elapsed.
func (r *Reservation) Expired(now time.Time) bool {
	return now.After(r.Deadline)
}
