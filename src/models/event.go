package models

import (
	"time"
	"tqs/src/types"

	"github.com/google/uuid"
)

type Event struct {
	ID           uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name         string    `json:"name"`
	TotalSeats   uint      `json:"total_seats"`
	SalesStartAt time.Time `json:"sales_start_at"`
	SalesEndAt   time.Time `json:"sales_end_at"`
	CreatedBy    uuid.UUID `gorm:"type:uuid" json:"created_by"`

	Creator      User          `gorm:"foreignKey:created_by" json:"-"`
	QueueEntries []QueueEntry  `gorm:"foreignKey:event_id" json:"-"`
	Reservations []Reservation `gorm:"foreignKey:event_id" json:"-"`

	types.Timestamps
}

// SalesOpen reports whether the sales window contains now.
func (e *Event) SalesOpen(now time.Time) bool {
	return !now.Before(e.SalesStartAt) && !now.After(e.SalesEndAt)
}
