package models

import (
	"tqs/src/types"

	"github.com/google/uuid"
)

// QueueEntry is the durable record of a user's place in an event queue.
// One row per (event, user); rows are never deleted, only transitioned.
type QueueEntry struct {
	ID            uuid.UUID              `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	EventID       uuid.UUID              `gorm:"type:uuid;uniqueIndex:idx_queue_event_user" json:"event_id"`
	UserID        uuid.UUID              `gorm:"type:uuid;uniqueIndex:idx_queue_event_user" json:"user_id"`
	Status        types.QueueEntryStatus `gorm:"default:'WAITING'" json:"status"`
	ReservationID *uuid.UUID             `gorm:"type:uuid" json:"reservation_id,omitempty"`
	JoinOrder     int64                  `json:"join_order"`

	Event       Event        `gorm:"foreignKey:event_id" json:"-"`
	User        User         `gorm:"foreignKey:user_id" json:"-"`
	Reservation *Reservation `gorm:"foreignKey:reservation_id" json:"-"`

	types.Timestamps
}
