package models

import (
	"tqs/src/types"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID      `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Email        string         `gorm:"uniqueIndex" json:"email"`
	Name         string         `json:"name"`
	PasswordHash string         `json:"-"`
	Role         types.UserRole `gorm:"default:'user'" json:"role"`

	QueueEntries []QueueEntry  `gorm:"foreignKey:user_id" json:"-"`
	Reservations []Reservation `gorm:"foreignKey:user_id" json:"-"`

	types.Timestamps
}
