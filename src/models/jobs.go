package models

import (
	"time"
	"tqs/src/types"

	"github.com/google/uuid"
)

// JobTask is the durable record of a scheduled one-time job. Expiration
// timers are persisted here so pending timers survive a process restart.
type JobTask struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	Name          string      `json:"-"`
	JobType       string      `json:"-"`
	RunsAt        time.Time   `json:"-"`
	ReservationID uuid.UUID   `gorm:"type:uuid" json:"-"`
	Payload       types.JSONB `gorm:"type:jsonb" json:"-"`
	Status        string      `gorm:"default:'pending'" json:"-"`
}

const (
	JOB_PENDING = "pending"
	JOB_DONE    = "done"
	JOB_EXPIRED = "expired"

	JOB_TYPE_RESERVATION_EXPIRE = "ReservationExpire"
)
