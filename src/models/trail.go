package models

import (
	"time"

	"github.com/google/uuid"
)

// TrailLog records admin mutations for after-the-fact review. Written on a
// best-effort basis; a failed write never blocks the mutation itself.
type TrailLog struct {
	ID        uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Action    string    `json:"action"`
	Initiator string    `json:"initiator"`
	EntityID  string    `json:"entity_id"`
	CreatedAt time.Time `gorm:"autoCreateTime:nano" json:"created_at"`
}
