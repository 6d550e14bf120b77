package scopes

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func WithID(id uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func WithEventUser(eventId, userId any) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("event_id = ? AND user_id = ?", eventId, userId)
	}
}

func WithStatus(status any) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", status)
	}
}

func WithDeadlineBefore(t time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("deadline < ?", t)
	}
}

func WithOpenSalesWindow(now time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("sales_start_at <= ? AND sales_end_at >= ?", now, now)
	}
}
