package common

import (
	"context"
	"errors"
	"log"
	"time"
	"tqs/src/db"
	"tqs/src/models"
	"tqs/src/models/scopes"
	"tqs/src/types"

	"gorm.io/gorm"
)

var (
	ErrSalesNotStarted = errors.New("sales have not started for this event")
	ErrSalesEnded      = errors.New("sales have ended for this event")
	ErrNotInQueue      = errors.New("user has not joined the queue for this event")
)

// JoinQueue enrolls a user in an event's waiting queue. Idempotent on
// (event, user): a repeat call never touches the ledger's queue set, it
// just reports the existing entry, so client retries are harmless.
func JoinQueue(ctx context.Context, event *models.Event, userId string) (*types.JoinQueueResponse, error) {
	now := time.Now()
	if !event.SalesOpen(now) {
		if now.Before(event.SalesStartAt) {
			return nil, ErrSalesNotStarted
		}
		return nil, ErrSalesEnded
	}

	eventId := event.ID.String()
	gdb := db.GetDb()

	var entry models.QueueEntry
	err := gdb.
		Model(&models.QueueEntry{}).
		Scopes(scopes.WithEventUser(eventId, userId)).
		First(&entry).
		Error
	if err == nil {
		pos, _, perr := QueuePosition(ctx, eventId, userId)
		if perr != nil {
			log.Printf("[queue] Could not read position for user %s on event %s: %s\n", userId, eventId, perr.Error())
		}
		return &types.JoinQueueResponse{
			Position: pos,
			Status:   string(entry.Status),
			EventID:  eventId,
			Message:  "already in queue",
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	position, err := AddToQueue(ctx, eventId, userId)
	if err != nil {
		return nil, err
	}

	entry = models.QueueEntry{
		EventID:   event.ID,
		UserID:    mustUUID(userId),
		Status:    types.QUEUE_WAITING,
		JoinOrder: position,
	}
	if err := gdb.Create(&entry).Error; err != nil {
		// A concurrent join for the same pair hit the unique index first;
		// the ledger add was NX so nothing is duplicated. Report the row
		// that won.
		log.Printf("[queue] Entry insert for user %s on event %s collided: %s\n", userId, eventId, err.Error())
		var existing models.QueueEntry
		if ferr := gdb.
			Model(&models.QueueEntry{}).
			Where("event_id = ? AND user_id = ?", eventId, userId).
			First(&existing).
			Error; ferr == nil {
			return &types.JoinQueueResponse{
				Position: position,
				Status:   string(existing.Status),
				EventID:  eventId,
				Message:  "already in queue",
			}, nil
		}
		return nil, err
	}

	return &types.JoinQueueResponse{
		Position: position,
		Status:   string(types.QUEUE_WAITING),
		EventID:  eventId,
		Message:  "joined queue",
	}, nil
}

// QueueStatusFor is the authoritative self-view behind GET queue/me.
// Clients poll this; socket pushes are only hints.
func QueueStatusFor(ctx context.Context, event *models.Event, userId string) (*types.QueueMeResponse, error) {
	eventId := event.ID.String()
	gdb := db.GetDb()

	var entry models.QueueEntry
	err := gdb.
		Model(&models.QueueEntry{}).
		Scopes(scopes.WithEventUser(eventId, userId)).
		First(&entry).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotInQueue
	}
	if err != nil {
		return nil, err
	}

	resp := types.QueueMeResponse{
		Status:  string(entry.Status),
		EventID: eventId,
	}
	if entry.Status == types.QUEUE_WAITING {
		pos, ok, perr := QueuePosition(ctx, eventId, userId)
		if perr != nil {
			return nil, perr
		}
		if ok {
			resp.Position = pos
		}
	}
	if entry.Status == types.QUEUE_ACTIVE && entry.ReservationID != nil {
		var reservation models.Reservation
		if rerr := gdb.
			Model(&models.Reservation{}).
			Scopes(scopes.WithID(*entry.ReservationID)).
			First(&reservation).
			Error; rerr == nil {
			rid := reservation.ID.String()
			resp.ReservationID = &rid
			resp.ExpiresAt = &reservation.Deadline
		}
	}
	return &resp, nil
}
