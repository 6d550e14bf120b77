package common

import (
	"context"
	"errors"
	"log"
	"time"
	"tqs/src/config"
	"tqs/src/db"
	"tqs/src/models"
	"tqs/src/models/scopes"
	"tqs/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PromotionResult string

const (
	PROMOTION_PROMOTED  PromotionResult = "promoted"
	PROMOTION_SOLDOUT   PromotionResult = "soldout"
	PROMOTION_EMPTY     PromotionResult = "empty"
	PROMOTION_THROTTLED PromotionResult = "throttled"
	// PROMOTION_RACE_LOST marks a promoter that decremented for a head some
	// other promoter had already claimed. The seat is restored and the
	// caller retires without notifying anyone.
	PROMOTION_RACE_LOST PromotionResult = "race_lost"
)

type PromotionOutcome struct {
	Result      PromotionResult
	UserID      string
	Reservation *models.Reservation
}

var errPromotionLost = errors.New("queue entry already claimed by another promoter")

// PromoteOne admits the queue head into a payment window using the
// decrement-first protocol: the atomic seat decrement is the single moment
// of truth, and a negative result is the signal to restore and retire the
// head as sold out. Peeking first and checking the count would let two
// promoters both observe one free seat and both commit.
func PromoteOne(ctx context.Context, event *models.Event) (PromotionOutcome, error) {
	eventId := event.ID.String()

	userId, ok, err := PeekQueueHead(ctx, eventId)
	if err != nil {
		return PromotionOutcome{Result: PROMOTION_EMPTY}, err
	}
	if !ok {
		return PromotionOutcome{Result: PROMOTION_EMPTY}, nil
	}

	v, err := DecrementSeats(ctx, eventId)
	if err != nil {
		return PromotionOutcome{Result: PROMOTION_EMPTY}, err
	}

	if v < 0 {
		return retireSoldOut(ctx, eventId, userId)
	}
	return admit(ctx, event, userId)
}

// admit materializes the reservation and flips the queue entry to ACTIVE in
// one store transaction. The entry update is conditional on WAITING; zero
// rows affected means another promoter already claimed this head, the
// transaction rolls back and the surplus decrement is returned.
func admit(ctx context.Context, event *models.Event, userId string) (PromotionOutcome, error) {
	eventId := event.ID.String()
	window := config.ActiveWindow()
	deadline := time.Now().Add(window)

	reservation := models.Reservation{
		ID:       uuid.New(),
		EventID:  event.ID,
		UserID:   uuid.MustParse(userId),
		Status:   types.RESERVATION_PENDING_PAYMENT,
		Deadline: deadline,
	}

	gdb := db.GetDb()
	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&reservation).Error; err != nil {
			return err
		}
		res := tx.
			Model(&models.QueueEntry{}).
			Where("event_id = ? AND user_id = ? AND status = ?", event.ID, reservation.UserID, types.QUEUE_WAITING).
			Updates(map[string]any{"status": types.QUEUE_ACTIVE, "reservation_id": reservation.ID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errPromotionLost
		}
		return nil
	})
	if err != nil {
		if _, rerr := IncrementSeats(ctx, eventId); rerr != nil {
			log.Printf("[promoter] Failed to restore seat for event %s: %s\n", eventId, rerr.Error())
		}
		if errors.Is(err, errPromotionLost) {
			return PromotionOutcome{Result: PROMOTION_RACE_LOST, UserID: userId}, nil
		}
		log.Printf("[promoter] Could not materialize reservation for user %s on event %s: %s\n", userId, eventId, err.Error())
		return PromotionOutcome{Result: PROMOTION_EMPTY}, err
	}

	if err := RemoveFromQueue(ctx, eventId, userId); err != nil {
		log.Printf("[promoter] Failed to remove user %s from queue %s: %s\n", userId, eventId, err.Error())
	}
	if err := SetActive(ctx, eventId, userId, window); err != nil {
		log.Printf("[promoter] Failed to set active marker for user %s on event %s: %s\n", userId, eventId, err.Error())
	}
	if err := ScheduleExpiration(&reservation); err != nil {
		log.Printf("[promoter] Failed to schedule expiration for reservation %s: %s\n", reservation.ID.String(), err.Error())
	}
	NotifyQueueActive(userId, eventId, reservation.ID.String(), deadline)

	return PromotionOutcome{Result: PROMOTION_PROMOTED, UserID: userId, Reservation: &reservation}, nil
}

// retireSoldOut restores the surplus decrement and retires the head with a
// terminal entry. The entry update stays conditional so concurrent
// promoters retiring the same head notify at most once.
func retireSoldOut(ctx context.Context, eventId, userId string) (PromotionOutcome, error) {
	if _, err := IncrementSeats(ctx, eventId); err != nil {
		log.Printf("[promoter] Failed to restore seat for event %s: %s\n", eventId, err.Error())
	}

	gdb := db.GetDb()
	var affected int64
	err := gdb.Transaction(func(tx *gorm.DB) error {
		res := tx.
			Model(&models.QueueEntry{}).
			Where("event_id = ? AND user_id = ? AND status = ?", eventId, userId, types.QUEUE_WAITING).
			Update("status", types.QUEUE_EXPIRED)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		log.Printf("[promoter] Could not retire entry for user %s on event %s: %s\n", userId, eventId, err.Error())
		return PromotionOutcome{Result: PROMOTION_SOLDOUT, UserID: userId}, err
	}

	if err := RemoveFromQueue(ctx, eventId, userId); err != nil {
		log.Printf("[promoter] Failed to remove user %s from queue %s: %s\n", userId, eventId, err.Error())
	}
	if affected > 0 {
		NotifyQueueSoldOut(userId, eventId)
	}
	return PromotionOutcome{Result: PROMOTION_SOLDOUT, UserID: userId}, nil
}

// PromoteBatch drains as many heads as the admission cap allows. The cap
// protects downstream services; it has no bearing on seat correctness.
func PromoteBatch(ctx context.Context, event *models.Event, maxConcurrentActive int) ([]PromotionOutcome, error) {
	eventId := event.ID.String()
	active, err := ActiveCount(ctx, eventId)
	if err != nil {
		return nil, err
	}
	slots := int64(maxConcurrentActive) - active
	if slots <= 0 {
		return []PromotionOutcome{{Result: PROMOTION_THROTTLED}}, nil
	}

	outcomes := make([]PromotionOutcome, 0, slots)
	for slots > 0 {
		outcome, err := PromoteOne(ctx, event)
		if err != nil {
			return outcomes, err
		}
		if outcome.Result == PROMOTION_RACE_LOST {
			continue
		}
		outcomes = append(outcomes, outcome)
		if outcome.Result == PROMOTION_EMPTY || outcome.Result == PROMOTION_SOLDOUT {
			break
		}
		slots--
	}

	if waiters, err := QueueMembers(ctx, eventId, 50); err == nil {
		NotifyQueuePositions(ctx, eventId, waiters)
	}
	return outcomes, nil
}

// PromoteOpenEvents runs a promotion batch for every event whose sales
// window contains now. Wired to the periodic trigger in main.
func PromoteOpenEvents() {
	ctx := context.Background()
	gdb := db.GetDb()
	now := time.Now()
	var events []models.Event
	err := gdb.
		Model(&models.Event{}).
		Scopes(scopes.WithOpenSalesWindow(now)).
		Find(&events).
		Error
	if err != nil {
		log.Printf("[promoter] Could not list open events: %s\n", err.Error())
		return
	}
	for i := range events {
		event := events[i]
		if _, err := PromoteBatch(ctx, &event, config.MaxActiveUsers()); err != nil {
			log.Printf("[promoter] Batch failed for event %s: %s\n", event.ID.String(), err.Error())
		}
	}
}
