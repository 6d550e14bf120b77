package common

import (
	"context"
	"errors"
	"log"
	"time"
	"tqs/src/db"
	"tqs/src/models"
	"tqs/src/types"
)

var (
	ErrWrongOwner      = errors.New("reservation belongs to another user")
	ErrNotPending      = errors.New("reservation is no longer payable")
	ErrDeadlineElapsed = errors.New("payment window has closed")
)

// PayReservation settles a pending reservation. The PENDING_PAYMENT → PAID
// write is conditional on the current status, so a payment racing the
// expiration pipeline resolves to exactly one winner; the loser sees zero
// rows affected and makes no seat-ledger move.
func PayReservation(ctx context.Context, reservationId, claimantId string) (*models.Reservation, error) {
	gdb := db.GetDb()

	var reservation models.Reservation
	err := gdb.
		Model(&models.Reservation{}).
		Where("id = ?", reservationId).
		First(&reservation).
		Error
	if err != nil {
		return nil, err
	}

	if reservation.UserID.String() != claimantId {
		return nil, ErrWrongOwner
	}
	if reservation.Status != types.RESERVATION_PENDING_PAYMENT {
		return nil, ErrNotPending
	}
	now := time.Now()
	if reservation.Expired(now) {
		// The deadline has passed but expiring is the pipeline's job, not
		// the payment path's.
		return nil, ErrDeadlineElapsed
	}

	res := gdb.
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", reservation.ID, types.RESERVATION_PENDING_PAYMENT).
		Updates(map[string]any{"status": types.RESERVATION_PAID, "paid_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotPending
	}
	reservation.Status = types.RESERVATION_PAID
	reservation.PaidAt = &now

	if err := gdb.
		Model(&models.QueueEntry{}).
		Where("event_id = ? AND user_id = ?", reservation.EventID, reservation.UserID).
		Update("status", types.QUEUE_DONE).
		Error; err != nil {
		log.Printf("[payment] Could not mark entry done for user %s on event %s: %s\n", claimantId, reservation.EventID.String(), err.Error())
	}

	if err := ClearActive(ctx, reservation.EventID.String(), claimantId); err != nil {
		log.Printf("[payment] Could not clear active marker for user %s: %s\n", claimantId, err.Error())
	}

	NotifyReservationPaid(claimantId, reservation.ID.String(), reservation.EventID.String(), now)
	return &reservation, nil
}
