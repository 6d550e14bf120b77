package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"tqs/src/config"
	"tqs/src/db"
	"tqs/src/lib"
	"tqs/src/models"
	"tqs/src/models/scopes"
	"tqs/src/types"

	"gorm.io/gorm"
)

// ScheduleExpiration persists the deadline job and enqueues a one-time
// timer for it. The JobTask row is what lets a restarted process pick the
// timer back up; the in-memory job is just the low-latency path.
func ScheduleExpiration(reservation *models.Reservation) error {
	gdb := db.GetDb()
	jobTask := models.JobTask{
		Name:          fmt.Sprintf("Reservation_%s_Expire", reservation.ID.String()),
		JobType:       models.JOB_TYPE_RESERVATION_EXPIRE,
		RunsAt:        reservation.Deadline,
		ReservationID: reservation.ID,
		Payload: types.JSONB{
			"reservationId": reservation.ID.String(),
			"eventId":       reservation.EventID.String(),
		},
	}
	if err := gdb.Create(&jobTask).Error; err != nil {
		return err
	}
	return EnqueueExpirationJob(&jobTask)
}

// EnqueueExpirationJob arms the scheduler for a persisted job task. Also
// called from boot when recovering pending tasks after a restart.
func EnqueueExpirationJob(jobTask *models.JobTask) error {
	reservationId := jobTask.ReservationID.String()
	taskId := jobTask.ID
	_, err := lib.CreateOneTimeJob(jobTask.RunsAt, func() {
		if err := ExpireReservation(context.Background(), reservationId); err != nil {
			log.Printf("[expirer] Run failed for reservation %s, leaving job pending for the sweep: %s\n", reservationId, err.Error())
			return
		}
		gdb := db.GetDb()
		if err := gdb.
			Model(&models.JobTask{}).
			Where("id = ?", taskId).
			Update("status", models.JOB_DONE).
			Error; err != nil {
			log.Printf("[expirer] Could not mark job %s done: %s\n", taskId.String(), err.Error())
		}
	})
	return err
}

// ExpireReservation fires at a reservation's deadline and returns its seat
// to the pool. Safe to deliver any number of times, from any number of
// workers: the fence admits one owner, and the conditional status update
// arbitrates against a racing payment.
func ExpireReservation(ctx context.Context, reservationId string) error {
	gdb := db.GetDb()

	var reservation models.Reservation
	err := gdb.
		Model(&models.Reservation{}).
		Where("id = ?", reservationId).
		First(&reservation).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[expirer] Reservation %s no longer exists, dropping job\n", reservationId)
		return nil
	}
	if err != nil {
		return err
	}

	if reservation.Status != types.RESERVATION_PENDING_PAYMENT {
		return nil
	}

	claimed, err := ClaimExpiration(ctx, reservationId)
	if err != nil {
		return err
	}
	if !claimed {
		// Someone holds the fence. Normally that someone already finished
		// and the status check above would have returned, so a reservation
		// still pending here means the prior owner crashed mid-sequence.
		// Complete the sequence on its behalf.
		log.Printf("[expirer] Fence for reservation %s already claimed but still pending, completing prior run\n", reservationId)
	}

	eventId := reservation.EventID.String()
	userId := reservation.UserID.String()

	if _, err := IncrementSeats(ctx, eventId); err != nil {
		return err
	}

	res := gdb.
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", reservation.ID, types.RESERVATION_PENDING_PAYMENT).
		Update("status", types.RESERVATION_EXPIRED)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Payment won the conditional-update race after our status read.
		// The winner owns the ledger move, so take the increment back.
		if _, derr := DecrementSeats(ctx, eventId); derr != nil {
			log.Printf("[expirer] Failed to return surplus seat for event %s: %s\n", eventId, derr.Error())
		}
		return nil
	}

	if err := gdb.
		Model(&models.QueueEntry{}).
		Where("event_id = ? AND user_id = ?", reservation.EventID, reservation.UserID).
		Update("status", types.QUEUE_EXPIRED).
		Error; err != nil {
		return err
	}

	if err := ClearActive(ctx, eventId, userId); err != nil {
		log.Printf("[expirer] Failed to clear active marker for user %s on event %s: %s\n", userId, eventId, err.Error())
	}

	NotifyReservationExpired(userId, reservationId, eventId)

	var event models.Event
	if err := gdb.
		Model(&models.Event{}).
		Where("id = ?", reservation.EventID).
		First(&event).
		Error; err == nil {
		if _, err := PromoteBatch(ctx, &event, config.MaxActiveUsers()); err != nil {
			log.Printf("[expirer] Follow-up promotion failed for event %s: %s\n", eventId, err.Error())
		}
	}
	return nil
}

// ExpiredReservationsSweep is the backstop for lost timers: any pending
// reservation whose deadline has elapsed gets pushed through the pipeline.
// The pipeline's own idempotency makes double delivery harmless.
func ExpiredReservationsSweep() {
	ctx := context.Background()
	gdb := db.GetDb()
	var reservations []models.Reservation
	err := gdb.
		Model(&models.Reservation{}).
		Select("id").
		Scopes(scopes.WithStatus(types.RESERVATION_PENDING_PAYMENT), scopes.WithDeadlineBefore(time.Now())).
		Limit(100).
		Find(&reservations).
		Error
	if err != nil {
		log.Printf("[expirer] Sweep query failed: %s\n", err.Error())
		return
	}
	for _, reservation := range reservations {
		if err := ExpireReservation(ctx, reservation.ID.String()); err != nil {
			log.Printf("[expirer] Sweep run failed for reservation %s: %s\n", reservation.ID.String(), err.Error())
		}
	}
}
