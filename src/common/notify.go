package common

import (
	"context"
	"log"
	"time"
	"tqs/src/lib"
	"tqs/src/types"
)

// Notifications are hints, never load-bearing. Each helper runs the emit on
// its own goroutine so a slow socket transport cannot block a ledger or
// store transition.

func NotifyQueueActive(userId, eventId, reservationId string, expiresAt time.Time) {
	go lib.NotifyUser(userId, types.NOTIFY_QUEUE_ACTIVE, types.QueueActivePayload{
		EventID:       eventId,
		ReservationID: reservationId,
		ExpiresAt:     expiresAt,
	})
}

func NotifyQueueSoldOut(userId, eventId string) {
	go lib.NotifyUser(userId, types.NOTIFY_QUEUE_SOLDOUT, types.QueueSoldOutPayload{
		EventID: eventId,
	})
}

func NotifyReservationExpired(userId, reservationId, eventId string) {
	go lib.NotifyUser(userId, types.NOTIFY_RESERVATION_EXPIRED, types.ReservationExpiredPayload{
		ReservationID: reservationId,
		EventID:       eventId,
	})
}

func NotifyReservationPaid(userId, reservationId, eventId string, paidAt time.Time) {
	go lib.NotifyUser(userId, types.NOTIFY_RESERVATION_PAID, types.ReservationPaidPayload{
		ReservationID: reservationId,
		EventID:       eventId,
		PaidAt:        paidAt,
	})
}

// NotifyQueuePositions tells the remaining waiters where they now stand.
// Positions are re-read from the ledger after a batch shifts the queue.
func NotifyQueuePositions(ctx context.Context, eventId string, userIds []string) {
	for _, userId := range userIds {
		pos, ok, err := QueuePosition(ctx, eventId, userId)
		if err != nil {
			log.Printf("[notify] Could not read position for user %s on event %s: %s\n", userId, eventId, err.Error())
			continue
		}
		if !ok {
			continue
		}
		go lib.NotifyUser(userId, types.NOTIFY_QUEUE_POSITION, types.QueuePositionPayload{
			EventID:  eventId,
			Position: pos,
			Status:   string(types.QUEUE_WAITING),
		})
	}
}
