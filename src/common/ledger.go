package common

import (
	"context"
	"fmt"
	"log"
	"time"
	"tqs/src/config"
	"tqs/src/lib"

	"github.com/redis/go-redis/v9"
)

// All coordinator keys live behind this file. Callers never touch Redis
// directly; every cross-process ordering and mutual-exclusion decision is
// made through the atomic operations below.

func seatsKey(eventId string) string {
	return fmt.Sprintf("seats:%s", eventId)
}

func queueKey(eventId string) string {
	return fmt.Sprintf("queue:%s", eventId)
}

func activeKey(eventId, userId string) string {
	return fmt.Sprintf("active:%s:%s", eventId, userId)
}

func activeCountKey(eventId string) string {
	return fmt.Sprintf("activeCount:%s", eventId)
}

func expiredKey(reservationId string) string {
	return fmt.Sprintf("expired:%s", reservationId)
}

// InitializeSeats writes the declared seat total for an event. Called once
// at event creation; a repeat call overwrites, so callers must not
// reinitialize after sales begin.
func InitializeSeats(ctx context.Context, eventId string, seats uint) error {
	rd := lib.GetRedisClient()
	if err := rd.Set(ctx, seatsKey(eventId), int64(seats), 0).Err(); err != nil {
		log.Printf("[ledger] Failed to initialize seats for event %s: %s\n", eventId, err.Error())
		return err
	}
	return nil
}

// DecrementSeats atomically subtracts one seat and returns the new value.
// The result may be negative; the caller owns the compensating increment.
func DecrementSeats(ctx context.Context, eventId string) (int64, error) {
	rd := lib.GetRedisClient()
	return rd.Decr(ctx, seatsKey(eventId)).Result()
}

// IncrementSeats atomically returns one seat to the pool.
func IncrementSeats(ctx context.Context, eventId string) (int64, error) {
	rd := lib.GetRedisClient()
	return rd.Incr(ctx, seatsKey(eventId)).Result()
}

// RemainingSeats returns the current seat count, clamped to zero. A missing
// key reads as zero.
func RemainingSeats(ctx context.Context, eventId string) (int64, error) {
	rd := lib.GetRedisClient()
	v, err := rd.Get(ctx, seatsKey(eventId)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, nil
	}
	return v, nil
}

// AddToQueue enrolls the user in the event queue with the current instant
// as score. Re-adding an existing member leaves its score untouched (NX),
// so retries keep the original join order. Returns the 1-based position.
func AddToQueue(ctx context.Context, eventId, userId string) (int64, error) {
	rd := lib.GetRedisClient()
	score := float64(time.Now().UnixNano())
	if err := rd.ZAddNX(ctx, queueKey(eventId), redis.Z{Score: score, Member: userId}).Err(); err != nil {
		return 0, err
	}
	rank, err := rd.ZRank(ctx, queueKey(eventId), userId).Result()
	if err != nil {
		return 0, err
	}
	return rank + 1, nil
}

// QueuePosition returns the user's 1-based rank, or false if not queued.
func QueuePosition(ctx context.Context, eventId, userId string) (int64, bool, error) {
	rd := lib.GetRedisClient()
	rank, err := rd.ZRank(ctx, queueKey(eventId), userId).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rank + 1, true, nil
}

func QueueLength(ctx context.Context, eventId string) (int64, error) {
	rd := lib.GetRedisClient()
	return rd.ZCard(ctx, queueKey(eventId)).Result()
}

// PeekQueueHead returns the lowest-scored member without removing it.
func PeekQueueHead(ctx context.Context, eventId string) (string, bool, error) {
	rd := lib.GetRedisClient()
	members, err := rd.ZRange(ctx, queueKey(eventId), 0, 0).Result()
	if err != nil {
		return "", false, err
	}
	if len(members) == 0 {
		return "", false, nil
	}
	return members[0], true, nil
}

// QueueMembers lists up to limit members in score order, head first.
func QueueMembers(ctx context.Context, eventId string, limit int64) ([]string, error) {
	rd := lib.GetRedisClient()
	return rd.ZRange(ctx, queueKey(eventId), 0, limit-1).Result()
}

func RemoveFromQueue(ctx context.Context, eventId, userId string) error {
	rd := lib.GetRedisClient()
	return rd.ZRem(ctx, queueKey(eventId), userId).Err()
}

// SetActive marks the user as holding a payment window. The TTL tracks the
// reservation deadline so the marker decays with it.
func SetActive(ctx context.Context, eventId, userId string, ttl time.Duration) error {
	rd := lib.GetRedisClient()
	if err := rd.Set(ctx, activeKey(eventId, userId), "1", ttl).Err(); err != nil {
		return err
	}
	if err := rd.Incr(ctx, activeCountKey(eventId)).Err(); err != nil {
		log.Printf("[ledger] Failed to bump active count for event %s: %s\n", eventId, err.Error())
	}
	return nil
}

func IsActive(ctx context.Context, eventId, userId string) (bool, error) {
	rd := lib.GetRedisClient()
	n, err := rd.Exists(ctx, activeKey(eventId, userId)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearActive removes the payment-window marker. The auxiliary count is
// only decremented when the key still existed, so a repeated clear does not
// subtract the same marker twice. A marker that already decayed by TTL is
// not subtracted here, and nothing else subtracts it.
func ClearActive(ctx context.Context, eventId, userId string) error {
	rd := lib.GetRedisClient()
	n, err := rd.Del(ctx, activeKey(eventId, userId)).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		if err := rd.Decr(ctx, activeCountKey(eventId)).Err(); err != nil {
			log.Printf("[ledger] Failed to drop active count for event %s: %s\n", eventId, err.Error())
		}
	}
	return nil
}

// ActiveCount reads the advisory count of users holding payment windows,
// clamped to zero. Admission control only; not a correctness input.
func ActiveCount(ctx context.Context, eventId string) (int64, error) {
	rd := lib.GetRedisClient()
	v, err := rd.Get(ctx, activeCountKey(eventId)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, nil
	}
	return v, nil
}

// ClaimExpiration takes the set-if-absent fence for a reservation. Exactly
// one caller across all workers observes true; everyone else is told the
// expiration is already owned. The TTL eventually releases the key.
func ClaimExpiration(ctx context.Context, reservationId string) (bool, error) {
	rd := lib.GetRedisClient()
	return rd.SetNX(ctx, expiredKey(reservationId), "1", config.ExpireFenceTTL()).Result()
}
