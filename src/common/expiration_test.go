package common

import (
	"context"
	"testing"
	"time"
	"tqs/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func reservationRow(id, eventId, userId uuid.UUID, status types.ReservationStatus, deadline time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "event_id", "user_id", "status", "deadline"}).
		AddRow(id, eventId, userId, string(status), deadline)
}

func TestExpireReservationMissingRowIsDropped(t *testing.T) {
	dbMock, rd := newStoreAndLedgerMocks()
	reservationId := uuid.New()

	dbMock.ExpectQuery(`SELECT (.+) FROM "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := ExpireReservation(context.Background(), reservationId.String())

	assert.Nil(t, err)
	assert.Nil(t, dbMock.ExpectationsWereMet())
	assert.Nil(t, rd.ExpectationsWereMet())
}

func TestExpireReservationAlreadySettledIsNoop(t *testing.T) {
	dbMock, rd := newStoreAndLedgerMocks()
	reservationId := uuid.New()

	dbMock.ExpectQuery(`SELECT (.+) FROM "reservations"`).
		WillReturnRows(reservationRow(reservationId, uuid.New(), uuid.New(), types.RESERVATION_PAID, time.Now().Add(-time.Minute)))

	err := ExpireReservation(context.Background(), reservationId.String())

	assert.Nil(t, err)
	assert.Nil(t, dbMock.ExpectationsWereMet())
	assert.Nil(t, rd.ExpectationsWereMet())
}

func TestExpireReservationReturnsSeatAndRetiresEntry(t *testing.T) {
	dbMock, rd := newStoreAndLedgerMocks()
	reservationId := uuid.New()
	eventUUID := uuid.New()
	userUUID := uuid.New()
	eventId := eventUUID.String()

	dbMock.ExpectQuery(`SELECT (.+) FROM "reservations"`).
		WillReturnRows(reservationRow(reservationId, eventUUID, userUUID, types.RESERVATION_PENDING_PAYMENT, time.Now().Add(-time.Minute)))

	rd.ExpectSetNX("expired:"+reservationId.String(), "1", 60*time.Minute).SetVal(true)
	rd.ExpectIncr("seats:" + eventId).SetVal(1)

	dbMock.ExpectBegin()
	dbMock.ExpectExec(`UPDATE "reservations"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	dbMock.ExpectBegin()
	dbMock.ExpectExec(`UPDATE "queue_entries"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	rd.ExpectDel("active:" + eventId + ":" + userUUID.String()).SetVal(1)
	rd.ExpectDecr("activeCount:" + eventId).SetVal(0)

	dbMock.ExpectQuery(`SELECT (.+) FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "total_seats", "sales_start_at", "sales_end_at"}).
			AddRow(eventUUID, "Launch Night", 2, time.Now().Add(-time.Hour), time.Now().Add(time.Hour)))

	rd.ExpectGet("activeCount:" + eventId).RedisNil()
	rd.ExpectZRange("queue:"+eventId, 0, 0).SetVal([]string{})
	rd.ExpectZRange("queue:"+eventId, 0, 49).SetVal([]string{})

	err := ExpireReservation(context.Background(), reservationId.String())

	assert.Nil(t, err)
	assert.Nil(t, dbMock.ExpectationsWereMet())
	assert.Nil(t, rd.ExpectationsWereMet())
}

func TestExpireReservationPaymentWinsConditionalRace(t *testing.T) {
	dbMock, rd := newStoreAndLedgerMocks()
	reservationId := uuid.New()
	eventUUID := uuid.New()
	eventId := eventUUID.String()

	dbMock.ExpectQuery(`SELECT (.+) FROM "reservations"`).
		WillReturnRows(reservationRow(reservationId, eventUUID, uuid.New(), types.RESERVATION_PENDING_PAYMENT, time.Now().Add(-time.Minute)))

	rd.ExpectSetNX("expired:"+reservationId.String(), "1", 60*time.Minute).SetVal(true)
	rd.ExpectIncr("seats:" + eventId).SetVal(1)

	dbMock.ExpectBegin()
	dbMock.ExpectExec(`UPDATE "reservations"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectCommit()

	rd.ExpectDecr("seats:" + eventId).SetVal(0)

	err := ExpireReservation(context.Background(), reservationId.String())

	assert.Nil(t, err)
	assert.Nil(t, dbMock.ExpectationsWereMet())
	assert.Nil(t, rd.ExpectationsWereMet())
}

func TestExpireReservationCompletesCrashedRun(t *testing.T) {
	dbMock, rd := newStoreAndLedgerMocks()
	reservationId := uuid.New()
	eventUUID := uuid.New()
	userUUID := uuid.New()
	eventId := eventUUID.String()

	dbMock.ExpectQuery(`SELECT (.+) FROM "reservations"`).
		WillReturnRows(reservationRow(reservationId, eventUUID, userUUID, types.RESERVATION_PENDING_PAYMENT, time.Now().Add(-time.Minute)))

	// Fence already held, but the reservation is still pending: the prior
	// owner died mid-sequence, so this run finishes the job.
	rd.ExpectSetNX("expired:"+reservationId.String(), "1", 60*time.Minute).SetVal(false)
	rd.ExpectIncr("seats:" + eventId).SetVal(1)

	dbMock.ExpectBegin()
	dbMock.ExpectExec(`UPDATE "reservations"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	dbMock.ExpectBegin()
	dbMock.ExpectExec(`UPDATE "queue_entries"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	rd.ExpectDel("active:" + eventId + ":" + userUUID.String()).SetVal(0)

	dbMock.ExpectQuery(`SELECT (.+) FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "total_seats", "sales_start_at", "sales_end_at"}).
			AddRow(eventUUID, "Launch Night", 2, time.Now().Add(-time.Hour), time.Now().Add(time.Hour)))

	rd.ExpectGet("activeCount:" + eventId).RedisNil()
	rd.ExpectZRange("queue:"+eventId, 0, 0).SetVal([]string{})
	rd.ExpectZRange("queue:"+eventId, 0, 49).SetVal([]string{})

	err := ExpireReservation(context.Background(), reservationId.String())

	assert.Nil(t, err)
	assert.Nil(t, dbMock.ExpectationsWereMet())
	assert.Nil(t, rd.ExpectationsWereMet())
}
