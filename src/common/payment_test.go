package common

import (
	"context"
	"testing"
	"time"
	"tqs/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestPayReservationUnknownId(t *testing.T) {
	dbMock, _ := newStoreAndLedgerMocks()
	reservationId := uuid.New()

	dbMock.ExpectQuery(`SELECT (.+) FROM "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := PayReservation(context.Background(), reservationId.String(), uuid.New().String())

	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPayReservationWrongOwner(t *testing.T) {
	dbMock, _ := newStoreAndLedgerMocks()
	reservationId := uuid.New()
	owner := uuid.New()
	claimant := uuid.New()

	dbMock.ExpectQuery(`SELECT (.+) FROM "reservations"`).
		WillReturnRows(reservationRow(reservationId, uuid.New(), owner, types.RESERVATION_PENDING_PAYMENT, time.Now().Add(time.Minute)))

	_, err := PayReservation(context.Background(), reservationId.String(), claimant.String())

	assert.ErrorIs(t, err, ErrWrongOwner)
}

func TestPayReservationAlreadySettled(t *testing.T) {
	dbMock, _ := newStoreAndLedgerMocks()
	reservationId := uuid.New()
	owner := uuid.New()

	dbMock.ExpectQuery(`SELECT (.+) FROM "reservations"`).
		WillReturnRows(reservationRow(reservationId, uuid.New(), owner, types.RESERVATION_EXPIRED, time.Now().Add(-time.Minute)))

	_, err := PayReservation(context.Background(), reservationId.String(), owner.String())

	assert.ErrorIs(t, err, ErrNotPending)
}

func TestPayReservationElapsedDeadlineMakesNoLedgerMove(t *testing.T) {
	dbMock, rd := newStoreAndLedgerMocks()
	reservationId := uuid.New()
	owner := uuid.New()

	dbMock.ExpectQuery(`SELECT (.+) FROM "reservations"`).
		WillReturnRows(reservationRow(reservationId, uuid.New(), owner, types.RESERVATION_PENDING_PAYMENT, time.Now().Add(-time.Second)))

	_, err := PayReservation(context.Background(), reservationId.String(), owner.String())

	assert.ErrorIs(t, err, ErrDeadlineElapsed)
	assert.Nil(t, dbMock.ExpectationsWereMet())
	assert.Nil(t, rd.ExpectationsWereMet())
}

func TestPayReservationLosesConditionalRace(t *testing.T) {
	dbMock, rd := newStoreAndLedgerMocks()
	reservationId := uuid.New()
	owner := uuid.New()

	dbMock.ExpectQuery(`SELECT (.+) FROM "reservations"`).
		WillReturnRows(reservationRow(reservationId, uuid.New(), owner, types.RESERVATION_PENDING_PAYMENT, time.Now().Add(time.Minute)))

	dbMock.ExpectBegin()
	dbMock.ExpectExec(`UPDATE "reservations"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectCommit()

	_, err := PayReservation(context.Background(), reservationId.String(), owner.String())

	assert.ErrorIs(t, err, ErrNotPending)
	assert.Nil(t, dbMock.ExpectationsWereMet())
	assert.Nil(t, rd.ExpectationsWereMet())
}

func TestPayReservationSettlesAndClearsMarkers(t *testing.T) {
	dbMock, rd := newStoreAndLedgerMocks()
	reservationId := uuid.New()
	eventUUID := uuid.New()
	owner := uuid.New()
	eventId := eventUUID.String()

	dbMock.ExpectQuery(`SELECT (.+) FROM "reservations"`).
		WillReturnRows(reservationRow(reservationId, eventUUID, owner, types.RESERVATION_PENDING_PAYMENT, time.Now().Add(time.Minute)))

	dbMock.ExpectBegin()
	dbMock.ExpectExec(`UPDATE "reservations"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	dbMock.ExpectBegin()
	dbMock.ExpectExec(`UPDATE "queue_entries"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	rd.ExpectDel("active:" + eventId + ":" + owner.String()).SetVal(1)
	rd.ExpectDecr("activeCount:" + eventId).SetVal(0)

	reservation, err := PayReservation(context.Background(), reservationId.String(), owner.String())

	assert.Nil(t, err)
	if assert.NotNil(t, reservation) {
		assert.Equal(t, types.RESERVATION_PAID, reservation.Status)
		assert.NotNil(t, reservation.PaidAt)
	}
	assert.Nil(t, dbMock.ExpectationsWereMet())
	assert.Nil(t, rd.ExpectationsWereMet())
}
