package common

import (
	"context"
	"log"
	"testing"
	"time"
	"tqs/src/db"
	"tqs/src/lib"
	"tqs/src/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	sdb, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sdb,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

func newStoreAndLedgerMocks() (sqlmock.Sqlmock, redismock.ClientMock) {
	gormDB, dbMock := newMockDB()
	db.NewDB(gormDB)
	client, rdMock := redismock.NewClientMock()
	lib.NewRedisClient(client)
	return dbMock, rdMock
}

func openEvent() *models.Event {
	return &models.Event{
		ID:           uuid.New(),
		Name:         "Launch Night",
		TotalSeats:   2,
		SalesStartAt: time.Now().Add(-time.Hour),
		SalesEndAt:   time.Now().Add(time.Hour),
	}
}

func TestPromoteOneEmptyQueue(t *testing.T) {
	_, rd := newStoreAndLedgerMocks()
	event := openEvent()
	rd.ExpectZRange("queue:"+event.ID.String(), 0, 0).SetVal([]string{})

	outcome, err := PromoteOne(context.Background(), event)

	assert.Nil(t, err)
	assert.Equal(t, PROMOTION_EMPTY, outcome.Result)
}

func TestPromoteOneSoldOutRestoresSeatAndRetiresHead(t *testing.T) {
	dbMock, rd := newStoreAndLedgerMocks()
	event := openEvent()
	eventId := event.ID.String()
	userId := uuid.New().String()

	rd.ExpectZRange("queue:"+eventId, 0, 0).SetVal([]string{userId})
	rd.ExpectDecr("seats:" + eventId).SetVal(-1)
	rd.ExpectIncr("seats:" + eventId).SetVal(0)

	dbMock.ExpectBegin()
	dbMock.ExpectExec(`UPDATE "queue_entries"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	rd.ExpectZRem("queue:"+eventId, userId).SetVal(1)

	outcome, err := PromoteOne(context.Background(), event)

	assert.Nil(t, err)
	assert.Equal(t, PROMOTION_SOLDOUT, outcome.Result)
	assert.Equal(t, userId, outcome.UserID)
	assert.Nil(t, dbMock.ExpectationsWereMet())
	assert.Nil(t, rd.ExpectationsWereMet())
}

func TestPromoteOneRaceLostRollsBackAndRestoresSeat(t *testing.T) {
	dbMock, rd := newStoreAndLedgerMocks()
	event := openEvent()
	eventId := event.ID.String()
	userId := uuid.New().String()

	rd.ExpectZRange("queue:"+eventId, 0, 0).SetVal([]string{userId})
	rd.ExpectDecr("seats:" + eventId).SetVal(0)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery(`INSERT INTO "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	dbMock.ExpectExec(`UPDATE "queue_entries"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectRollback()

	rd.ExpectIncr("seats:" + eventId).SetVal(1)

	outcome, err := PromoteOne(context.Background(), event)

	assert.Nil(t, err)
	assert.Equal(t, PROMOTION_RACE_LOST, outcome.Result)
	assert.Nil(t, outcome.Reservation)
	assert.Nil(t, dbMock.ExpectationsWereMet())
	assert.Nil(t, rd.ExpectationsWereMet())
}

func TestPromoteOneAdmitsHead(t *testing.T) {
	dbMock, rd := newStoreAndLedgerMocks()
	event := openEvent()
	eventId := event.ID.String()
	userId := uuid.New().String()

	rd.ExpectZRange("queue:"+eventId, 0, 0).SetVal([]string{userId})
	rd.ExpectDecr("seats:" + eventId).SetVal(1)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery(`INSERT INTO "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	dbMock.ExpectExec(`UPDATE "queue_entries"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	rd.ExpectZRem("queue:"+eventId, userId).SetVal(1)
	rd.ExpectSet("active:"+eventId+":"+userId, "1", 5*time.Minute).SetVal("OK")
	rd.ExpectIncr("activeCount:" + eventId).SetVal(1)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery(`INSERT INTO "job_tasks"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(uuid.New(), models.JOB_PENDING))
	dbMock.ExpectCommit()

	outcome, err := PromoteOne(context.Background(), event)

	assert.Nil(t, err)
	assert.Equal(t, PROMOTION_PROMOTED, outcome.Result)
	assert.Equal(t, userId, outcome.UserID)
	if assert.NotNil(t, outcome.Reservation) {
		assert.Equal(t, userId, outcome.Reservation.UserID.String())
		assert.True(t, outcome.Reservation.Deadline.After(time.Now()))
	}
	assert.Nil(t, dbMock.ExpectationsWereMet())
	assert.Nil(t, rd.ExpectationsWereMet())
}

func TestPromoteBatchThrottledWhenCapReached(t *testing.T) {
	_, rd := newStoreAndLedgerMocks()
	event := openEvent()
	rd.ExpectGet("activeCount:" + event.ID.String()).SetVal("3")

	outcomes, err := PromoteBatch(context.Background(), event, 3)

	assert.Nil(t, err)
	if assert.Len(t, outcomes, 1) {
		assert.Equal(t, PROMOTION_THROTTLED, outcomes[0].Result)
	}
}

func TestPromoteBatchStopsOnEmptyQueue(t *testing.T) {
	_, rd := newStoreAndLedgerMocks()
	event := openEvent()
	eventId := event.ID.String()

	rd.ExpectGet("activeCount:" + eventId).RedisNil()
	rd.ExpectZRange("queue:"+eventId, 0, 0).SetVal([]string{})
	rd.ExpectZRange("queue:"+eventId, 0, 49).SetVal([]string{})

	outcomes, err := PromoteBatch(context.Background(), event, 2)

	assert.Nil(t, err)
	if assert.Len(t, outcomes, 1) {
		assert.Equal(t, PROMOTION_EMPTY, outcomes[0].Result)
	}
	assert.Nil(t, rd.ExpectationsWereMet())
}
