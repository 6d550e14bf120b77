package boot

import (
	"log"
	"time"
	"tqs/src/common"
	"tqs/src/db"
	"tqs/src/lib"
	"tqs/src/models"
	"tqs/src/types"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.QueueEntry{},
		&models.Reservation{},
		&models.JobTask{},
		&models.TrailLog{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}

// RecoverQueuedJobs re-arms deadline timers that were pending when the
// process last stopped. Overdue ones run immediately; the conditional
// update inside the pipeline keeps the replays harmless.
func RecoverQueuedJobs() error {
	gdb := db.GetDb()
	ss := gdb.Session(&gorm.Session{PrepareStmt: true})
	var jobTasks []models.JobTask
	horizon := time.Now().Add(14 * 24 * time.Hour)
	err := ss.
		Model(&models.JobTask{}).
		Where(&models.JobTask{Status: models.JOB_PENDING, JobType: models.JOB_TYPE_RESERVATION_EXPIRE}).
		Where("runs_at < ?", horizon).
		Order("runs_at asc").
		Limit(1000).
		Find(&jobTasks).
		Error
	if err != nil {
		log.Printf("Error retrieving jobs: %s\n", err.Error())
		return err
	}
	log.Printf("Found %d pending jobs", len(jobTasks))
	for i := range jobTasks {
		jobTask := jobTasks[i]
		log.Printf("Queueing: %s\n", jobTask.ID.String())
		if err := common.EnqueueExpirationJob(&jobTask); err != nil {
			log.Printf("Failed to schedule job [%s]. Skipping: %s\n", jobTask.ID.String(), err.Error())
			continue
		}
	}

	return nil
}

// UpdateExpiredJobs retires job rows that are long past their deadline and
// whose reservation is no longer pending, so recovery scans stay small.
func UpdateExpiredJobs() {
	gdb := db.GetDb()
	err := gdb.
		Transaction(func(tx *gorm.DB) error {
			return tx.Model(&models.JobTask{}).
				Where("status = ?", models.JOB_PENDING).
				Where("runs_at < ?", time.Now().Add(-24*time.Hour)).
				Where("reservation_id IN (?)", tx.
					Model(&models.Reservation{}).
					Select("id").
					Where("status <> ?", types.RESERVATION_PENDING_PAYMENT),
				).
				Update("status", models.JOB_EXPIRED).Error
		})
	if err != nil {
		log.Printf("Error while processing expired jobs: %s\n", err.Error())
	}
}
