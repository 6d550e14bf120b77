package main

import (
	"errors"
	"log"
	"net/http"
	"time"
	"tqs/src/common"
	"tqs/src/config"
	"tqs/src/db"
	"tqs/src/models"
	"tqs/src/types"
	"tqs/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func eventResponse(ctx *gin.Context, event *models.Event) types.APIResponseEvent {
	remaining, err := common.RemainingSeats(ctx.Request.Context(), event.ID.String())
	if err != nil {
		log.Printf("[events] Could not read remaining seats for event %s: %s\n", event.ID.String(), err.Error())
	}
	return types.APIResponseEvent{
		ID:             event.ID.String(),
		Name:           event.Name,
		TotalSeats:     event.TotalSeats,
		SalesStartAt:   event.SalesStartAt,
		SalesEndAt:     event.SalesEndAt,
		RemainingSeats: remaining,
	}
}

func eventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events", func(ctx *gin.Context) {
			var events []models.Event
			gdb := db.GetDb()
			if err := gdb.
				Order("sales_start_at asc").
				Find(&events).
				Error; err != nil {
				log.Printf("[events] Error listing events: %s\n", err.Error())
				utils.AbortWithError(ctx, http.StatusInternalServerError, "could not list events")
				return
			}
			data := make([]types.APIResponseEvent, 0, len(events))
			for i := range events {
				data = append(data, eventResponse(ctx, &events[i]))
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data})
		}).
		GET("/events/:id", func(ctx *gin.Context) {
			var params types.EventURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				utils.AbortWithError(ctx, http.StatusBadRequest, err.Error())
				return
			}
			var event models.Event
			gdb := db.GetDb()
			if err := gdb.
				Model(&models.Event{}).
				Where("id = ?", params.ID).
				First(&event).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					utils.AbortWithError(ctx, http.StatusNotFound, "event not found")
					return
				}
				log.Printf("[events] Error retrieving event %s: %s\n", params.ID, err.Error())
				utils.AbortWithError(ctx, http.StatusInternalServerError, "could not load event")
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": eventResponse(ctx, &event)})
		})
	return g
}

func recordTrail(ctx *gin.Context, action, entityId string) {
	gdb := db.GetDb()
	trail := models.TrailLog{
		Action:    action,
		Initiator: ctx.GetString("id"),
		EntityID:  entityId,
	}
	if err := gdb.Create(&trail).Error; err != nil {
		log.Printf("[trail] Could not record %s for %s: %s\n", action, entityId, err.Error())
	}
}

func adminEventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/events", func(ctx *gin.Context) {
			var body types.CreateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				utils.AbortWithError(ctx, http.StatusBadRequest, err.Error())
				return
			}
			salesStartAt, err := time.Parse(config.TIME_PARSE_FORMAT, body.SalesStartAt)
			if err != nil {
				utils.AbortWithError(ctx, http.StatusBadRequest, "salesStartAt is not a valid timestamp")
				return
			}
			salesEndAt, err := time.Parse(config.TIME_PARSE_FORMAT, body.SalesEndAt)
			if err != nil {
				utils.AbortWithError(ctx, http.StatusBadRequest, "salesEndAt is not a valid timestamp")
				return
			}

			event := models.Event{
				Name:         body.Name,
				TotalSeats:   body.TotalSeats,
				SalesStartAt: salesStartAt,
				SalesEndAt:   salesEndAt,
				CreatedBy:    uuid.MustParse(ctx.GetString("id")),
			}
			gdb := db.GetDb()
			if err := gdb.Create(&event).Error; err != nil {
				log.Printf("[events] Error creating event: %s\n", err.Error())
				utils.AbortWithError(ctx, http.StatusInternalServerError, "could not create event")
				return
			}
			if err := common.InitializeSeats(ctx.Request.Context(), event.ID.String(), event.TotalSeats); err != nil {
				log.Printf("[events] Error seeding seat counter for event %s: %s\n", event.ID.String(), err.Error())
				utils.AbortWithError(ctx, http.StatusInternalServerError, "could not initialize seat inventory")
				return
			}
			recordTrail(ctx, "event.create", event.ID.String())
			ctx.JSON(http.StatusCreated, gin.H{"data": eventResponse(ctx, &event)})
		}).
		PATCH("/events/:id", func(ctx *gin.Context) {
			var params types.EventURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				utils.AbortWithError(ctx, http.StatusBadRequest, err.Error())
				return
			}
			var body types.UpdateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				utils.AbortWithError(ctx, http.StatusBadRequest, err.Error())
				return
			}

			gdb := db.GetDb()
			var event models.Event
			if err := gdb.
				Model(&models.Event{}).
				Where("id = ?", params.ID).
				First(&event).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					utils.AbortWithError(ctx, http.StatusNotFound, "event not found")
					return
				}
				utils.AbortWithError(ctx, http.StatusInternalServerError, "could not load event")
				return
			}

			updates := map[string]any{}
			if body.Name != nil {
				updates["name"] = *body.Name
			}
			if body.SalesStartAt != nil {
				t, err := time.Parse(config.TIME_PARSE_FORMAT, *body.SalesStartAt)
				if err != nil {
					utils.AbortWithError(ctx, http.StatusBadRequest, "salesStartAt is not a valid timestamp")
					return
				}
				updates["sales_start_at"] = t
				event.SalesStartAt = t
			}
			if body.SalesEndAt != nil {
				t, err := time.Parse(config.TIME_PARSE_FORMAT, *body.SalesEndAt)
				if err != nil {
					utils.AbortWithError(ctx, http.StatusBadRequest, "salesEndAt is not a valid timestamp")
					return
				}
				updates["sales_end_at"] = t
				event.SalesEndAt = t
			}
			if !event.SalesEndAt.After(event.SalesStartAt) {
				utils.AbortWithError(ctx, http.StatusBadRequest, "salesEndAt must be after salesStartAt")
				return
			}
			if len(updates) > 0 {
				if body.Name != nil {
					event.Name = *body.Name
				}
				if err := gdb.
					Model(&models.Event{}).
					Where("id = ?", event.ID).
					Updates(updates).
					Error; err != nil {
					log.Printf("[events] Error updating event %s: %s\n", params.ID, err.Error())
					utils.AbortWithError(ctx, http.StatusInternalServerError, "could not update event")
					return
				}
				recordTrail(ctx, "event.update", event.ID.String())
			}
			ctx.JSON(http.StatusOK, gin.H{"data": eventResponse(ctx, &event)})
		}).
		GET("/events/:id/stats", func(ctx *gin.Context) {
			var params types.EventURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				utils.AbortWithError(ctx, http.StatusBadRequest, err.Error())
				return
			}
			gdb := db.GetDb()
			var event models.Event
			if err := gdb.
				Model(&models.Event{}).
				Where("id = ?", params.ID).
				First(&event).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					utils.AbortWithError(ctx, http.StatusNotFound, "event not found")
					return
				}
				utils.AbortWithError(ctx, http.StatusInternalServerError, "could not load event")
				return
			}

			rctx := ctx.Request.Context()
			remaining, err := common.RemainingSeats(rctx, params.ID)
			if err != nil {
				log.Printf("[events] Could not read remaining seats for event %s: %s\n", params.ID, err.Error())
				utils.AbortWithError(ctx, http.StatusInternalServerError, "could not read seat inventory")
				return
			}
			queueLen, err := common.QueueLength(rctx, params.ID)
			if err != nil {
				log.Printf("[events] Could not read queue length for event %s: %s\n", params.ID, err.Error())
				utils.AbortWithError(ctx, http.StatusInternalServerError, "could not read queue")
				return
			}

			type statusCount struct {
				Status string
				Count  int64
			}
			var rows []statusCount
			if err := gdb.
				Model(&models.Reservation{}).
				Select("status", "count(*) as count").
				Where("event_id = ?", params.ID).
				Group("status").
				Scan(&rows).
				Error; err != nil {
				log.Printf("[events] Could not count reservations for event %s: %s\n", params.ID, err.Error())
				utils.AbortWithError(ctx, http.StatusInternalServerError, "could not count reservations")
				return
			}
			counts := map[string]int64{}
			for _, row := range rows {
				counts[row.Status] = row.Count
			}

			ctx.JSON(http.StatusOK, gin.H{"data": types.EventStatsResponse{
				EventID:           params.ID,
				RemainingSeats:    remaining,
				QueueLength:       queueLen,
				ReservationCounts: counts,
			}})
		})
	return g
}
