package main

import (
	"errors"
	"log"
	"net/http"
	"tqs/src/common"
	"tqs/src/db"
	"tqs/src/models"
	"tqs/src/types"
	"tqs/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func loadQueueEvent(ctx *gin.Context) (*models.Event, bool) {
	var params types.EventURIParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		utils.AbortWithError(ctx, http.StatusBadRequest, err.Error())
		return nil, false
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
			return nil, false
		}
		log.Printf("[queue] Error loading event %s: %s\n", params.ID, err.Error())
		utils.AbortWithError(ctx, http.StatusInternalServerError, "could not load event")
		return nil, false
	}
	return &event, true
}

func queueHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/events/:id/queue/join", func(ctx *gin.Context) {
			event, ok := loadQueueEvent(ctx)
			if !ok {
				return
			}
			userId := ctx.GetString("id")
			resp, err := common.JoinQueue(ctx.Request.Context(), event, userId)
			if err != nil {
				switch {
				case errors.Is(err, common.ErrSalesNotStarted):
					utils.AbortWithError(ctx, http.StatusBadRequest, "sales have not started for this event")
				case errors.Is(err, common.ErrSalesEnded):
					utils.AbortWithError(ctx, http.StatusBadRequest, "sales have ended for this event")
				default:
					log.Printf("[queue] Join failed for user %s on event %s: %s\n", userId, event.ID.String(), err.Error())
					utils.AbortWithError(ctx, http.StatusInternalServerError, "could not join queue")
				}
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": resp})
		}).
		GET("/events/:id/queue/me", func(ctx *gin.Context) {
			event, ok := loadQueueEvent(ctx)
			if !ok {
				return
			}
			userId := ctx.GetString("id")
			resp, err := common.QueueStatusFor(ctx.Request.Context(), event, userId)
			if err != nil {
				if errors.Is(err, common.ErrNotInQueue) {
					utils.AbortWithError(ctx, http.StatusNotFound, "not in queue for this event")
					return
				}
				log.Printf("[queue] Status read failed for user %s on event %s: %s\n", userId, event.ID.String(), err.Error())
				utils.AbortWithError(ctx, http.StatusInternalServerError, "could not read queue status")
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": resp})
		})
	return g
}
