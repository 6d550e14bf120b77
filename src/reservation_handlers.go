package main

import (
	"errors"
	"log"
	"net/http"
	"time"
	"tqs/src/common"
	"tqs/src/db"
	"tqs/src/models"
	"tqs/src/types"
	"tqs/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type reservationResponse struct {
	ID        string     `json:"id"`
	EventID   string     `json:"eventId"`
	UserID    string     `json:"userId"`
	Status    string     `json:"status"`
	Deadline  time.Time  `json:"deadline"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toReservationResponse(r *models.Reservation) reservationResponse {
	return reservationResponse{
		ID:        r.ID.String(),
		EventID:   r.EventID.String(),
		UserID:    r.UserID.String(),
		Status:    string(r.Status),
		Deadline:  r.Deadline,
		PaidAt:    r.PaidAt,
		CreatedAt: r.CreatedAt,
	}
}

func reservationHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/reservations/:id", func(ctx *gin.Context) {
			var params types.ReservationURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				utils.AbortWithError(ctx, http.StatusBadRequest, err.Error())
				return
			}
			var reservation models.Reservation
			gdb := db.GetDb()
			if err := gdb.
				Model(&models.Reservation{}).
				Where("id = ?", params.ID).
				First(&reservation).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					utils.AbortWithError(ctx, http.StatusNotFound, "reservation not found")
					return
				}
				log.Printf("[reservations] Error loading reservation %s: %s\n", params.ID, err.Error())
				utils.AbortWithError(ctx, http.StatusInternalServerError, "could not load reservation")
				return
			}
			if reservation.UserID.String() != ctx.GetString("id") {
				utils.AbortWithError(ctx, http.StatusForbidden, "reservation belongs to another user")
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": toReservationResponse(&reservation)})
		}).
		POST("/reservations/:id/pay", func(ctx *gin.Context) {
			var params types.ReservationURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				utils.AbortWithError(ctx, http.StatusBadRequest, err.Error())
				return
			}
			userId := ctx.GetString("id")
			reservation, err := common.PayReservation(ctx.Request.Context(), params.ID, userId)
			if err != nil {
				switch {
				case errors.Is(err, gorm.ErrRecordNotFound):
					utils.AbortWithError(ctx, http.StatusNotFound, "reservation not found")
				case errors.Is(err, common.ErrWrongOwner):
					utils.AbortWithError(ctx, http.StatusForbidden, "reservation belongs to another user")
				case errors.Is(err, common.ErrNotPending):
					utils.AbortWithError(ctx, http.StatusBadRequest, "reservation is no longer payable")
				case errors.Is(err, common.ErrDeadlineElapsed):
					utils.AbortWithError(ctx, http.StatusBadRequest, "payment window has closed")
				default:
					log.Printf("[reservations] Payment failed for reservation %s: %s\n", params.ID, err.Error())
					utils.AbortWithError(ctx, http.StatusInternalServerError, "could not settle reservation")
				}
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": toReservationResponse(reservation)})
		})
	return g
}
