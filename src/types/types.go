package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type QueueEntryStatus string

const (
	QUEUE_WAITING QueueEntryStatus = "WAITING"
	QUEUE_ACTIVE  QueueEntryStatus = "ACTIVE"
	QUEUE_DONE    QueueEntryStatus = "DONE"
	QUEUE_EXPIRED QueueEntryStatus = "EXPIRED"
)

type ReservationStatus string

const (
	RESERVATION_PENDING_PAYMENT ReservationStatus = "PENDING_PAYMENT"
	RESERVATION_PAID            ReservationStatus = "PAID"
	RESERVATION_EXPIRED         ReservationStatus = "EXPIRED"
	// RESERVATION_CANCELED is modeled for a future cancellation path and is
	// never produced by the promotion or expiration flows.
	RESERVATION_CANCELED ReservationStatus = "CANCELED"
)

type UserRole string

const (
	ROLE_USER  UserRole = "user"
	ROLE_ADMIN UserRole = "admin"
)

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type LoginRequestBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterUserRequestBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type CreateEventRequestBody struct {
	Name         string `json:"name" binding:"required"`
	TotalSeats   uint   `json:"totalSeats" binding:"required,min=1"`
	SalesStartAt string `json:"salesStartAt" binding:"required,salesdate" time_format:"2006-01-02 15:04:05 -07:00"`
	SalesEndAt   string `json:"salesEndAt" binding:"required,salesdate,gtdate=SalesStartAt" time_format:"2006-01-02 15:04:05 -07:00"`
}

type UpdateEventRequestBody struct {
	Name         *string `json:"name,omitempty"`
	SalesStartAt *string `json:"salesStartAt,omitempty" binding:"omitempty,salesdate"`
	SalesEndAt   *string `json:"salesEndAt,omitempty" binding:"omitempty,salesdate"`
}

type EventURIParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type ReservationURIParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// APIError is the shared error body of every non-2xx response.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
}

type JoinQueueResponse struct {
	Position int64  `json:"position"`
	Status   string `json:"status"`
	EventID  string `json:"eventId"`
	Message  string `json:"message"`
}

type QueueMeResponse struct {
	Position      int64      `json:"position"`
	Status        string     `json:"status"`
	EventID       string     `json:"eventId"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	ReservationID *string    `json:"reservationId,omitempty"`
}

type EventStatsResponse struct {
	EventID           string           `json:"eventId"`
	RemainingSeats    int64            `json:"remainingSeats"`
	QueueLength       int64            `json:"queueLength"`
	ReservationCounts map[string]int64 `json:"reservationCounts"`
}

type APIResponseEvent struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	TotalSeats     uint      `json:"totalSeats"`
	SalesStartAt   time.Time `json:"salesStartAt"`
	SalesEndAt     time.Time `json:"salesEndAt"`
	RemainingSeats int64     `json:"remainingSeats"`
}

type APIResponseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type LoginResponse struct {
	AccessToken string          `json:"accessToken"`
	User        APIResponseUser `json:"user"`
}

// Socket event names, one room per user.
const (
	NOTIFY_QUEUE_POSITION      = "queue:position"
	NOTIFY_QUEUE_ACTIVE        = "queue:active"
	NOTIFY_QUEUE_SOLDOUT       = "queue:soldout"
	NOTIFY_RESERVATION_EXPIRED = "reservation:expired"
	NOTIFY_RESERVATION_PAID    = "reservation:paid"
)

type QueuePositionPayload struct {
	EventID  string `json:"eventId"`
	Position int64  `json:"position"`
	Status   string `json:"status"`
}

type QueueActivePayload struct {
	EventID       string    `json:"eventId"`
	ReservationID string    `json:"reservationId"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type QueueSoldOutPayload struct {
	EventID string `json:"eventId"`
}

type ReservationExpiredPayload struct {
	ReservationID string `json:"reservationId"`
	EventID       string `json:"eventId"`
}

type ReservationPaidPayload struct {
	ReservationID string    `json:"reservationId"`
	EventID       string    `json:"eventId"`
	PaidAt        time.Time `json:"paidAt"`
}
