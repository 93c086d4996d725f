package httpgin

import (
	"github.com/kirinyoku/ticksy/internal/domain"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	User        domain.User `json:"user"`
	AccessToken string      `json:"access_token,omitempty"`
}

type CheckoutRequest struct {
	EventID   string                 `json:"event_id"`
	Attendees []domain.OrderAttendee `json:"attendees" binding:"required"`
	PayNow    bool                   `json:"pay_now"`
}

type EventStatusRequest struct {
	Status domain.EventStatus `json:"status" binding:"required"`
}

type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}
