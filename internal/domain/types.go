package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAttendee, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

type EventStatus string

const (
	EventPending  EventStatus = "pending"
	EventApproved EventStatus = "approved"
	EventRejected EventStatus = "rejected"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
)

// Session is the authenticated user's profile together with the bearer token.
type Session struct {
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	AccessToken string `json:"access_token"`
}

type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      Role   `json:"role"`
}

type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     time.Time   `json:"end_time"`
	Category    string      `json:"category"`
	Tags        []string    `json:"tags"`
	ImageURL    string      `json:"image_url"`
	Status      EventStatus `json:"status"`
	OrganizerID string      `json:"organizer_id"`
}

type TicketType struct {
	ID            string          `json:"id"`
	EventID       string          `json:"event_id"`
	Type          string          `json:"type"`
	Price         decimal.Decimal `json:"price"`
	QuantityTotal int             `json:"quantity_total"`
	QuantitySold  int             `json:"quantity_sold"`
}

// Remaining is what the server reports as still on sale. It is never
// clamped: the client only displays server-computed inventory.
func (t TicketType) Remaining() int {
	return t.QuantityTotal - t.QuantitySold
}

type Attendee struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	TicketID  string `json:"ticket_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CheckedIn bool   `json:"checked_in"`
}

type OrderAttendee struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	TicketID string `json:"ticket_id"`
}

type Order struct {
	ID           string          `json:"id"`
	EventID      string          `json:"event_id"`
	Attendees    []OrderAttendee `json:"attendees"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Status       OrderStatus     `json:"status"`
	MpesaReceipt string          `json:"mpesa_receipt,omitempty"`
}
