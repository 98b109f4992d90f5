package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. No operation in
// this service transitions the status; it is stored metadata until a
// status workflow exists.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Ticket is the aggregate for support requests. UserID is the owning
// requester and never changes after creation.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Status      TicketStatus
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
