package domain

import "time"

// Message captures one entry in a ticket thread. Messages are immutable
// once created and are always read back in chronological order because
// the AI prompt builder depends on it.
type Message struct {
	ID        string
	TicketID  string
	Content   string
	IsAI      bool
	CreatedAt time.Time
}
