package dto

import (
	"time"

	"github.com/spec-kit/support-assistant/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Content string `json:"content"`
	IsAI    bool   `json:"is_ai"`
}

// TicketResponse summarizes a ticket.
type TicketResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      domain.TicketStatus `json:"status"`
	UserID      string              `json:"user_id"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info with its thread.
type TicketDetailResponse struct {
	TicketResponse
	Messages []MessageResponse `json:"messages"`
}

// MessageResponse represents a thread message.
type MessageResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Content   string    `json:"content"`
	IsAI      bool      `json:"is_ai"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Status:      ticket.Status,
		UserID:      ticket.UserID,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

// NewMessageResponse maps a domain message.
func NewMessageResponse(msg *domain.Message) MessageResponse {
	return MessageResponse{
		ID:        msg.ID,
		TicketID:  msg.TicketID,
		Content:   msg.Content,
		IsAI:      msg.IsAI,
		CreatedAt: msg.CreatedAt,
	}
}

// NewTicketDetailResponse maps a ticket with its ordered messages.
func NewTicketDetailResponse(ticket *domain.Ticket, messages []domain.Message) TicketDetailResponse {
	msgs := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		msgs = append(msgs, NewMessageResponse(&messages[i]))
	}
	return TicketDetailResponse{
		TicketResponse: NewTicketResponse(ticket),
		Messages:       msgs,
	}
}
