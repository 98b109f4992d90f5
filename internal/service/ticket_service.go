package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-assistant/internal/ai"
	"github.com/spec-kit/support-assistant/internal/auth"
	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/events"
	"github.com/spec-kit/support-assistant/internal/repository"
	apperrors "github.com/spec-kit/support-assistant/pkg/util"
)

// streamLockTTL bounds how long a stuck stream can hold the per-ticket
// lock before it self-expires.
const streamLockTTL = 2 * time.Minute

// StreamLocker guards against two concurrent AI streams persisting
// replies for the same ticket.
type StreamLocker interface {
	AcquireStreamLock(ctx context.Context, ticketID string, ttl time.Duration) (bool, error)
	ReleaseStreamLock(ctx context.Context, ticketID string)
}

// TicketService coordinates ticket workflows, including the streamed
// AI-reply pipeline.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	responder  *ai.Responder
	locks      StreamLocker
	dispatcher events.Dispatcher
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	Responder   *ai.Responder
	Locks       StreamLocker
	Dispatcher  events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		responder:  deps.Responder,
		locks:      deps.Locks,
		dispatcher: deps.Dispatcher,
	}
}

// Create opens a new ticket owned by the caller.
func (s *TicketService) Create(ctx context.Context, user *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		UserID:      user.ID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		UserID:   user.ID,
		Payload:  events.TicketCreatedPayload{Title: ticket.Title},
	})
	return ticket, nil
}

// List returns the caller's own tickets. Admins see only their own
// tickets here; scope-widening applies to single-ticket access only.
func (s *TicketService) List(ctx context.Context, user *domain.User) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Get fetches a ticket and its chronological message thread. Existence
// is checked before ownership so a missing ticket is not-found for
// every caller.
func (s *TicketService) Get(ctx context.Context, user *domain.User, ticketID string) (*domain.Ticket, []domain.Message, error) {
	ticket, err := s.authorizeTicket(ctx, user, ticketID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, msgs, nil
}

// AddMessage appends a message to the ticket thread and refreshes the
// ticket's updated_at.
func (s *TicketService) AddMessage(ctx context.Context, user *domain.User, ticketID, content string, isAI bool) (*domain.Message, error) {
	ticket, err := s.authorizeTicket(ctx, user, ticketID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		TicketID: ticket.ID,
		Content:  content,
		IsAI:     isAI,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.tickets.Touch(ctx, ticket.ID); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		UserID:   user.ID,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			IsAI:        msg.IsAI,
			BodyPreview: preview(msg.Content),
		},
	})
	return msg, nil
}

// StreamAIReply generates an AI reply from the ticket's full history,
// delivering it chunk by chunk through emit. When the stream completes
// the reply is persisted exactly once as an is_ai message, and only
// then does this method return; callers must send their end-of-stream
// marker after it does. Upstream failure, emit failure or client
// disconnect all skip persistence entirely.
func (s *TicketService) StreamAIReply(ctx context.Context, user *domain.User, ticketID string, emit ai.EmitFunc) (*domain.Message, error) {
	ticket, err := s.authorizeTicket(ctx, user, ticketID)
	if err != nil {
		return nil, err
	}

	if s.locks != nil {
		acquired, err := s.locks.AcquireStreamLock(ctx, ticket.ID, streamLockTTL)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !acquired {
			return nil, apperrors.NewConflict("an AI reply is already being generated for this ticket", nil)
		}
		defer s.locks.ReleaseStreamLock(context.WithoutCancel(ctx), ticket.ID)
	}

	history, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	full, err := s.responder.StreamReply(ctx, ticket, history, emit)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// Canceled between the last chunk and persistence, e.g. by
		// shutdown or a request timeout. Treat it as a failed stream.
		return nil, err
	}

	msg := &domain.Message{
		TicketID: ticket.ID,
		Content:  full,
		IsAI:     true,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.tickets.Touch(ctx, ticket.ID); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventAIReplyCompleted,
		TicketID: ticket.ID,
		UserID:   user.ID,
		Payload: events.AIReplyCompletedPayload{
			MessageID:   msg.ID,
			ReplyLength: len(msg.Content),
		},
	})
	return msg, nil
}

// Authorize verifies the caller may access the ticket without loading
// its thread. The SSE handler needs the verdict before the response is
// switched to streaming mode, where status codes can no longer change.
func (s *TicketService) Authorize(ctx context.Context, user *domain.User, ticketID string) error {
	_, err := s.authorizeTicket(ctx, user, ticketID)
	return err
}

func (s *TicketService) authorizeTicket(ctx context.Context, user *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, apperrors.MapError(err)
	}
	if !auth.CanAccess(user, ticket) {
		return nil, apperrors.NewForbidden("not enough permissions")
	}
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}

func preview(content string) string {
	const max = 80
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max])
}
