package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-assistant/internal/ai"
	"github.com/spec-kit/support-assistant/internal/config"
	"github.com/spec-kit/support-assistant/internal/domain"
	"github.com/spec-kit/support-assistant/internal/events"
	apperrors "github.com/spec-kit/support-assistant/pkg/util"
)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
	nextID  int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.nextID++
	ticket.ID = fmt.Sprintf("ticket-%d", r.nextID)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *fakeTicketRepo) ListByUser(_ context.Context, userID string) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.UserID == userID {
			result = append(result, *ticket)
		}
	}
	return result, nil
}

func (r *fakeTicketRepo) Touch(_ context.Context, id string) error {
	ticket, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	return nil
}

type fakeMessageRepo struct {
	messages []domain.Message
	nextID   int
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.nextID++
	msg.ID = fmt.Sprintf("msg-%d", r.nextID)
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	var result []domain.Message
	for _, msg := range r.messages {
		if msg.TicketID == ticketID {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (r *fakeMessageRepo) aiMessages(ticketID string) []domain.Message {
	var result []domain.Message
	for _, msg := range r.messages {
		if msg.TicketID == ticketID && msg.IsAI {
			result = append(result, msg)
		}
	}
	return result
}

type fakeLocker struct {
	denied   bool
	acquired int
	released int
}

func (l *fakeLocker) AcquireStreamLock(context.Context, string, time.Duration) (bool, error) {
	if l.denied {
		return false, nil
	}
	l.acquired++
	return true, nil
}

func (l *fakeLocker) ReleaseStreamLock(context.Context, string) {
	l.released++
}

type fixture struct {
	svc      *TicketService
	tickets  *fakeTicketRepo
	messages *fakeMessageRepo
	locker   *fakeLocker
	gen      *stubServiceGenerator
}

type stubServiceGenerator struct {
	reply string
	err   error
	calls int
}

func (g *stubServiceGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newFixture() *fixture {
	tickets := newFakeTicketRepo()
	messages := &fakeMessageRepo{}
	locker := &fakeLocker{}
	gen := &stubServiceGenerator{reply: "Have you tried turning it off and on again?"}
	responder := ai.NewResponder(gen, config.AIConfig{
		ChunkSize:       10,
		SimulatedPacing: true,
	})
	svc := NewTicketService(TicketDependencies{
		TicketRepo:  tickets,
		MessageRepo: messages,
		Responder:   responder,
		Locks:       locker,
		Dispatcher:  events.NewInMemoryDispatcher(),
	})
	return &fixture{svc: svc, tickets: tickets, messages: messages, locker: locker, gen: gen}
}

var (
	userA = &domain.User{ID: "user-a", Role: domain.RoleUser}
	userB = &domain.User{ID: "user-b", Role: domain.RoleUser}
	admin = &domain.User{ID: "user-admin", Role: domain.RoleAdmin}
)

func createTicket(t *testing.T, f *fixture, owner *domain.User) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.Create(context.Background(), owner, TicketCreateInput{
		Title:       "Login issue",
		Description: "Cannot log in since yesterday",
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateTicketOwnedByCallerAndOpen(t *testing.T) {
	f := newFixture()
	ticket := createTicket(t, f, userA)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, userA.ID, ticket.UserID)
	assert.Equal(t, "Login issue", ticket.Title)
}

func TestGetTicketAccessMatrix(t *testing.T) {
	f := newFixture()
	ticket := createTicket(t, f, userA)

	_, _, err := f.svc.Get(context.Background(), userA, ticket.ID)
	assert.NoError(t, err, "owner can read")

	_, _, err = f.svc.Get(context.Background(), userB, ticket.ID)
	require.Error(t, err)
	assert.Equal(t, 403, apperrors.ToDomainError(err).HTTPStatus, "stranger is forbidden")

	_, _, err = f.svc.Get(context.Background(), admin, ticket.ID)
	assert.NoError(t, err, "admin can read any ticket")
}

func TestGetMissingTicketIsNotFoundForEveryone(t *testing.T) {
	f := newFixture()

	for _, user := range []*domain.User{userA, admin} {
		_, _, err := f.svc.Get(context.Background(), user, "ticket-missing")
		require.Error(t, err)
		assert.Equal(t, 404, apperrors.ToDomainError(err).HTTPStatus)
	}
}

func TestListReturnsOnlyOwnTickets(t *testing.T) {
	f := newFixture()
	createTicket(t, f, userA)
	createTicket(t, f, userB)

	tickets, err := f.svc.List(context.Background(), userA)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, userA.ID, tickets[0].UserID)

	// Admins get no scope-widening on listing, matching single-ticket
	// access asymmetry.
	adminTickets, err := f.svc.List(context.Background(), admin)
	require.NoError(t, err)
	assert.Empty(t, adminTickets)
}

func TestAddMessagePreservesOrder(t *testing.T) {
	f := newFixture()
	ticket := createTicket(t, f, userA)

	_, err := f.svc.AddMessage(context.Background(), userA, ticket.ID, "Hi", false)
	require.NoError(t, err)
	_, err = f.svc.AddMessage(context.Background(), userA, ticket.ID, "Still broken", false)
	require.NoError(t, err)

	_, msgs, err := f.svc.Get(context.Background(), userA, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi", msgs[0].Content)
	assert.Equal(t, "Still broken", msgs[1].Content)
	assert.False(t, msgs[1].CreatedAt.Before(msgs[0].CreatedAt))
}

func TestAddMessageDeniedForStranger(t *testing.T) {
	f := newFixture()
	ticket := createTicket(t, f, userA)

	_, err := f.svc.AddMessage(context.Background(), userB, ticket.ID, "sneaky", false)
	require.Error(t, err)
	assert.Equal(t, 403, apperrors.ToDomainError(err).HTTPStatus)
	assert.Empty(t, f.messages.messages)
}

func TestStreamAIReplyPersistsExactlyWhatWasStreamed(t *testing.T) {
	f := newFixture()
	ticket := createTicket(t, f, userA)
	_, err := f.svc.AddMessage(context.Background(), userA, ticket.ID, "Hi", false)
	require.NoError(t, err)

	var streamed strings.Builder
	msg, err := f.svc.StreamAIReply(context.Background(), userA, ticket.ID, func(chunk string) error {
		streamed.WriteString(chunk)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, f.gen.reply, msg.Content)
	assert.Equal(t, streamed.String(), msg.Content)
	assert.True(t, msg.IsAI)

	persisted := f.messages.aiMessages(ticket.ID)
	require.Len(t, persisted, 1)
	assert.Equal(t, streamed.String(), persisted[0].Content)

	assert.Equal(t, 1, f.locker.acquired)
	assert.Equal(t, 1, f.locker.released)
}

func TestStreamAIReplyUpstreamFailurePersistsNothing(t *testing.T) {
	f := newFixture()
	ticket := createTicket(t, f, userA)
	f.gen.err = errors.New("provider down")

	_, err := f.svc.StreamAIReply(context.Background(), userA, ticket.ID, func(string) error {
		t.Fatal("no chunk should be emitted")
		return nil
	})
	require.Error(t, err)
	assert.Empty(t, f.messages.aiMessages(ticket.ID))
	assert.Equal(t, 1, f.locker.released, "lock released on failure")
}

func TestStreamAIReplyClientDisconnectPersistsNothing(t *testing.T) {
	f := newFixture()
	ticket := createTicket(t, f, userA)

	ctx, cancel := context.WithCancel(context.Background())
	emitted := 0
	_, err := f.svc.StreamAIReply(ctx, userA, ticket.ID, func(string) error {
		emitted++
		cancel() // simulate the client going away after the first chunk
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 1, emitted)
	assert.Empty(t, f.messages.aiMessages(ticket.ID))
}

func TestStreamAIReplyAccessChecks(t *testing.T) {
	f := newFixture()
	ticket := createTicket(t, f, userA)

	_, err := f.svc.StreamAIReply(context.Background(), userB, ticket.ID, func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, 403, apperrors.ToDomainError(err).HTTPStatus)

	_, err = f.svc.StreamAIReply(context.Background(), userA, "ticket-missing", func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, 404, apperrors.ToDomainError(err).HTTPStatus)

	assert.Zero(t, f.gen.calls, "provider never called when access is denied")
}

func TestStreamAIReplyLockDenied(t *testing.T) {
	f := newFixture()
	ticket := createTicket(t, f, userA)
	f.locker.denied = true

	_, err := f.svc.StreamAIReply(context.Background(), userA, ticket.ID, func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
	assert.Zero(t, f.gen.calls)
}

func TestStreamAIReplyUsesThreadHistory(t *testing.T) {
	f := newFixture()
	ticket := createTicket(t, f, userA)
	_, err := f.svc.AddMessage(context.Background(), userA, ticket.ID, "Hi", false)
	require.NoError(t, err)

	_, err = f.svc.StreamAIReply(context.Background(), userA, ticket.ID, func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, f.gen.calls)

	// The persisted AI reply becomes part of the thread for follow-ups.
	_, msgs, err := f.svc.Get(context.Background(), userA, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].IsAI)
}
