package handlers

import (
	"bufio"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/support-assistant/internal/api/dto"
	"github.com/spec-kit/support-assistant/internal/auth"
	"github.com/spec-kit/support-assistant/internal/service"
	apperrors "github.com/spec-kit/support-assistant/pkg/util"
)

const (
	minTitleLength       = 3
	maxTitleLength       = 100
	minDescriptionLength = 10
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	logger  *zap.Logger
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, logger *zap.Logger) *TicketsHandler {
	return &TicketsHandler{service: ticketService, logger: logger}
}

// Create POST /tickets/.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	// Lengths are counted in characters, not bytes, so multi-byte
	// input is measured the same as ASCII.
	title := strings.TrimSpace(req.Title)
	if titleLen := utf8.RuneCountInString(title); titleLen < minTitleLength || titleLen > maxTitleLength {
		return apperrors.NewValidationError("title must be 3-100 characters", nil)
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Description)) < minDescriptionLength {
		return apperrors.NewValidationError("description must be at least 10 characters", nil)
	}

	ticket, err := h.service.Create(c.Context(), user, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// List GET /tickets/.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := h.service.List(c.Context(), user)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(items)
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	ticket, msgs, err := h.service.Get(c.Context(), user, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketDetailResponse(ticket, msgs))
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Content) == "" {
		return apperrors.NewValidationError("content required", nil)
	}

	msg, err := h.service.AddMessage(c.Context(), user, ticketID, req.Content, req.IsAI)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewMessageResponse(msg))
}

// StreamAIReply GET /tickets/:id/ai-response. Emits the reply over SSE
// as `data: <chunk>` frames. The AI message is persisted before the
// terminal `data: [DONE]` frame, so a client that re-reads the ticket
// after the end marker always finds the reply in the thread. A failure
// after the stream started becomes a terminal `event: error` frame.
func (h *TicketsHandler) StreamAIReply(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}

	// Authorization verdicts must be delivered as status codes, which
	// is impossible once the response body is streaming.
	if err := h.service.Authorize(c.Context(), user, ticketID); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// A client disconnect surfaces as a write failure on the next
	// flush, which aborts the stream and skips persistence. The
	// request context cancels only on server shutdown or timeout.
	reqCtx := c.Context()
	logger := h.logger

	reqCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		emit := func(chunk string) error {
			if _, err := fmt.Fprintf(w, "data: %s\n\n", chunk); err != nil {
				return err
			}
			return w.Flush()
		}

		if _, err := h.service.StreamAIReply(reqCtx, user, ticketID, emit); err != nil {
			logger.Warn("ai reply stream aborted",
				zap.String("ticket_id", ticketID),
				zap.Error(err))
			domainErr := apperrors.ToDomainError(err)
			_, _ = fmt.Fprintf(w, "event: error\ndata: %s\n\n", domainErr.Message)
			_ = w.Flush()
			return
		}

		_, _ = fmt.Fprintf(w, "data: [DONE]\n\n")
		_ = w.Flush()
	}))
	return nil
}

func parseTicketID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", apperrors.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}
