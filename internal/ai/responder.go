package ai

import (
	"context"
	"time"

	"github.com/spec-kit/support-assistant/internal/config"
	"github.com/spec-kit/support-assistant/internal/domain"
)

// Generator produces an assistant reply for a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// EmitFunc receives one chunk of a streamed reply. Returning an error
// aborts the stream; the caller then skips persistence.
type EmitFunc func(chunk string) error

// Responder turns ticket history into an AI reply and delivers it as a
// paced chunk stream. The upstream call itself is not streaming; pacing
// is simulated so clients render incrementally. SimulatedPacing is a
// policy flag so true upstream streaming can replace the chunker later
// without changing the external contract.
type Responder struct {
	generator       Generator
	chunkSize       int
	chunkDelay      time.Duration
	simulatedPacing bool
}

// NewResponder builds a responder from config.
func NewResponder(generator Generator, cfg config.AIConfig) *Responder {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 10
	}
	return &Responder{
		generator:       generator,
		chunkSize:       chunkSize,
		chunkDelay:      cfg.ChunkDelay(),
		simulatedPacing: cfg.SimulatedPacing,
	}
}

// Generate returns the complete reply for the ticket thread.
func (r *Responder) Generate(ctx context.Context, ticket *domain.Ticket, messages []domain.Message) (string, error) {
	return r.generator.Complete(ctx, BuildPrompt(ticket, messages))
}

// StreamReply generates the reply and feeds it through emit chunk by
// chunk, pausing between chunks and honoring cancellation. The returned
// string is always the exact concatenation of the emitted chunks, so
// the caller can persist it without divergence from what was streamed.
func (r *Responder) StreamReply(ctx context.Context, ticket *domain.Ticket, messages []domain.Message, emit EmitFunc) (string, error) {
	full, err := r.Generate(ctx, ticket, messages)
	if err != nil {
		return "", err
	}

	if !r.simulatedPacing {
		if err := emit(full); err != nil {
			return "", err
		}
		return full, nil
	}

	// Chunk on rune boundaries so multi-byte characters are never split
	// across SSE frames.
	runes := []rune(full)
	for start := 0; start < len(runes); start += r.chunkSize {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		end := start + r.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if err := emit(string(runes[start:end])); err != nil {
			return "", err
		}
		if r.chunkDelay > 0 && end < len(runes) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.chunkDelay):
			}
		}
	}
	return full, nil
}
