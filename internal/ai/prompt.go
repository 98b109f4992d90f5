package ai

import (
	"strings"

	"github.com/spec-kit/support-assistant/internal/domain"
)

const (
	speakerAssistant = "Support Assistant"
	speakerCustomer  = "Customer"
)

// BuildPrompt assembles the completion prompt from the ticket and its
// chronological message history. When the last message in the thread is
// from the customer it is repeated as a highlighted latest message.
func BuildPrompt(ticket *domain.Ticket, messages []domain.Message) string {
	var b strings.Builder
	b.WriteString("You are a helpful customer support assistant.\n")
	b.WriteString("The customer has the following issue: ")
	b.WriteString(ticket.Description)
	b.WriteString("\n\nPrevious messages:\n")

	for _, msg := range messages {
		speaker := speakerCustomer
		if msg.IsAI {
			speaker = speakerAssistant
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	if n := len(messages); n > 0 && !messages[n-1].IsAI {
		b.WriteString("\nCustomer's latest message: ")
		b.WriteString(messages[n-1].Content)
		b.WriteString("\n")
	}

	b.WriteString("\nProvide a helpful response that addresses their concern:")
	return b.String()
}
