package auth

import "github.com/spec-kit/support-assistant/internal/domain"

// CanAccess decides whether the user may read or write the ticket and
// its messages: the owner always can, admins can for any ticket.
// Callers must check ticket existence first so that a missing ticket
// reports not-found rather than forbidden.
func CanAccess(user *domain.User, ticket *domain.Ticket) bool {
	if user == nil || ticket == nil {
		return false
	}
	return ticket.UserID == user.ID || user.IsAdmin()
}
