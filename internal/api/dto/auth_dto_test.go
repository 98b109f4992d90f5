package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-assistant/internal/domain"
)

func TestUserResponseNeverExposesPassword(t *testing.T) {
	user := &domain.User{
		ID:           "user-1",
		Email:        "alice@example.com",
		PasswordHash: "$2a$12$supersecret-hash-value",
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}

	body, err := json.Marshal(NewUserResponse(user))
	require.NoError(t, err)

	assert.NotContains(t, string(body), "supersecret")
	assert.NotContains(t, string(body), "password")
	assert.Contains(t, string(body), "alice@example.com")
}
