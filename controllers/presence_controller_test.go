package controllers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The roster payload is parsed by clients keyed on these exact names;
// a renamed or dropped field silently reads as zero on their side.
func TestOnlineMemberPayloadKeys(t *testing.T) {
	b, err := json.Marshal(onlineMember{
		ID:         7,
		Username:   "ana",
		AvatarURL:  "https://example.com/a.png",
		Role:       "admin",
		Status:     "online",
		Reputation: 12,
		PostCount:  3,
		LastSeenAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))

	for _, key := range []string{"id", "username", "avatar_url", "role", "status", "reputation", "postCount", "lastSeenAt"} {
		assert.Contains(t, m, key)
	}
	assert.Equal(t, "admin", m["role"])
}
