package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var nilSession *Session
	assert.True(t, nilSession.Expired(now, 0))
	assert.False(t, (&Session{}).Expired(now, 0), "unknown expiry is treated as valid")

	s := &Session{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, s.Expired(now, 30*time.Second))
	assert.True(t, s.Expired(now, time.Minute))
	assert.True(t, s.Expired(now.Add(2*time.Minute), 0))
}
