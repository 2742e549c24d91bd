package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiterMiddleware(1, 1, zap.NewNop())
	defer rl.Stop()

	rl.getClientLimiter("a")
	rl.getClientLimiter("b")
	rl.clients["a"].lastSeen = time.Now().Add(-time.Hour)

	assert.Equal(t, 1, rl.evictIdle(time.Now()))
	assert.NotContains(t, rl.clients, "a")
	assert.Contains(t, rl.clients, "b")
}
