package mesh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsWithinWindow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	now := time.Unix(1_700_000_000, 0)

	require.True(t, rl.Allow("1.2.3.4", now))
	require.True(t, rl.Allow("1.2.3.4", now))
	require.True(t, rl.Allow("1.2.3.4", now))
	require.False(t, rl.Allow("1.2.3.4", now))
}

func TestRateLimiterSlidingWindowExpires(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Unix(1_700_000_000, 0)

	require.True(t, rl.Allow("1.2.3.4", now))
	require.False(t, rl.Allow("1.2.3.4", now.Add(30*time.Second)))
	require.True(t, rl.Allow("1.2.3.4", now.Add(61*time.Second)))
}

func TestRateLimiterPerIPIsolation(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Unix(1_700_000_000, 0)

	require.True(t, rl.Allow("1.1.1.1", now))
	require.True(t, rl.Allow("2.2.2.2", now))
}
