package ttl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func secs(n int64) *int64 {
	return &n
}

func TestIsExpired_Permanent(t *testing.T) {
	created := time.Now()
	// No TTL never expires, no matter how far the clock moves.
	require.False(t, IsExpired(created, created, nil, Absolute, created.Add(1000*time.Hour)))
	require.False(t, IsExpired(created, created, nil, Sliding, created.Add(1000*time.Hour)))
}

func TestIsExpired_Absolute(t *testing.T) {
	created := time.Now()
	accessed := created.Add(30 * time.Second) // must be ignored for ABSOLUTE

	require.False(t, IsExpired(created, accessed, secs(10), Absolute, created.Add(5*time.Second)))
	// The boundary itself is still live (strict greater-than).
	require.False(t, IsExpired(created, accessed, secs(10), Absolute, created.Add(10*time.Second)))
	require.True(t, IsExpired(created, accessed, secs(10), Absolute, created.Add(10*time.Second+time.Millisecond)))
}

func TestIsExpired_Sliding(t *testing.T) {
	created := time.Now()
	accessed := created.Add(8 * time.Second)

	// Measured from last access, not creation.
	require.False(t, IsExpired(created, accessed, secs(10), Sliding, created.Add(15*time.Second)))
	require.False(t, IsExpired(created, accessed, secs(10), Sliding, accessed.Add(10*time.Second)))
	require.True(t, IsExpired(created, accessed, secs(10), Sliding, accessed.Add(10*time.Second+time.Millisecond)))
}

func TestRemaining(t *testing.T) {
	created := time.Now()

	_, ok := Remaining(created, created, nil, Absolute, created)
	require.False(t, ok, "permanent entries report no TTL")

	remaining, ok := Remaining(created, created, secs(10), Absolute, created.Add(4*time.Second))
	require.True(t, ok)
	require.Equal(t, 6*time.Second, remaining)

	// Already expired: reported as absent, never negative.
	_, ok = Remaining(created, created, secs(10), Absolute, created.Add(11*time.Second))
	require.False(t, ok)

	// Sliding counts from last access.
	accessed := created.Add(5 * time.Second)
	remaining, ok = Remaining(created, accessed, secs(10), Sliding, created.Add(8*time.Second))
	require.True(t, ok)
	require.Equal(t, 7*time.Second, remaining)
}

func TestParsePolicy(t *testing.T) {
	require.Equal(t, Sliding, ParsePolicy("SLIDING"))
	require.Equal(t, Absolute, ParsePolicy("ABSOLUTE"))
	// Unknown or legacy values fall back to ABSOLUTE so old rows stay readable.
	require.Equal(t, Absolute, ParsePolicy(""))
	require.Equal(t, Absolute, ParsePolicy("bogus"))
}
