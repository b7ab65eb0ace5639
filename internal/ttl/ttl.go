package ttl

import "time"

// Policy determines which timestamp an entry's TTL is measured from.
type Policy string

const (
	// Absolute expires an entry a fixed time after it was written.
	Absolute Policy = "ABSOLUTE"
	// Sliding expires an entry a fixed time after it was last accessed,
	// so refreshing reads keep it alive.
	Sliding Policy = "SLIDING"
)

// Default returns the policy used when none is stored.
func Default() Policy {
	return Absolute
}

// ParsePolicy maps a stored policy string to a Policy, defaulting to
// Absolute for unknown values so old rows stay readable.
func ParsePolicy(s string) Policy {
	if Policy(s) == Sliding {
		return Sliding
	}
	return Absolute
}

// referenceTime picks the timestamp the TTL counts from.
func referenceTime(updatedAt, lastAccessed time.Time, policy Policy) time.Time {
	if policy == Sliding {
		return lastAccessed
	}
	return updatedAt
}

// IsExpired reports whether an entry is past its TTL at the given instant.
// A nil ttlSeconds means the entry is permanent and never expires.
// The boundary itself is still live: expiry requires now to be strictly
// after reference + ttl.
func IsExpired(updatedAt, lastAccessed time.Time, ttlSeconds *int64, policy Policy, now time.Time) bool {
	if ttlSeconds == nil {
		return false
	}
	ref := referenceTime(updatedAt, lastAccessed, policy)
	return now.After(ref.Add(time.Duration(*ttlSeconds) * time.Second))
}

// Remaining returns the time left before an entry expires. The second
// return is false when the entry is permanent or already expired; a
// negative remainder is never reported.
func Remaining(updatedAt, lastAccessed time.Time, ttlSeconds *int64, policy Policy, now time.Time) (time.Duration, bool) {
	if ttlSeconds == nil {
		return 0, false
	}
	ref := referenceTime(updatedAt, lastAccessed, policy)
	remaining := ref.Add(time.Duration(*ttlSeconds) * time.Second).Sub(now)
	if remaining < 0 {
		return 0, false
	}
	return remaining, true
}
