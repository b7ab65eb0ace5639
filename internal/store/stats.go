package store

import "sync/atomic"

// counters holds the hot-path statistics. Plain atomic increments keep
// them cheap under concurrent operations; no lock is ever taken.
type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	puts      atomic.Int64
	evictions atomic.Int64
}

func (c *counters) snapshot() Statistics {
	return Statistics{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Puts:      c.puts.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *counters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.puts.Store(0)
	c.evictions.Store(0)
}

// Statistics is an immutable snapshot of the cache counters.
//
// Evictions counts explicitly removed rows: single evicts, batch and
// pattern evicts, and every row removed by Clear. Rows removed by the
// expiration sweep are not counted.
type Statistics struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Puts      int64 `json:"puts"`
	Evictions int64 `json:"evictions"`
}

// Requests returns the total number of lookups.
func (s Statistics) Requests() int64 {
	return s.Hits + s.Misses
}

// HitRate returns hits/requests, or 0.0 when there were no requests.
func (s Statistics) HitRate() float64 {
	total := s.Requests()
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total)
}

// MissRate returns misses/requests, or 0.0 when there were no requests.
func (s Statistics) MissRate() float64 {
	total := s.Requests()
	if total == 0 {
		return 0.0
	}
	return float64(s.Misses) / float64(total)
}
