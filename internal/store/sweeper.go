package store

import (
	"context"
	"log"
	"sync"
	"time"
)

// sweeperShutdownWait bounds how long Shutdown waits for an in-flight
// cleanup pass before abandoning it.
const sweeperShutdownWait = 5 * time.Second

// sweeper periodically bulk-deletes expired rows. It shares the exact
// delete the engine exposes as CleanupExpired, so lazy on-read eviction
// and the sweep can never disagree about liveness.
type sweeper struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSweeper(interval time.Duration) *sweeper {
	return &sweeper{
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (sw *sweeper) run(s *Store) {
	defer close(sw.done)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sw.stop:
			return
		case <-ticker.C:
			removed, err := s.CleanupExpired(context.Background())
			if err != nil {
				log.Printf("background cleanup failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("background cleanup removed %d expired cache entries", removed)
			}
		}
	}
}

// shutdown signals the loop to stop and waits briefly for it to finish.
// Safe to call more than once.
func (sw *sweeper) shutdown() {
	sw.stopOnce.Do(func() { close(sw.stop) })
	select {
	case <-sw.done:
	case <-time.After(sweeperShutdownWait):
		log.Printf("background cleanup did not stop within %s, abandoning", sweeperShutdownWait)
	}
}
