package store

import (
	"log"
	"sync"
)

// Listener receives callbacks after cache mutations commit. Callbacks are
// best-effort: a panicking listener is logged and never fails the
// mutation that triggered it, nor blocks other listeners.
type Listener interface {
	OnPut(key string, value any)
	OnEvict(key string)
	OnClear()
}

type dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
}

func (d *dispatcher) add(l Listener) {
	if l == nil {
		return
	}
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
}

func (d *dispatcher) snapshot() []Listener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Listener, len(d.listeners))
	copy(out, d.listeners)
	return out
}

func (d *dispatcher) firePut(key string, value any) {
	for _, l := range d.snapshot() {
		notify("OnPut", key, func() { l.OnPut(key, value) })
	}
}

func (d *dispatcher) fireEvict(key string) {
	for _, l := range d.snapshot() {
		notify("OnEvict", key, func() { l.OnEvict(key) })
	}
}

func (d *dispatcher) fireClear() {
	for _, l := range d.snapshot() {
		notify("OnClear", "", func() { l.OnClear() })
	}
}

func notify(hook, key string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if key != "" {
				log.Printf("cache listener %s failed for key %q: %v", hook, key, r)
			} else {
				log.Printf("cache listener %s failed: %v", hook, r)
			}
		}
	}()
	fn()
}
