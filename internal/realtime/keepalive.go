package realtime

import (
	"sync"
	"time"
)

// keepalive is a two-state (idle/active) ticker that pushes ping frames while
// at least one subscriber is registered. The registry transitions it to
// active on the first registration and back to idle when the last subscriber
// leaves.
type keepalive struct {
	interval time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func newKeepalive(interval time.Duration) *keepalive {
	return &keepalive{interval: interval}
}

// start transitions idle -> active. No-op when already active.
func (k *keepalive) start(ping func()) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return
	}
	k.running = true
	k.done = make(chan struct{})

	done := k.done
	go func() {
		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ping()
			case <-done:
				return
			}
		}
	}()
}

// stop transitions active -> idle. No-op when already idle.
func (k *keepalive) stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.running {
		return
	}
	k.running = false
	close(k.done)
}

// active reports the current state.
func (k *keepalive) active() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running
}
