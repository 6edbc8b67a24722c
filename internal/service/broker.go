package service

import (
	"sync"

	"github.com/timmy/mockup-studio/internal/domain"
)

// Broker fans job updates out to subscribers. Slow subscribers lose updates
// rather than stalling the runner.
type Broker struct {
	mu     sync.RWMutex
	subs   map[chan domain.JobUpdate]struct{}
	buffer int
}

// NewBroker creates a broker whose subscriber channels hold buffer updates.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broker{
		subs:   make(map[chan domain.JobUpdate]struct{}),
		buffer: buffer,
	}
}

// Publish delivers update to every subscriber without blocking.
func (b *Broker) Publish(update domain.JobUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- update:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe() (<-chan domain.JobUpdate, func()) {
	ch := make(chan domain.JobUpdate, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
