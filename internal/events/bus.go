// Package events fans agent snapshots out to SSE clients and the notifier.
package events

import (
	"sync"

	"github.com/metaco/metaco/internal/models"
)

const subBufferSize = 8

// Bus is a non-blocking snapshot fan-out. Each snapshot supersedes the ones
// before it, so a subscriber that falls behind loses its oldest queued
// snapshots and always ends up holding the newest. Publishers never block.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan models.Snapshot
	last *models.Snapshot
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan models.Snapshot),
	}
}

// Subscribe registers id and returns its channel, primed with the latest
// snapshot if one has been published. Subscribing an existing id replaces
// (and closes) the old channel. Call Unsubscribe when done.
func (b *Bus) Subscribe(id string) <-chan models.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.subs[id]; ok {
		close(old)
	}
	ch := make(chan models.Snapshot, subBufferSize)
	if b.last != nil {
		ch <- *b.last
	}
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends snap to every subscriber, evicting a subscriber's oldest
// queued snapshot when its buffer is full.
func (b *Bus) Publish(snap models.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = &snap
	for _, ch := range b.subs {
		for {
			select {
			case ch <- snap:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Last returns the most recently published snapshot.
func (b *Bus) Last() (models.Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return models.Snapshot{}, false
	}
	return *b.last, true
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
