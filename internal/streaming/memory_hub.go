package streaming

import (
	"context"
	"strings"
	"sync"
)

const defaultChannelBuffer = 64

// subscription is one subscriber's channel plus its filter, kept in a slice
// so publish order over subscribers is stable.
type subscription struct {
	id     uint64
	ch     chan StreamEvent
	filter EventFilter
}

// MemoryHub is an in-process EventHub. Publish fans events out to every
// matching subscriber without blocking: a subscriber that stops draining its
// channel loses events rather than stalling the ingress path.
type MemoryHub struct {
	mu     sync.RWMutex
	subs   []*subscription
	nextID uint64
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{}
}

// Publish delivers the event to all subscribers whose filter matches.
// A full subscriber channel drops the event for that subscriber only.
func (h *MemoryHub) Publish(ctx context.Context, event StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sub.filter.Matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a filtered subscription. The returned cancel removes
// the subscription; it is safe to call more than once.
func (h *MemoryHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ch := make(chan StreamEvent, defaultChannelBuffer)

	h.mu.Lock()
	h.nextID++
	sub := &subscription{id: h.nextID, ch: ch, filter: filter}
	h.subs = append(h.subs, sub)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		for i, s := range h.subs {
			if s.id == sub.id {
				h.subs = append(h.subs[:i], h.subs[i+1:]...)
				break
			}
		}
		h.mu.Unlock()
	}

	return ch, cancel, nil
}

// Matches reports whether the event passes the filter. An empty filter
// matches everything. Entries in EventTypes ending in ".*" match by prefix,
// so "workflow.node.*" selects the whole node lifecycle family.
func (f EventFilter) Matches(e StreamEvent) bool {
	if f.SessionID != "" && f.SessionID != e.SessionID {
		return false
	}
	if len(f.EventTypes) == 0 {
		return true
	}
	for _, t := range f.EventTypes {
		if prefix, ok := strings.CutSuffix(t, ".*"); ok {
			if strings.HasPrefix(e.EventType, prefix+".") {
				return true
			}
			continue
		}
		if t == e.EventType {
			return true
		}
	}
	return false
}
