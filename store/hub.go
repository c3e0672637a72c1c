package store

import (
	"context"
	"sync"
)

// FetchFunc - reads the current full result of a subscribed query
type FetchFunc func(ctx context.Context) (*Snapshot, error)

// Hub - fans collection change notifications out to subscriptions
// Each subscription re-reads its query after a change. Changes that arrive while a snapshot is
// being read or delivered are coalesced into one re-read, since every snapshot is complete anyway.
// The zero value is ready to use.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription - live query subscription
type Subscription struct {
	hub        *Hub
	collection string
	events     chan Event
	notify     chan struct{}
	cancel     context.CancelFunc
	done       chan struct{}
}

// Subscribe - starts a subscription on the collection. fetch is called once right away and again
// after every Notify of the collection until ctx is cancelled or Unsubscribe is called
func (h *Hub) Subscribe(ctx context.Context, collection string, fetch FetchFunc) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	if h.subs == nil {
		h.subs = make(map[*Subscription]struct{})
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		hub:        h,
		collection: collection,
		events:     make(chan Event),
		notify:     make(chan struct{}, 1),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.subs[sub] = struct{}{}

	go sub.run(ctx, fetch)
	return sub, nil
}

// Notify - signals that the collection changed
func (h *Hub) Notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.collection == collection {
			sub.wake()
		}
	}
}

// NotifyAll - signals every subscription, e.g. after notifications might have been lost
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		sub.wake()
	}
}

// Len - number of active subscriptions
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close - ends all subscriptions and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) run(ctx context.Context, fetch FetchFunc) {
	defer close(s.done)
	defer close(s.events)
	defer s.hub.remove(s)

	for {
		snapshot, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case s.events <- Event{Err: err}:
			case <-ctx.Done():
			}
			return
		}

		select {
		case s.events <- Event{Snapshot: snapshot}:
		case <-ctx.Done():
			return
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return
		}
	}
}

// Events - snapshots and at most one terminal error. Closed when the subscription ends
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Unsubscribe - ends the subscription and waits until no more events can be delivered
func (s *Subscription) Unsubscribe() {
	s.cancel()
	<-s.done
}
