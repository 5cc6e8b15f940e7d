// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statuswatch

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/presence/lib/presence"
)

// DefaultBuffer is the per-subscription channel size.
const DefaultBuffer = 64

// AllCompanies subscribes to every company. Only in-process consumers
// such as notifiers should use it; transports always scope to the
// caller's company.
const AllCompanies = "*"

// Subscription receives status changes for one company.
type Subscription struct {
	// C delivers changes in publish order. It is closed by Close.
	C <-chan presence.StatusChange

	channel     chan presence.StatusChange
	companyID   string
	lagged      atomic.Bool
	broadcaster *Broadcaster
	closeOnce   sync.Once
}

// Lagged reports whether any change was dropped since the last call,
// and clears the flag.
func (s *Subscription) Lagged() bool {
	return s.lagged.Swap(false)
}

// Close unregisters the subscription and closes C. Safe to call more
// than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.broadcaster.remove(s)
	})
}

// Broadcaster fans status changes out to subscribers. It implements
// presence.Sink.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string][]*Subscription
	logger      *slog.Logger
	published   atomic.Uint64
	dropped     atomic.Uint64
}

// NewBroadcaster returns a Broadcaster with no subscribers.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Broadcaster{
		subscribers: make(map[string][]*Subscription),
		logger:      logger,
	}
}

// Subscribe registers a subscriber for companyID, or for every company
// with AllCompanies. buffer <= 0 means DefaultBuffer.
func (b *Broadcaster) Subscribe(companyID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	channel := make(chan presence.StatusChange, buffer)
	subscription := &Subscription{
		C:           channel,
		channel:     channel,
		companyID:   companyID,
		broadcaster: b,
	}
	b.mu.Lock()
	b.subscribers[companyID] = append(b.subscribers[companyID], subscription)
	b.mu.Unlock()
	return subscription
}

func (b *Broadcaster) remove(subscription *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subscribers[subscription.companyID]
	for index, existing := range list {
		if existing == subscription {
			b.subscribers[subscription.companyID] = append(list[:index:index], list[index+1:]...)
			break
		}
	}
	if len(b.subscribers[subscription.companyID]) == 0 {
		delete(b.subscribers, subscription.companyID)
	}
	close(subscription.channel)
}

// Publish delivers change to the company's subscribers and to
// AllCompanies subscribers. It never blocks: a full subscriber misses
// the change and is marked lagged.
func (b *Broadcaster) Publish(change presence.StatusChange) {
	b.published.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver(b.subscribers[change.CompanyID], change)
	b.deliver(b.subscribers[AllCompanies], change)
}

// deliver must be called with b.mu held.
func (b *Broadcaster) deliver(list []*Subscription, change presence.StatusChange) {
	for _, subscription := range list {
		select {
		case subscription.channel <- change:
		default:
			if !subscription.lagged.Swap(true) {
				b.logger.Warn("status subscriber lagging, dropping changes",
					"company_id", subscription.companyID,
				)
			}
			b.dropped.Add(1)
		}
	}
}

// Stats reports totals since construction.
func (b *Broadcaster) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}

var _ presence.Sink = (*Broadcaster)(nil)
