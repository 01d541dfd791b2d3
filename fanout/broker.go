// Package fanout implements an in-process publish/subscribe broker with
// per-subscriber filtering and backpressure isolation. Delivery is
// push-based, at-most-once, best-effort: no durability and no replay for
// late subscribers. Ordering of one publisher's messages on one channel is
// preserved per subscriber.
//
// Each subscriber owns a bounded queue and a delivery goroutine, so a slow
// or stalled consumer can never block the publisher or its channel
// siblings. When a subscriber's queue overflows, its oldest undelivered
// message is dropped and counted.
//
// Brokers are explicit dependencies, constructed and passed in, so tests
// can run isolated instances.
package fanout

import (
	"context"
	"log/slog"
	"sync"

	"github.com/c360/opscore/errors"
)

// Filter decides whether a subscriber receives a message. Filters must be
// pure: no mutation of the message or external state. A panicking filter
// is recovered, logged, and treated as not matching.
type Filter[M any] func(msg M) bool

// Broker routes published messages to channel subscribers.
type Broker[M any] struct {
	mu       sync.RWMutex
	channels map[string]map[uint64]*Subscription[M]
	nextID   uint64
	closed   bool

	queueSize int
	logger    *slog.Logger
	metrics   *brokerMetrics
}

// New creates a broker.
func New[M any](opts ...Option[M]) (*Broker[M], error) {
	options := applyOptions(opts...)

	var metrics *brokerMetrics
	if options.metricsReg != nil {
		var err error
		metrics, err = newBrokerMetrics(options.metricsReg)
		if err != nil {
			return nil, errors.Wrap(err, "fanout", "New", "metrics registration")
		}
	}

	return &Broker[M]{
		channels:  make(map[string]map[uint64]*Subscription[M]),
		queueSize: options.queueSize,
		logger:    options.logger,
		metrics:   metrics,
	}, nil
}

// Subscribe attaches a subscriber to channel. Messages matching filter are
// delivered on the subscription's Messages channel until the subscription
// is closed or ctx is canceled. A nil filter matches everything.
func (b *Broker[M]) Subscribe(ctx context.Context, channel string, filter Filter[M]) (*Subscription[M], error) {
	if channel == "" {
		return nil, errors.WrapValidation(errors.ErrEmptyKey, "fanout", "Subscribe", "channel name check")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errors.WrapValidation(errors.ErrSubscriptionClosed, "fanout", "Subscribe", "broker state check")
	}

	b.nextID++
	sub := newSubscription(b, channel, b.nextID, filter, b.queueSize)

	subs, ok := b.channels[channel]
	if !ok {
		subs = make(map[uint64]*Subscription[M])
		b.channels[channel] = subs
	}
	subs[sub.id] = sub
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.subscriberAdded(channel)
	}

	go sub.pump()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = sub.Close()
			case <-sub.done:
			}
		}()
	}

	return sub, nil
}

// Publish delivers msg to every current subscriber of channel whose filter
// accepts it. Publish never blocks on consumers and is a no-op with zero
// subscribers. It returns the number of subscribers the message was
// enqueued to.
func (b *Broker[M]) Publish(channel string, msg M) int {
	b.mu.RLock()
	subs := b.channels[channel]
	targets := make([]*Subscription[M], 0, len(subs))
	for _, sub := range subs {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.recordPublish(channel)
	}

	enqueued := 0
	for _, sub := range targets {
		if !b.matches(sub, msg) {
			continue
		}
		if dropped := sub.enqueue(msg); dropped {
			if b.metrics != nil {
				b.metrics.recordDrop(channel)
			}
			if b.logger != nil {
				b.logger.Warn("slow subscriber dropped oldest message",
					"channel", channel, "subscriber", sub.id)
			}
		}
		enqueued++
	}

	if b.metrics != nil && enqueued > 0 {
		b.metrics.recordDeliveries(channel, enqueued)
	}

	return enqueued
}

// matches evaluates the subscriber's filter, recovering panics. A filter
// failure affects only that (message, subscriber) pair.
func (b *Broker[M]) matches(sub *Subscription[M], msg M) (ok bool) {
	if sub.filter == nil {
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			ok = false
			if b.metrics != nil {
				b.metrics.recordFilterPanic(sub.channel)
			}
			if b.logger != nil {
				b.logger.Error("filter panicked, treating as non-match",
					"channel", sub.channel, "subscriber", sub.id, "panic", r)
			}
		}
	}()

	return sub.filter(msg)
}

// Unsubscribe detaches a subscription. Equivalent to sub.Close.
func (b *Broker[M]) Unsubscribe(sub *Subscription[M]) error {
	if sub == nil {
		return nil
	}
	return sub.Close()
}

// SubscriberCount returns the number of active subscribers on channel.
func (b *Broker[M]) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}

// Close tears down every subscription and rejects further subscribes.
// Publishing to a closed broker is a harmless no-op.
func (b *Broker[M]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var all []*Subscription[M]
	for _, subs := range b.channels {
		for _, sub := range subs {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
	return nil
}

// remove detaches a subscription from the routing table. Called by
// Subscription.Close.
func (b *Broker[M]) remove(channel string, id uint64) {
	b.mu.Lock()
	if subs, ok := b.channels[channel]; ok {
		if _, present := subs[id]; present {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.channels, channel)
			}
			b.mu.Unlock()
			if b.metrics != nil {
				b.metrics.subscriberRemoved(channel)
			}
			return
		}
	}
	b.mu.Unlock()
}
