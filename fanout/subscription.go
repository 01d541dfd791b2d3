package fanout

import (
	"sync"

	"github.com/c360/opscore/pkg/buffer"
)

// Subscription is one subscriber's attachment to a channel. Messages are
// consumed from Messages until the subscription is closed, at which point
// the channel is closed. The sequence is non-restartable: a closed
// subscription never resumes.
type Subscription[M any] struct {
	id      uint64
	channel string
	filter  Filter[M]

	broker *Broker[M]
	queue  *buffer.Ring[M]
	out    chan M
	notify chan struct{}
	done   chan struct{}

	closeOnce sync.Once
}

func newSubscription[M any](b *Broker[M], channel string, id uint64, filter Filter[M], queueSize int) *Subscription[M] {
	return &Subscription[M]{
		id:      id,
		channel: channel,
		filter:  filter,
		broker:  b,
		queue:   buffer.NewRing[M](queueSize),
		out:     make(chan M),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Messages returns the delivery channel. It is closed when the
// subscription ends.
func (s *Subscription[M]) Messages() <-chan M {
	return s.out
}

// Channel returns the channel name this subscription is attached to.
func (s *Subscription[M]) Channel() string {
	return s.channel
}

// Dropped returns how many messages were discarded because this subscriber
// consumed slower than the publish rate.
func (s *Subscription[M]) Dropped() int64 {
	return s.queue.Dropped()
}

// Close detaches the subscription, stops delivery, and closes Messages.
// Safe to call multiple times and safe concurrently with Publish.
func (s *Subscription[M]) Close() error {
	s.closeOnce.Do(func() {
		s.broker.remove(s.channel, s.id)
		close(s.done)
	})
	return nil
}

// enqueue accepts a message from the publisher. Never blocks: the ring
// drops its oldest entry on overflow. Returns whether a drop occurred.
func (s *Subscription[M]) enqueue(msg M) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	dropped := s.queue.Push(msg)

	// Non-blocking wakeup; a pending signal already guarantees a re-drain.
	select {
	case s.notify <- struct{}{}:
	default:
	}

	return dropped
}

// pump moves messages from the ring to the consumer. One goroutine per
// subscriber keeps slow consumers from affecting anyone else.
func (s *Subscription[M]) pump() {
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
			for {
				msg, ok := s.queue.Pop()
				if !ok {
					break
				}
				select {
				case s.out <- msg:
				case <-s.done:
					return
				}
			}
		}
	}
}
