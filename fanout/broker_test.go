package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Severity string
	Seq      int
}

// receive collects n messages or fails the test after a timeout.
func receive(t *testing.T, sub *Subscription[testEvent], n int) []testEvent {
	t.Helper()

	var got []testEvent
	deadline := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				t.Fatalf("subscription closed after %d of %d messages", len(got), n)
			}
			got = append(got, msg)
		case <-deadline:
			t.Fatalf("timed out after %d of %d messages", len(got), n)
		}
	}
	return got
}

func TestFilterSelectsMatchingMessagesInOrder(t *testing.T) {
	b, err := New[testEvent]()
	require.NoError(t, err)
	defer b.Close()

	sub, err := b.Subscribe(context.Background(), "alerts", func(e testEvent) bool {
		return e.Severity == "CRITICAL"
	})
	require.NoError(t, err)
	defer sub.Close()

	for i, sev := range []string{"LOW", "CRITICAL", "HIGH", "CRITICAL"} {
		b.Publish("alerts", testEvent{Severity: sev, Seq: i})
	}

	got := receive(t, sub, 2)
	assert.Equal(t, "CRITICAL", got[0].Severity)
	assert.Equal(t, 1, got[0].Seq)
	assert.Equal(t, "CRITICAL", got[1].Severity)
	assert.Equal(t, 3, got[1].Seq)
}

func TestNilFilterMatchesEverything(t *testing.T) {
	b, err := New[testEvent]()
	require.NoError(t, err)
	defer b.Close()

	sub, err := b.Subscribe(context.Background(), "alerts", nil)
	require.NoError(t, err)
	defer sub.Close()

	b.Publish("alerts", testEvent{Severity: "LOW", Seq: 0})
	b.Publish("alerts", testEvent{Severity: "HIGH", Seq: 1})

	got := receive(t, sub, 2)
	assert.Equal(t, 0, got[0].Seq)
	assert.Equal(t, 1, got[1].Seq)
}

func TestPanickingFilterIsIsolated(t *testing.T) {
	b, err := New[testEvent]()
	require.NoError(t, err)
	defer b.Close()

	bad, err := b.Subscribe(context.Background(), "alerts", func(e testEvent) bool {
		panic("broken predicate")
	})
	require.NoError(t, err)
	defer bad.Close()

	good, err := b.Subscribe(context.Background(), "alerts", nil)
	require.NoError(t, err)
	defer good.Close()

	enqueued := b.Publish("alerts", testEvent{Severity: "CRITICAL", Seq: 7})

	// The panicking filter counts as non-match; the healthy subscriber
	// still gets the message and the publish call survives.
	assert.Equal(t, 1, enqueued)
	got := receive(t, good, 1)
	assert.Equal(t, 7, got[0].Seq)
}

func TestPublishWithoutSubscribersIsNoOp(t *testing.T) {
	b, err := New[testEvent]()
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, 0, b.Publish("alerts", testEvent{Severity: "LOW"}))
}

func TestChannelsAreIndependent(t *testing.T) {
	b, err := New[testEvent]()
	require.NoError(t, err)
	defer b.Close()

	alerts, err := b.Subscribe(context.Background(), "alerts", nil)
	require.NoError(t, err)
	defer alerts.Close()

	cases, err := b.Subscribe(context.Background(), "cases", nil)
	require.NoError(t, err)
	defer cases.Close()

	b.Publish("alerts", testEvent{Seq: 1})
	b.Publish("cases", testEvent{Seq: 2})

	assert.Equal(t, 1, receive(t, alerts, 1)[0].Seq)
	assert.Equal(t, 2, receive(t, cases, 1)[0].Seq)
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b, err := New(WithQueueSize[testEvent](2))
	require.NoError(t, err)
	defer b.Close()

	sub, err := b.Subscribe(context.Background(), "alerts", nil)
	require.NoError(t, err)
	defer sub.Close()

	// Nobody is reading; the ring (plus the one message held by the
	// delivery goroutine) must absorb the burst by dropping oldest.
	const burst = 10
	for i := 0; i < burst; i++ {
		b.Publish("alerts", testEvent{Seq: i})
	}

	assert.Eventually(t, func() bool {
		return sub.Dropped() > 0
	}, 2*time.Second, 5*time.Millisecond)

	// Drain. The final message published must be the last one delivered.
	var last testEvent
	timeout := time.After(2 * time.Second)
drain:
	for {
		select {
		case msg := <-sub.Messages():
			last = msg
			if msg.Seq == burst-1 {
				break drain
			}
		case <-timeout:
			t.Fatalf("never received final message, last seq %d", last.Seq)
		}
	}
	assert.Equal(t, burst-1, last.Seq)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b, err := New[testEvent]()
	require.NoError(t, err)
	defer b.Close()

	sub, err := b.Subscribe(context.Background(), "alerts", nil)
	require.NoError(t, err)
	require.Equal(t, 1, b.SubscriberCount("alerts"))

	require.NoError(t, b.Unsubscribe(sub))
	assert.Equal(t, 0, b.SubscriberCount("alerts"))
	assert.Equal(t, 0, b.Publish("alerts", testEvent{Seq: 1}))

	// Messages closes within bounded time after unsubscribe.
	select {
	case _, ok := <-sub.Messages():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("messages channel never closed")
	}

	// Closing again is safe.
	require.NoError(t, sub.Close())
}

func TestContextCancellationTearsDownSubscription(t *testing.T) {
	b, err := New[testEvent]()
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx, "alerts", nil)
	require.NoError(t, err)

	cancel()

	assert.Eventually(t, func() bool {
		return b.SubscriberCount("alerts") == 0
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case _, ok := <-sub.Messages():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("messages channel never closed")
	}
}

func TestSubscribeValidation(t *testing.T) {
	b, err := New[testEvent]()
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Subscribe(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestBrokerCloseTearsDownEverything(t *testing.T) {
	b, err := New[testEvent]()
	require.NoError(t, err)

	sub1, err := b.Subscribe(context.Background(), "alerts", nil)
	require.NoError(t, err)
	sub2, err := b.Subscribe(context.Background(), "cases", nil)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.Equal(t, 0, b.SubscriberCount("alerts"))
	assert.Equal(t, 0, b.SubscriberCount("cases"))

	for _, sub := range []*Subscription[testEvent]{sub1, sub2} {
		select {
		case _, ok := <-sub.Messages():
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("messages channel never closed")
		}
	}

	_, err = b.Subscribe(context.Background(), "alerts", nil)
	assert.Error(t, err)
}
