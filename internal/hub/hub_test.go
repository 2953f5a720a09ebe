package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func recvOne(t *testing.T, sub *Subscription) Message {
	t.Helper()
	select {
	case msg := <-sub.C():
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
		return Message{}
	}
}

func TestHub_PublishFanOut(t *testing.T) {
	h := New(zap.NewNop())
	a := h.Subscribe(EditsTopic(1))
	b := h.Subscribe(EditsTopic(1))
	other := h.Subscribe(EditsTopic(2))

	h.Publish(EditsTopic(1), "hello")

	require.Equal(t, "hello", recvOne(t, a).Payload)
	require.Equal(t, "hello", recvOne(t, b).Payload)
	select {
	case msg := <-other.C():
		t.Fatalf("subscriber of another document received %v", msg.Payload)
	default:
	}
}

func TestHub_PerTopicOrder(t *testing.T) {
	h := New(zap.NewNop())
	sub := h.Subscribe(EditsTopic(7))

	for i := 0; i < 10; i++ {
		h.Publish(EditsTopic(7), i)
	}
	for i := 0; i < 10; i++ {
		require.Equal(t, i, recvOne(t, sub).Payload)
	}
}

func TestHub_MultiTopicSubscription(t *testing.T) {
	h := New(zap.NewNop())
	sub := h.Subscribe(EditsTopic(3), CursorsTopic(3))

	h.Publish(CursorsTopic(3), "cursor")
	msg := recvOne(t, sub)
	require.Equal(t, CursorsTopic(3), msg.Topic)
	require.Equal(t, "cursor", msg.Payload)
}

func TestHub_NoReplayForLateSubscriber(t *testing.T) {
	h := New(zap.NewNop())
	h.Publish(EditsTopic(5), "lost")

	sub := h.Subscribe(EditsTopic(5))
	select {
	case msg := <-sub.C():
		t.Fatalf("late subscriber received replayed message %v", msg.Payload)
	default:
	}
}

func TestHub_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	h := New(zap.NewNop())
	slow := h.Subscribe(EditsTopic(9)) // never drained
	fast := h.Subscribe(EditsTopic(9))

	// Overflow the slow subscriber's buffer; all publishes must return.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subBuffer*2; i++ {
			h.Publish(EditsTopic(9), i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}

	// The fast subscriber still sees an ordered prefix up to its buffer size.
	require.Equal(t, 0, recvOne(t, fast).Payload)
	require.Equal(t, 1, recvOne(t, fast).Payload)
	_ = slow
}

func TestHub_UnsubscribeClosesAndReclaims(t *testing.T) {
	h := New(zap.NewNop())
	sub := h.Subscribe(EditsTopic(11))
	h.Unsubscribe(sub)

	_, open := <-sub.C()
	require.False(t, open)

	h.mu.RLock()
	_, exists := h.topics[EditsTopic(11)]
	h.mu.RUnlock()
	require.False(t, exists, "empty topic should be reclaimed")

	// Publishing to a reclaimed topic is a no-op, not a panic.
	h.Publish(EditsTopic(11), "into the void")
}
