package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/jobtracker/internal/testutil"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestMemoryFanOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewMemory(testutil.Logger())
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := b.Subscribe(ctx)
	require.NoError(t, err)
	c, err := b.Subscribe(ctx)
	require.NoError(t, err)

	ev := Event{Topic: TopicWorkItems, Op: OpUpdate, Key: "w1", At: time.Now().UTC()}
	require.NoError(t, b.Publish(ctx, ev))

	assert.Equal(t, ev, recv(t, a))
	assert.Equal(t, ev, recv(t, c))
}

func TestMemoryUnsubscribeOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewMemory(testutil.Logger())
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not closed")
	}
	require.NoError(t, b.Publish(context.Background(), Event{Topic: TopicJobs}))
}

func TestMemorySlowSubscriberDoesNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewMemory(testutil.Logger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < subscriberBuffer*2; i++ {
		require.NoError(t, b.Publish(ctx, Event{Topic: TopicJobs, Op: OpInsert}))
	}
	assert.Len(t, ch, subscriberBuffer)

	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(ctx, Event{}), ErrClosed)
	_, err = b.Subscribe(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublishQuietlyStampsTime(t *testing.T) {
	b := NewMemory(testutil.Logger())
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	PublishQuietly(ctx, b, testutil.Logger(), Event{Topic: TopicMachines, Op: OpDelete, Key: "m1"})
	ev := recv(t, ch)
	assert.False(t, ev.At.IsZero())

	PublishQuietly(ctx, nil, testutil.Logger(), Event{Topic: TopicMachines})
}
