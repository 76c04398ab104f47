package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/roundhouse/internal/message"
)

func TestInprocDeliversToSubscribersOfType(t *testing.T) {
	b := NewInproc()
	defer b.Close()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 2)

	require.NoError(t, b.Subscribe("a", func(_ context.Context, msg *message.Message) {
		mu.Lock()
		got = append(got, msg.Type)
		mu.Unlock()
		done <- struct{}{}
	}))
	require.NoError(t, b.Subscribe("b", func(_ context.Context, msg *message.Message) {
		t.Error("subscriber for type b must not see type a")
	}))

	require.NoError(t, b.Publish(context.Background(), message.New("a", nil, nil)))
	require.NoError(t, b.Publish(context.Background(), message.New("a", nil, nil)))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "a"}, got)
}

func TestInprocHandlersReceiveCopies(t *testing.T) {
	b := NewInproc()
	defer b.Close()

	done := make(chan struct{})
	require.NoError(t, b.Subscribe("a", func(_ context.Context, msg *message.Message) {
		msg.Data["mutated"] = true
		close(done)
	}))

	msg := message.New("a", nil, nil)
	require.NoError(t, b.Publish(context.Background(), msg))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	assert.NotContains(t, msg.Data, "mutated")
}

func TestInprocCloseRejectsPublish(t *testing.T) {
	b := NewInproc()
	require.NoError(t, b.Close())
	assert.Error(t, b.Publish(context.Background(), message.New("a", nil, nil)))
}
