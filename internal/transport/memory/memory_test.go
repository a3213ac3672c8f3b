package memory

import (
	"context"
	"proof_bridge/internal/transport"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) add(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, string(data))
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestBusDeliversToEveryListenerInOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var a, b recorder
	bus.Listen(a.add)
	bus.Listen(b.add)

	ctx := context.Background()
	for _, m := range []string{"1", "2", "3"} {
		require.NoError(t, bus.Post(ctx, []byte(m)))
	}

	want := []string{"1", "2", "3"}
	require.Eventually(t, func() bool { return len(b.snapshot()) == 3 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(a.snapshot()) == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, want, a.snapshot())
	assert.Equal(t, want, b.snapshot())
}

func TestBusStopListening(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var a recorder
	stop := bus.Listen(a.add)
	stop()
	stop()

	require.NoError(t, bus.Post(context.Background(), []byte("x")))
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, a.snapshot())
}

func TestPipeIsPointToPoint(t *testing.T) {
	left, right := NewPipe()
	defer left.Close()

	var l, r recorder
	left.Listen(l.add)
	right.Listen(r.add)

	ctx := context.Background()
	require.NoError(t, left.Post(ctx, []byte("to-right")))
	require.NoError(t, right.Post(ctx, []byte("to-left")))

	require.Eventually(t, func() bool {
		return len(l.snapshot()) == 1 && len(r.snapshot()) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{"to-left"}, l.snapshot())
	assert.Equal(t, []string{"to-right"}, r.snapshot())
}

func TestPostAfterClose(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Post(context.Background(), []byte("x")), transport.ErrClosed)

	left, right := NewPipe()
	require.NoError(t, right.Close())
	assert.ErrorIs(t, left.Post(context.Background(), []byte("x")), transport.ErrClosed)
}
