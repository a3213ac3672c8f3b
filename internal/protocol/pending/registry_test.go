package pending

import (
	"context"
	"proof_bridge/internal/model"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(serial string) *model.Envelope {
	return &model.Envelope{Type: "get-state-response", ResponseTo: serial, Serial: "r-" + serial}
}

func TestResolveInvokesAllResolversOnce(t *testing.T) {
	reg := New()
	h, err := reg.Register("1", 0)
	require.NoError(t, err)

	var got []string
	h.AddResolver(func(env *model.Envelope) { got = append(got, "a:"+env.ResponseTo) }).
		AddResolver(func(env *model.Envelope) { got = append(got, "b:"+env.ResponseTo) })

	assert.True(t, reg.Resolve(response("1")))
	assert.False(t, reg.Resolve(response("1")))
	assert.Equal(t, []string{"a:1", "b:1"}, got)
	assert.Equal(t, 0, reg.Len())

	select {
	case <-h.Done():
	default:
		t.Fatal("handle not done after response")
	}
	assert.NoError(t, h.Err())
	assert.Equal(t, "1", h.Response().ResponseTo)
}

func TestLateResolverSeesResponse(t *testing.T) {
	reg := New()
	h, err := reg.Register("1", 0)
	require.NoError(t, err)
	require.True(t, reg.Resolve(response("1")))

	called := false
	h.AddResolver(func(*model.Envelope) { called = true })
	assert.True(t, called)
}

func TestResolveIgnoresNonResponsesAndUnknownSerials(t *testing.T) {
	reg := New()
	_, err := reg.Register("1", 0)
	require.NoError(t, err)

	assert.False(t, reg.Resolve(&model.Envelope{Type: "get-state", ResponseTo: "1"}))
	assert.False(t, reg.Resolve(&model.Envelope{Type: "get-state-response"}))
	assert.False(t, reg.Resolve(response("unknown")))
	assert.Equal(t, 1, reg.Len())
}

func TestCorrelationIsBySerialOnly(t *testing.T) {
	reg := New()
	const n = 64

	handles := make([]*Handle, n)
	results := make([]string, n)
	for i := range handles {
		serial := string(rune('A' + i))
		h, err := reg.Register(serial, 0)
		require.NoError(t, err)
		i := i
		h.AddResolver(func(env *model.Envelope) { results[i] = env.ResponseTo })
		handles[i] = h
	}

	var wg sync.WaitGroup
	for i := n - 1; i >= 0; i-- {
		wg.Add(1)
		go func(serial string) {
			defer wg.Done()
			reg.Resolve(response(serial))
		}(handles[i].Serial())
	}
	wg.Wait()

	for i, h := range handles {
		assert.Equal(t, h.Serial(), results[i])
	}
}

func TestDuplicateSerial(t *testing.T) {
	reg := New()
	_, err := reg.Register("1", 0)
	require.NoError(t, err)
	_, err = reg.Register("1", 0)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestCancel(t *testing.T) {
	reg := New()
	h, err := reg.Register("1", 0)
	require.NoError(t, err)

	called := false
	h.AddResolver(func(*model.Envelope) { called = true })

	assert.True(t, h.Cancel())
	assert.False(t, h.Cancel())
	assert.False(t, reg.Resolve(response("1")))
	assert.False(t, called)
	assert.ErrorIs(t, h.Err(), ErrCancelled)
}

func TestSweepEvictsExpired(t *testing.T) {
	mock := clock.NewMock()
	reg := New(WithClock(mock), WithTTL(10*time.Second))

	short, err := reg.Register("short", time.Second)
	require.NoError(t, err)
	long, err := reg.Register("long", 0)
	require.NoError(t, err)

	assert.Equal(t, 0, reg.Sweep())

	mock.Add(time.Second)
	assert.Equal(t, 1, reg.Sweep())
	assert.ErrorIs(t, short.Err(), ErrTimeout)
	assert.NoError(t, long.Err())
	assert.Equal(t, 1, reg.Len())

	mock.Add(10 * time.Second)
	assert.Equal(t, 1, reg.Sweep())
	assert.ErrorIs(t, long.Err(), ErrTimeout)
	assert.Equal(t, 0, reg.Len())
}

func TestRunSweepsOnTick(t *testing.T) {
	mock := clock.NewMock()
	reg := New(WithClock(mock), WithTTL(time.Second))
	h, err := reg.Register("1", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx, time.Second) }()

	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return reg.Len() == 0
	}, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, h.Err(), ErrTimeout)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestClose(t *testing.T) {
	reg := New()
	h, err := reg.Register("1", 0)
	require.NoError(t, err)

	reg.Close()
	<-h.Done()
	assert.ErrorIs(t, h.Err(), ErrClosed)

	_, err = reg.Register("2", 0)
	assert.ErrorIs(t, err, ErrClosed)
}
