package redisbus

import (
	"context"
	redisSvc "proof_bridge/internal/service/redis"
	"proof_bridge/internal/transport"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *redisSvc.RedisService {
	srv := miniredis.RunT(t)
	svc := redisSvc.NewRedis(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestBusBroadcastsToEverySubscriber(t *testing.T) {
	svc := newService(t)
	page := New(svc, "page:1")
	other := New(svc, "page:1")
	defer page.Close()
	defer other.Close()

	var mu sync.Mutex
	var got []string
	record := func(who string) func([]byte) {
		return func(data []byte) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, who+":"+string(data))
		}
	}
	page.Listen(record("page"))
	other.Listen(record("other"))

	require.NoError(t, page.Post(context.Background(), []byte("hello")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"page:hello", "other:hello"}, got)
}

func TestBusClosed(t *testing.T) {
	svc := newService(t)
	bus := New(svc, "page:2")
	bus.Listen(func([]byte) {})
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Post(context.Background(), []byte("x")), transport.ErrClosed)
}
