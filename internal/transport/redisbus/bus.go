// Package redisbus is a broadcast channel backed by redis pub/sub. It lets a
// "document" span processes: every subscriber of the channel, the poster
// included, hears every post.
package redisbus

import (
	"context"
	redisSvc "proof_bridge/internal/service/redis"
	"proof_bridge/internal/transport"
	"proof_bridge/internal/utils/log"
	"sync"

	"go.uber.org/zap"
)

type (
	Bus struct {
		redis   *redisSvc.RedisService
		channel string

		mu     sync.Mutex
		stops  []func()
		closed bool
	}
)

var _ transport.Channel = (*Bus)(nil)

func New(redis *redisSvc.RedisService, channel string) *Bus {
	return &Bus{
		redis:   redis,
		channel: channel,
	}
}

func (b *Bus) Post(ctx context.Context, data []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	return b.redis.Publish(ctx, b.channel, data)
}

// Listen subscribes to the channel. A failed subscription is logged and
// yields a listener that never fires.
func (b *Bus) Listen(fn func([]byte)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	sub, err := b.redis.Subscribe(context.Background(), b.channel)
	if err != nil {
		log.Error("redis bus subscribe failed", zap.String("channel", b.channel), zap.Error(err))
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			fn([]byte(msg.Payload))
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			sub.Close()
			<-done
		})
	}
	b.stops = append(b.stops, stop)
	return stop
}

func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	stops := b.stops
	b.stops = nil
	b.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	return nil
}
