// Package memory provides in-process channels: a same-document broadcast Bus
// and a point-to-point Pipe.
package memory

import (
	"context"
	"proof_bridge/internal/transport"
)

type (
	Bus struct {
		hub *hub
	}

	Port struct {
		in  *hub
		out *hub
	}
)

var (
	_ transport.Channel = (*Bus)(nil)
	_ transport.Channel = (*Port)(nil)
)

func NewBus() *Bus {
	return &Bus{hub: newHub()}
}

func (b *Bus) Post(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.hub.publish(data) {
		return transport.ErrClosed
	}
	return nil
}

func (b *Bus) Listen(fn func([]byte)) func() {
	return b.hub.listen(fn)
}

func (b *Bus) Close() error {
	b.hub.close()
	return nil
}

// NewPipe returns the two connected ends of a point-to-point channel.
func NewPipe() (*Port, *Port) {
	a, b := newHub(), newHub()
	return &Port{in: a, out: b}, &Port{in: b, out: a}
}

func (p *Port) Post(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.out.publish(data) {
		return transport.ErrClosed
	}
	return nil
}

func (p *Port) Listen(fn func([]byte)) func() {
	return p.in.listen(fn)
}

// Close disconnects both ends.
func (p *Port) Close() error {
	p.in.close()
	p.out.close()
	return nil
}
