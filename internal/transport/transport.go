// Package transport defines the physical channels envelopes travel on.
//
// Two kinds exist. A broadcast channel delivers every posted message to every
// listener sharing it, the poster included, and carries traffic that is not
// ours; receivers filter. A privileged port is point-to-point: what one end
// posts only the other end hears. Both satisfy Channel.
package transport

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("transport: channel closed")

type (
	// Channel is one end of a transport. Listen callbacks run on a goroutine
	// owned by the channel, in arrival order, and must not block for long.
	Channel interface {
		Post(ctx context.Context, data []byte) error
		Listen(fn func(data []byte)) (stop func())
		Close() error
	}
)
