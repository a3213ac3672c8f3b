package router

import (
	"context"
	"errors"
	"proof_bridge/internal/model"
	"proof_bridge/internal/protocol/envelope"
	"proof_bridge/internal/transport"
	"proof_bridge/internal/utils/log"
	"sync"

	"go.uber.org/zap"
)

type (
	// Background is the router of the privileged background context. It is
	// reachable only over privileged ports, one per content context.
	Background struct {
		*Endpoint

		mu     sync.Mutex
		ports  map[int]transport.Channel
		stops  map[int]func()
		nextID int
	}
)

// NewBackground returns a background router. Unknown request types are
// acknowledged with an empty payload.
func NewBackground(cfg Config) *Background {
	b := &Background{
		Endpoint: newEndpoint(model.RoleBackground, cfg),
		ports:    make(map[int]transport.Channel),
		stops:    make(map[int]func()),
	}
	b.route = b.routeOut
	b.fallback = func(context.Context, *model.Envelope) (any, error) {
		return model.Ack{}, nil
	}
	return b
}

// Attach starts serving a privileged port. Responses go back on the port
// the request arrived on. The returned func detaches the port.
func (b *Background) Attach(port transport.Channel) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.ports[id] = port
	b.mu.Unlock()

	stop := port.Listen(func(data []byte) {
		b.fromPort(port, data)
	})

	b.mu.Lock()
	b.stops[id] = stop
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.ports, id)
		s := b.stops[id]
		delete(b.stops, id)
		b.mu.Unlock()
		if s != nil {
			s()
		}
	}
}

func (b *Background) Ports() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ports)
}

func (b *Background) Close() error {
	b.mu.Lock()
	stops := b.stops
	b.stops = make(map[int]func())
	b.ports = make(map[int]transport.Channel)
	b.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	b.close()
	return nil
}

func (b *Background) fromPort(port transport.Channel, data []byte) {
	env, ok := b.decode(data)
	if !ok {
		return
	}

	if env.Type == model.TypeForward {
		inner, err := envelope.Unwrap(env)
		if err != nil {
			log.Debug("dropping bad forward", zap.Error(err))
			return
		}
		env = inner
	}

	if env.To != model.RoleBackground {
		log.Debug("dropping envelope not addressed to background",
			zap.String("type", env.Type), zap.Stringer("to", env.To))
		return
	}

	b.deliver(env, func(ctx context.Context, resp *model.Envelope) error {
		data, err := b.encode(resp)
		if err != nil {
			return err
		}
		return port.Post(ctx, data)
	})
}

// routeOut fans messages the background originates out to every attached port.
func (b *Background) routeOut(ctx context.Context, env *model.Envelope) error {
	if env.To == model.RoleBackground {
		b.deliver(env, b.routeOut)
		return nil
	}

	data, err := b.encode(env)
	if err != nil {
		return err
	}

	b.mu.Lock()
	ports := make([]transport.Channel, 0, len(b.ports))
	for _, p := range b.ports {
		ports = append(ports, p)
	}
	b.mu.Unlock()

	if len(ports) == 0 {
		return ErrNoRoute
	}

	var errs []error
	for _, p := range ports {
		if err := p.Post(ctx, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
