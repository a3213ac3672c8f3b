package router

import (
	"context"
	"proof_bridge/internal/model"
	"proof_bridge/internal/protocol/envelope"
	"proof_bridge/internal/transport"
	"sync"
)

type (
	// Frame is the router of a document embedded in, or attached to, the
	// extension: the popup or a widget iframe. It consumes what is addressed
	// to it and sends everything else up towards content.
	Frame struct {
		*Endpoint

		up   transport.Channel
		down transport.Channel
		stop func()

		mu       sync.RWMutex
		widgetID *int
	}
)

// NewPopup returns the popup router. The popup talks to content over a
// single link it both posts to and listens on.
func NewPopup(link transport.Channel, cfg Config) *Frame {
	return newFrame(model.RolePopup, link, link, cfg)
}

// NewWidget returns the router of a widget document. It posts to the
// hosting page and is reached through its own document channel. The widget
// learns its id from a widget-create request.
func NewWidget(page, doc transport.Channel, cfg Config) *Frame {
	f := newFrame(model.RoleWidget, page, doc, cfg)
	HandleFunc(f.Endpoint, model.TypeWidgetCreate,
		func(_ context.Context, _ *model.Envelope, req *model.WidgetCreateRequest) (any, error) {
			f.mu.Lock()
			id := req.ID
			f.widgetID = &id
			f.mu.Unlock()
			return model.Ack{}, nil
		})
	return f
}

func newFrame(role model.Role, up, down transport.Channel, cfg Config) *Frame {
	f := &Frame{
		Endpoint: newEndpoint(role, cfg),
		up:       up,
		down:     down,
	}
	f.route = f.routeOut
	return f
}

// WidgetID returns the id assigned by widget-create, if any.
func (f *Frame) WidgetID() (int, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.widgetID == nil {
		return 0, false
	}
	return *f.widgetID, true
}

func (f *Frame) Start() {
	f.stop = f.down.Listen(f.fromDown)
}

func (f *Frame) Close() error {
	if f.stop != nil {
		f.stop()
	}
	f.close()
	return nil
}

func (f *Frame) fromDown(data []byte) {
	env, ok := f.decode(data)
	if !ok || env.To != f.Role() {
		return
	}
	f.deliver(env, f.routeOut)
}

func (f *Frame) routeOut(ctx context.Context, env *model.Envelope) error {
	if env.To == f.Role() {
		f.deliver(env, f.routeOut)
		return nil
	}

	// Stamp the widget id so that responses find their way back here.
	if id, ok := f.WidgetID(); ok && env.WidgetID == nil {
		withWidget(id)(env)
	}

	data, err := f.encode(env)
	if err != nil {
		return err
	}
	return f.up.Post(ctx, data)
}

func withWidget(id int) envelope.Option {
	return envelope.ToWidget(id)
}
