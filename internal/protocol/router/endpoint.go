// Package router moves envelopes between contexts that have no direct
// channel and turns fire-and-forget transport into request/response.
//
// Every context owns an Endpoint: its builder, its pending-request registry
// and its dispatch table. The context-specific routers (Background, Content,
// Injected, Frame) wrap an Endpoint with the routing rules of their role.
// Relaying is stateless: a relay never waits for the response to what it
// relays; only the original sender's registry does.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"proof_bridge/internal/model"
	"proof_bridge/internal/protocol/envelope"
	"proof_bridge/internal/protocol/pending"
	"proof_bridge/internal/utils/log"
	"proof_bridge/internal/widget"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultSweepInterval  = time.Second
)

// NoReply is returned by handlers of fire-and-forget operations. Errors are
// still answered.
var NoReply any = noReply{}

var (
	ErrInvalidArgs  = model.ErrInvalidArgs
	ErrNoRoute      = errors.New("router: no route")
	ErrTimeout      = pending.ErrTimeout
	ErrNoSuchWidget = widget.ErrNoSuchWidget
)

type (
	// Handler serves one operation type. The returned payload, or the
	// error's message as payload.error, is sent back to the requester.
	Handler func(ctx context.Context, req *model.Envelope) (any, error)

	Config struct {
		Origin         string
		RequestTimeout time.Duration
		SweepInterval  time.Duration
		Clock          clock.Clock
	}

	replyFunc func(ctx context.Context, resp *model.Envelope) error

	Endpoint struct {
		builder *envelope.Builder
		codec   *envelope.Codec
		pending *pending.Registry
		clock   clock.Clock
		timeout time.Duration
		sweep   time.Duration

		route    replyFunc
		mu       sync.RWMutex
		handlers map[string]Handler
		fallback Handler
		closed   bool

		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup
	}

	noReply struct{}

	// RemoteError is the payload.error of a response, surfaced as a Go error.
	RemoteError struct {
		Type    string
		Message string
	}
)

func newEndpoint(self model.Role, cfg Config) *Endpoint {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Endpoint{
		builder:  envelope.NewBuilder(self, cfg.Origin),
		codec:    envelope.NewCodec(cfg.Origin),
		pending:  pending.New(pending.WithClock(cfg.Clock), pending.WithTTL(cfg.RequestTimeout)),
		clock:    cfg.Clock,
		timeout:  cfg.RequestTimeout,
		sweep:    cfg.SweepInterval,
		handlers: make(map[string]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ResponseError returns a *RemoteError when resp carries payload.error.
func ResponseError(resp *model.Envelope) error {
	var p model.ErrorPayload
	if json.Unmarshal(resp.Payload, &p) != nil || p.Error == "" {
		return nil
	}
	return &RemoteError{Type: resp.Type, Message: p.Error}
}

func (e *Endpoint) Role() model.Role {
	return e.builder.Self()
}

func (e *Endpoint) Pending() *pending.Registry {
	return e.pending
}

// Handle installs h for typ, replacing any previous handler.
func (e *Endpoint) Handle(typ string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = h
}

// HandleFunc installs a handler that receives its payload decoded into Req.
// A payload that does not decode is answered with an invalid args error.
func HandleFunc[Req any](e *Endpoint, typ string, fn func(ctx context.Context, req *model.Envelope, payload *Req) (any, error)) {
	e.Handle(typ, func(ctx context.Context, req *model.Envelope) (any, error) {
		p := new(Req)
		if err := envelope.DecodePayload(req, p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		return fn(ctx, req, p)
	})
}

// Post sends a message and does not wait for any response.
func (e *Endpoint) Post(ctx context.Context, to model.Role, typ string, payload any, opts ...envelope.Option) error {
	env, err := e.builder.New(to, typ, payload, opts...)
	if err != nil {
		return err
	}
	return e.route(ctx, env)
}

// Send sends a request and returns the handle its response will resolve.
// Route failures, such as an unknown widget, are returned here and no
// slot is left behind.
func (e *Endpoint) Send(ctx context.Context, to model.Role, typ string, payload any, opts ...envelope.Option) (*pending.Handle, error) {
	return e.send(ctx, 0, to, typ, payload, opts...)
}

// Request sends a request and waits for its response, the request timeout,
// or ctx, whichever comes first. The slot is released in every case.
func (e *Endpoint) Request(ctx context.Context, to model.Role, typ string, payload any, opts ...envelope.Option) (*model.Envelope, error) {
	return e.RequestTimeout(ctx, e.timeout, to, typ, payload, opts...)
}

func (e *Endpoint) RequestTimeout(ctx context.Context, timeout time.Duration, to model.Role, typ string, payload any, opts ...envelope.Option) (*model.Envelope, error) {
	if timeout <= 0 {
		timeout = e.timeout
	}

	h, err := e.send(ctx, timeout, to, typ, payload, opts...)
	if err != nil {
		return nil, err
	}

	timer := e.clock.Timer(timeout)
	defer timer.Stop()

	select {
	case <-h.Done():
		if resp := h.Response(); resp != nil {
			return resp, nil
		}
		return nil, h.Err()
	case <-timer.C:
		h.Cancel()
		return nil, fmt.Errorf("%s to %s: %w", typ, to, ErrTimeout)
	case <-ctx.Done():
		h.Cancel()
		return nil, ctx.Err()
	}
}

// RequestInto performs Request and decodes the response payload into out.
// A response carrying payload.error is returned as *RemoteError.
func (e *Endpoint) RequestInto(ctx context.Context, to model.Role, typ string, payload, out any, opts ...envelope.Option) error {
	resp, err := e.Request(ctx, to, typ, payload, opts...)
	if err != nil {
		return err
	}
	if err := ResponseError(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return envelope.DecodePayload(resp, out)
}

// Run sweeps expired requests until ctx is done.
func (e *Endpoint) Run(ctx context.Context) error {
	return e.pending.Run(ctx, e.sweep)
}

func (e *Endpoint) close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.pending.Close()
	e.wg.Wait()
}

func (e *Endpoint) send(ctx context.Context, ttl time.Duration, to model.Role, typ string, payload any, opts ...envelope.Option) (*pending.Handle, error) {
	env, err := e.builder.New(to, typ, payload, opts...)
	if err != nil {
		return nil, err
	}

	h, err := e.pending.Register(env.Serial, ttl)
	if err != nil {
		return nil, err
	}

	if err := e.route(ctx, env); err != nil {
		h.Cancel()
		return nil, err
	}
	return h, nil
}

func (e *Endpoint) encode(env *model.Envelope) ([]byte, error) {
	return e.codec.Encode(env)
}

// decode drops foreign traffic quietly.
func (e *Endpoint) decode(data []byte) (*model.Envelope, bool) {
	env, ok, err := e.codec.Decode(data)
	if err != nil {
		log.Debug("dropping malformed envelope", zap.Stringer("self", e.Role()), zap.Error(err))
	}
	return env, ok
}

// deliver consumes an envelope addressed to this context. Responses resolve
// pending requests; requests are dispatched by type and answered via reply.
func (e *Endpoint) deliver(env *model.Envelope, reply replyFunc) {
	if envelope.IsResponse(env) {
		e.pending.Resolve(env)
		return
	}
	if env.IsResponse() || strings.HasSuffix(env.Type, envelope.ResponseSuffix) {
		log.Debug("dropping unmatched response", zap.String("type", env.Type))
		return
	}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return
	}
	h, ok := e.handlers[env.Type]
	if !ok {
		h = e.fallback
	}
	if h == nil {
		e.mu.RUnlock()
		log.Debug("no handler", zap.Stringer("self", e.Role()), zap.String("type", env.Type))
		return
	}
	e.wg.Add(1)
	e.mu.RUnlock()

	go func() {
		defer e.wg.Done()

		payload, err := h(e.ctx, env)
		if err != nil {
			log.Warn("handler failed",
				zap.Stringer("self", e.Role()), zap.String("type", env.Type), zap.Error(err))
			payload = model.ErrorPayload{Error: err.Error()}
		}
		if payload == NoReply {
			return
		}
		if payload == nil {
			payload = model.Ack{}
		}

		resp, err := e.builder.Reply(env, payload)
		if err != nil {
			log.Error("build response failed", zap.String("type", env.Type), zap.Error(err))
			return
		}
		if err := reply(e.ctx, resp); err != nil {
			log.Warn("send response failed",
				zap.String("type", resp.Type), zap.Stringer("to", resp.To), zap.Error(err))
		}
	}()
}
