// Package pending correlates responses with the requests that are waiting
// for them.
//
// Each outgoing request gets a slot keyed by its serial. A slot is removed
// exactly once: when a matching response arrives, when the caller cancels,
// when its deadline passes and the sweep runs, or when the registry closes.
package pending

import (
	"context"
	"errors"
	"proof_bridge/internal/model"
	"proof_bridge/internal/protocol/envelope"
	"proof_bridge/internal/utils/log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// DefaultTTL bounds how long an unanswered slot is kept.
const DefaultTTL = 30 * time.Second

var (
	ErrTimeout   = errors.New("pending: request timed out")
	ErrCancelled = errors.New("pending: request cancelled")
	ErrClosed    = errors.New("pending: registry closed")
	ErrDuplicate = errors.New("pending: serial already registered")
)

type (
	// Resolver receives the response to a request.
	Resolver func(resp *model.Envelope)

	Registry struct {
		mu      sync.Mutex
		clock   clock.Clock
		ttl     time.Duration
		entries map[string]*entry
		closed  bool
	}

	entry struct {
		handle    *Handle
		resolvers []Resolver
		deadline  time.Time
	}

	Handle struct {
		reg    *Registry
		serial string
		done   chan struct{}

		// guarded by reg.mu
		resp *model.Envelope
		err  error
	}

	Option func(*Registry)
)

func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithTTL sets the lifetime given to slots registered without an explicit one.
func WithTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		clock:   clock.New(),
		ttl:     DefaultTTL,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates the slot for serial. A non-positive ttl uses the
// registry default.
func (r *Registry) Register(serial string, ttl time.Duration) (*Handle, error) {
	if ttl <= 0 {
		ttl = r.ttl
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if _, ok := r.entries[serial]; ok {
		return nil, ErrDuplicate
	}

	h := &Handle{reg: r, serial: serial, done: make(chan struct{})}
	r.entries[serial] = &entry{
		handle:   h,
		deadline: r.clock.Now().Add(ttl),
	}
	return h, nil
}

// Resolve delivers env to the slot it answers and removes the slot. It
// reports false, doing nothing, when env is not a response or nobody is
// waiting for it any more.
func (r *Registry) Resolve(env *model.Envelope) bool {
	if !envelope.IsResponse(env) {
		return false
	}

	r.mu.Lock()
	e, ok := r.entries[env.ResponseTo]
	if !ok {
		r.mu.Unlock()
		log.Debug("response without pending request",
			zap.String("type", env.Type), zap.String("responseTo", env.ResponseTo))
		return false
	}
	delete(r.entries, env.ResponseTo)
	e.handle.resp = env
	close(e.handle.done)
	resolvers := e.resolvers
	r.mu.Unlock()

	for _, fn := range resolvers {
		fn(env)
	}
	return true
}

// Cancel drops the slot for serial. Its resolvers never fire.
func (r *Registry) Cancel(serial string) bool {
	return r.settle(serial, nil, ErrCancelled)
}

// Sweep evicts every slot whose deadline has passed and returns how many
// were evicted.
func (r *Registry) Sweep() int {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for serial, e := range r.entries {
		if now.Before(e.deadline) {
			continue
		}
		delete(r.entries, serial)
		e.handle.err = ErrTimeout
		close(e.handle.done)
		n++
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := r.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Debug("evicted expired requests", zap.Int("count", n))
			}
		}
	}
}

// Close settles every outstanding slot with ErrClosed and refuses new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for serial, e := range r.entries {
		delete(r.entries, serial)
		e.handle.err = ErrClosed
		close(e.handle.done)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// settle ends the slot for serial with err. When h is not nil the slot is
// only ended if it still belongs to h.
func (r *Registry) settle(serial string, h *Handle, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[serial]
	if !ok || (h != nil && e.handle != h) {
		return false
	}
	delete(r.entries, serial)
	e.handle.err = err
	close(e.handle.done)
	return true
}

func (h *Handle) Serial() string {
	return h.serial
}

// AddResolver registers fn to receive the response. Every resolver of a
// slot is invoked, in registration order. If the response already arrived
// fn is invoked immediately; if the slot ended without one fn is dropped.
func (h *Handle) AddResolver(fn Resolver) *Handle {
	r := h.reg
	r.mu.Lock()
	if e, ok := r.entries[h.serial]; ok && e.handle == h {
		e.resolvers = append(e.resolvers, fn)
		r.mu.Unlock()
		return h
	}
	resp := h.resp
	r.mu.Unlock()

	if resp != nil {
		fn(resp)
	}
	return h
}

// Done is closed when the slot ends for any reason.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns why the slot ended without a response, or nil.
func (h *Handle) Err() error {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	return h.err
}

func (h *Handle) Response() *model.Envelope {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	return h.resp
}

func (h *Handle) Cancel() bool {
	return h.reg.settle(h.serial, h, ErrCancelled)
}
