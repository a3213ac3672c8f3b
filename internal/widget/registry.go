// Package widget keeps the routing record of the widget documents opened by
// the page-injected context.
package widget

import (
	"context"
	"errors"
	"fmt"
	"proof_bridge/internal/transport"
	"proof_bridge/internal/utils/log"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var ErrNoSuchWidget = errors.New("widget: no such widget")

type (
	// Registry maps widget ids to the channel reaching that widget's document.
	Registry struct {
		mu      sync.RWMutex
		widgets map[int]transport.Channel
	}
)

func NewRegistry() *Registry {
	return &Registry{widgets: make(map[int]transport.Channel)}
}

// Register records the channel for id, replacing any previous one.
func (r *Registry) Register(id int, ch transport.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widgets[id] = ch
}

func (r *Registry) Unregister(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.widgets, id)
}

func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.widgets))
	for id := range r.widgets {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Resolve returns the channel for id. A nil id selects the lowest registered
// id; this is ambiguous once several widgets are open and is logged as such.
func (r *Registry) Resolve(id *int) (int, transport.Channel, error) {
	if id != nil {
		r.mu.RLock()
		ch, ok := r.widgets[*id]
		r.mu.RUnlock()
		if !ok {
			return 0, nil, fmt.Errorf("%w: %d", ErrNoSuchWidget, *id)
		}
		return *id, ch, nil
	}

	ids := r.IDs()
	if len(ids) == 0 {
		return 0, nil, ErrNoSuchWidget
	}
	if len(ids) > 1 {
		log.Warn("widget id not given, defaulting to first widget", zap.Ints("open", ids))
	}

	r.mu.RLock()
	ch, ok := r.widgets[ids[0]]
	r.mu.RUnlock()
	if !ok {
		return 0, nil, fmt.Errorf("%w: %d", ErrNoSuchWidget, ids[0])
	}
	return ids[0], ch, nil
}

// Deliver posts data into the widget selected by id.
func (r *Registry) Deliver(ctx context.Context, id *int, data []byte) error {
	_, ch, err := r.Resolve(id)
	if err != nil {
		return err
	}
	return ch.Post(ctx, data)
}
