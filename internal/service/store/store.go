// Package store is the background's authoritative key-value store. It holds
// named partitions, each an arbitrary JSON object, and is the only shared
// mutable state of the system.
//
// A partition moves from uninitialized through loading to ready. All access
// to one partition is serialized by its mutex, so requests that arrive while
// a load is in flight queue behind it, and concurrent read-modify-write
// operations never interleave.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

type (
	// Backend is the durable storage below the store. Load returns a nil
	// map, and no error, for a partition that was never saved.
	Backend interface {
		Load(ctx context.Context, name string) (map[string]any, error)
		Save(ctx context.Context, name string, value map[string]any) error
	}

	Status int

	Store struct {
		backend Backend

		mu    sync.Mutex
		parts map[string]*partition
	}

	partition struct {
		mu     sync.Mutex
		status atomic.Int32
		value  map[string]any
	}
)

const (
	Uninitialized Status = iota
	Loading
	Ready
)

var ErrNoPartition = errors.New("store: partition name is empty")

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		parts:   make(map[string]*partition),
	}
}

// Init loads the partition from durable storage, replacing any cached copy.
func (s *Store) Init(ctx context.Context, name string) (map[string]any, error) {
	return s.Fetch(ctx, name, false)
}

// Fetch returns a copy of the partition. With allowCached a ready partition
// is served from memory; otherwise it is read through from the backend.
func (s *Store) Fetch(ctx context.Context, name string, allowCached bool) (map[string]any, error) {
	p, err := s.partition(name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !allowCached || p.Status() != Ready {
		if err := p.load(ctx, s.backend, name); err != nil {
			return nil, err
		}
	}
	return cloneMap(p.value), nil
}

// Save overwrites the partition. The cache only changes once the backend
// has accepted the write.
func (s *Store) Save(ctx context.Context, name string, value map[string]any) (map[string]any, error) {
	p, err := s.partition(name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := cloneMap(value)
	if next == nil {
		next = make(map[string]any)
	}
	if err := s.backend.Save(ctx, name, next); err != nil {
		return nil, fmt.Errorf("store: save %s: %w", name, err)
	}
	p.value = next
	p.status.Store(int32(Ready))
	return cloneMap(next), nil
}

// Upsert shallow-merges partial into the partition: keys in partial replace
// the stored ones, other keys are kept.
func (s *Store) Upsert(ctx context.Context, name string, partial map[string]any) (map[string]any, error) {
	return s.Update(ctx, name, func(value map[string]any) error {
		for k, v := range partial {
			value[k] = cloneValue(v)
		}
		return nil
	})
}

// Update runs a read-modify-write on the partition. fn receives a private
// copy; if it returns an error nothing is written.
func (s *Store) Update(ctx context.Context, name string, fn func(value map[string]any) error) (map[string]any, error) {
	p, err := s.partition(name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Status() != Ready {
		if err := p.load(ctx, s.backend, name); err != nil {
			return nil, err
		}
	}

	next := cloneMap(p.value)
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := s.backend.Save(ctx, name, next); err != nil {
		return nil, fmt.Errorf("store: save %s: %w", name, err)
	}
	p.value = next
	return cloneMap(next), nil
}

// Cached returns the in-memory copy of a ready partition without touching
// the backend.
func (s *Store) Cached(name string) (map[string]any, bool) {
	s.mu.Lock()
	p, ok := s.parts[name]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Status() != Ready {
		return nil, false
	}
	return cloneMap(p.value), true
}

func (s *Store) Statuses() map[string]Status {
	s.mu.Lock()
	names := make([]string, 0, len(s.parts))
	for name := range s.parts {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	out := make(map[string]Status, len(names))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		out[name] = s.parts[name].Status()
	}
	return out
}

func (s *Store) partition(name string) (*partition, error) {
	if name == "" {
		return nil, ErrNoPartition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.parts[name]
	if !ok {
		p = &partition{}
		s.parts[name] = p
	}
	return p, nil
}

func (p *partition) Status() Status {
	return Status(p.status.Load())
}

// load must be called with p.mu held. The status is readable without the
// lock, so observers can see a partition that is loading.
func (p *partition) load(ctx context.Context, backend Backend, name string) error {
	prev := p.status.Swap(int32(Loading))

	value, err := backend.Load(ctx, name)
	if err != nil {
		p.status.Store(prev)
		return fmt.Errorf("store: load %s: %w", name, err)
	}
	if value == nil {
		value = make(map[string]any)
	}
	p.value = value
	p.status.Store(int32(Ready))
	return nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
