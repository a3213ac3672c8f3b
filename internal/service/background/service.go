// Package background serves the background context's operations: the
// authoritative store, proof validation and tab control.
package background

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"proof_bridge/internal/model"
	"proof_bridge/internal/protocol/router"
	"proof_bridge/internal/service/diag"
	"proof_bridge/internal/service/store"
	"proof_bridge/internal/utils/log"
	"sync"

	"go.uber.org/zap"
)

// ProofPlatform is the only platform validate-proof accepts.
const ProofPlatform = "li"

type (
	Verifier interface {
		Validate(ctx context.Context, req *model.ValidateProofRequest) (json.RawMessage, error)
	}

	Config struct {
		ResourceBaseURL string
	}

	Service struct {
		router   *router.Background
		store    *store.Store
		verifier Verifier
		baseURL  string

		ready     chan struct{}
		readyOnce sync.Once
		readyErr  error
	}
)

var ErrNotReady = errors.New("background: store bootstrap failed")

// New installs the background operations on r. Requests are held until
// Init has completed.
func New(r *router.Background, s *store.Store, v Verifier, cfg Config) *Service {
	svc := &Service{
		router:   r,
		store:    s,
		verifier: v,
		baseURL:  cfg.ResourceBaseURL,
		ready:    make(chan struct{}),
	}

	handle(svc, model.TypeGetState, svc.getState)
	handle(svc, model.TypeSetState, svc.setState)
	handle(svc, model.TypeUpdateRegistration, svc.updateRegistration)
	handle(svc, model.TypeValidateProof, svc.validateProof)
	handle(svc, model.TypeReloadTabs, svc.reloadTabs)
	handle(svc, model.TypeGetURL, svc.getURL)
	diag.Register(r.Endpoint)

	return svc
}

// handle installs fn behind the readiness gate.
func handle[Req any](s *Service, typ string, fn func(ctx context.Context, req *model.Envelope, payload *Req) (any, error)) {
	router.HandleFunc(s.router.Endpoint, typ, func(ctx context.Context, req *model.Envelope, p *Req) (any, error) {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		return fn(ctx, req, p)
	})
}

// Init loads the state partition, fills in its defaults, then loads the
// platform requests partition. It runs once; later calls return the first
// result.
func (s *Service) Init(ctx context.Context) error {
	s.readyOnce.Do(func() {
		defer close(s.ready)
		s.readyErr = s.bootstrap(ctx)
		if s.readyErr != nil {
			log.Error("store bootstrap failed", zap.Error(s.readyErr))
			return
		}
		log.Info("store ready")
	})
	return s.readyErr
}

func (s *Service) Ready() bool {
	select {
	case <-s.ready:
		return s.readyErr == nil
	default:
		return false
	}
}

func (s *Service) Store() *store.Store {
	return s.store
}

func (s *Service) bootstrap(ctx context.Context) error {
	state, err := s.store.Init(ctx, model.StoreState)
	if err != nil {
		return err
	}

	defaults := make(map[string]any)
	if _, ok := state[model.FieldStaging]; !ok {
		defaults[model.FieldStaging] = false
	}
	if _, ok := state[model.FieldRegs]; !ok {
		defaults[model.FieldRegs] = map[string]any{}
	}
	if len(defaults) > 0 {
		if _, err := s.store.Upsert(ctx, model.StoreState, defaults); err != nil {
			return err
		}
	}

	_, err = s.store.Init(ctx, model.StorePlatformRequests)
	return err
}

func (s *Service) wait(ctx context.Context) error {
	select {
	case <-s.ready:
		if s.readyErr != nil {
			return ErrNotReady
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func storeName(name string) string {
	if name == "" {
		return model.StoreState
	}
	return name
}

func (s *Service) getState(ctx context.Context, _ *model.Envelope, req *model.GetStateRequest) (any, error) {
	name := storeName(req.Store)
	state, err := s.store.Fetch(ctx, name, true)
	if err != nil {
		return nil, err
	}
	return model.StateResponse{State: state, Store: name}, nil
}

func (s *Service) setState(ctx context.Context, _ *model.Envelope, req *model.SetStateRequest) (any, error) {
	if req.Key == "" {
		return nil, model.ErrInvalidArgs
	}

	var value any
	if len(req.Value) > 0 {
		if err := json.Unmarshal(req.Value, &value); err != nil {
			return nil, model.ErrInvalidArgs
		}
	}

	name := storeName(req.Store)
	// state.regs is always an object.
	if name == model.StoreState && req.Key == model.FieldRegs {
		if _, ok := value.(map[string]any); !ok {
			return nil, model.ErrInvalidArgs
		}
	}

	state, err := s.store.Upsert(ctx, name, map[string]any{req.Key: value})
	if err != nil {
		return nil, err
	}
	return model.StateResponse{State: state, Store: name}, nil
}

func (s *Service) updateRegistration(ctx context.Context, _ *model.Envelope, req *model.UpdateRegistrationRequest) (any, error) {
	state, err := s.store.UpdateRegistration(ctx, req.State)
	if err != nil {
		return nil, err
	}
	return model.StateResponse{State: state}, nil
}

func (s *Service) validateProof(ctx context.Context, _ *model.Envelope, req *model.ValidateProofRequest) (any, error) {
	if req.Platform != ProofPlatform || req.ProofURL == "" {
		return nil, model.ErrInvalidArgs
	}
	if s.verifier == nil {
		return nil, errors.New("no connection")
	}
	return s.verifier.Validate(ctx, req)
}

func (s *Service) reloadTabs(ctx context.Context, _ *model.Envelope, req *model.ReloadTabsRequest) (any, error) {
	if req.Contains == "" {
		return nil, model.ErrInvalidArgs
	}

	err := s.router.Post(ctx, model.RoleContent, model.TypeReloadTab, req)
	if errors.Is(err, router.ErrNoRoute) {
		return model.ReloadTabsResponse{}, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ReloadTabsResponse{Notified: s.router.Ports()}, nil
}

func (s *Service) getURL(_ context.Context, _ *model.Envelope, req *model.GetURLRequest) (any, error) {
	if req.File == "" {
		return nil, model.ErrInvalidArgs
	}
	u, err := url.JoinPath(s.baseURL, req.File)
	if err != nil {
		return nil, model.ErrInvalidArgs
	}
	return model.GetURLResponse{URL: u}, nil
}
