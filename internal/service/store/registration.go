package store

import (
	"context"
	"fmt"
	"proof_bridge/internal/model"
)

// UpdateRegistration merges reg into state.regs[platform][username] and
// persists the whole state partition. The platform and username fields of
// reg are required.
func (s *Store) UpdateRegistration(ctx context.Context, reg model.RegistrationState) (map[string]any, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: missing registration state", model.ErrInvalidArgs)
	}
	platform, username := reg.Platform(), reg.Username()
	if platform == "" {
		return nil, fmt.Errorf("%w: missing platform", model.ErrInvalidArgs)
	}
	if username == "" {
		return nil, fmt.Errorf("%w: missing username", model.ErrInvalidArgs)
	}

	return s.Update(ctx, model.StoreState, func(state map[string]any) error {
		regs := childMap(state, model.FieldRegs)
		byUser := childMap(regs, platform)
		current := childMap(byUser, username)
		for k, v := range reg {
			current[k] = cloneValue(v)
		}
		return nil
	})
}

// Registration returns state.regs[platform][username] from a state value.
func Registration(state map[string]any, platform, username string) (model.RegistrationState, bool) {
	regs, ok := state[model.FieldRegs].(map[string]any)
	if !ok {
		return nil, false
	}
	byUser, ok := regs[platform].(map[string]any)
	if !ok {
		return nil, false
	}
	reg, ok := byUser[username].(map[string]any)
	return reg, ok
}

// childMap returns m[key] as an object, replacing it with an empty one if
// it is absent or of another type.
func childMap(m map[string]any, key string) map[string]any {
	if child, ok := m[key].(map[string]any); ok {
		return child
	}
	child := make(map[string]any)
	m[key] = child
	return child
}
