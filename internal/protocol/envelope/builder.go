package envelope

import (
	"encoding/json"
	"fmt"
	"proof_bridge/internal/model"
)

type (
	// Builder produces envelopes on behalf of one context.
	Builder struct {
		self   model.Role
		origin string
	}

	// Option sets an optional envelope field.
	Option func(*model.Envelope)
)

// ToWidget addresses a specific widget document.
func ToWidget(id int) Option {
	return func(env *model.Envelope) {
		env.WidgetID = &id
	}
}

func NewBuilder(self model.Role, origin string) *Builder {
	if origin == "" {
		origin = DefaultOrigin
	}
	return &Builder{self: self, origin: origin}
}

func (b *Builder) Self() model.Role {
	return b.self
}

// New builds a request envelope with a fresh serial. The payload is not
// validated here; receivers validate their own payloads.
func (b *Builder) New(to model.Role, typ string, payload any, opts ...Option) (*model.Envelope, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("envelope %s: %w", typ, err)
	}

	env := &model.Envelope{
		To:      to,
		From:    b.self,
		Type:    typ,
		Serial:  NewSerial(),
		Origin:  b.origin,
		Payload: raw,
	}
	for _, opt := range opts {
		opt(env)
	}
	return env, nil
}

// Reply builds the response to req. It is addressed back to the original
// sender and carries req's serial in ResponseTo.
func (b *Builder) Reply(req *model.Envelope, payload any) (*model.Envelope, error) {
	env, err := b.New(req.From, ResponseType(req.Type), payload)
	if err != nil {
		return nil, err
	}
	env.ResponseTo = req.Serial
	env.WidgetID = req.WidgetID
	return env, nil
}

// Forward wraps env for relay over the privileged channel. The original
// envelope, including its from field, travels untouched as the payload.
func (b *Builder) Forward(env *model.Envelope) (*model.Envelope, error) {
	return b.New(model.RoleBackground, model.TypeForward, env)
}

// Unwrap returns the envelope carried by a forward envelope.
func Unwrap(fwd *model.Envelope) (*model.Envelope, error) {
	if fwd.Type != model.TypeForward {
		return nil, fmt.Errorf("%w: %q is not a forward", ErrMalformed, fwd.Type)
	}
	inner := new(model.Envelope)
	if err := json.Unmarshal(fwd.Payload, inner); err != nil {
		return nil, fmt.Errorf("%w: forward payload: %v", ErrMalformed, err)
	}
	if inner.Origin != fwd.Origin {
		return nil, fmt.Errorf("%w: forward carries foreign origin %q", ErrMalformed, inner.Origin)
	}
	return inner, nil
}

// DecodePayload unmarshals the payload of env into v. An absent payload
// leaves v untouched.
func DecodePayload(env *model.Envelope, v any) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(env.Payload, v)
}

func marshalPayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	}
	return json.Marshal(payload)
}
