// Package envelope builds, encodes and filters protocol envelopes.
//
// Every envelope carries a literal origin tag. Decode checks that tag before
// looking at anything else, so unrelated traffic sharing a broadcast channel
// is discarded without being parsed further.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"proof_bridge/internal/model"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultOrigin tags envelopes belonging to this protocol.
	DefaultOrigin = "proof-bridge"

	// ResponseSuffix is appended to a request type to form its response type.
	ResponseSuffix = "-response"
)

var ErrMalformed = errors.New("envelope: malformed")

func ResponseType(t string) string {
	return t + ResponseSuffix
}

// IsResponse reports whether env answers an earlier request. Both the type
// suffix and the responseTo field must be present.
func IsResponse(env *model.Envelope) bool {
	return env.IsResponse() && strings.HasSuffix(env.Type, ResponseSuffix)
}

// NewSerial returns a fresh 128-bit correlation id.
func NewSerial() string {
	return uuid.NewString()
}

type (
	// Codec encodes envelopes and filters decoded traffic by origin.
	Codec struct {
		origin string
	}

	originProbe struct {
		Origin *string `json:"origin"`
	}
)

func NewCodec(origin string) *Codec {
	if origin == "" {
		origin = DefaultOrigin
	}
	return &Codec{origin: origin}
}

func (c *Codec) Origin() string {
	return c.origin
}

func (c *Codec) Encode(env *model.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Decode parses data. It returns ok == false, with no error, for anything
// that is not an envelope of this protocol. An error is returned only for
// data that carries the right origin tag but is otherwise malformed.
func (c *Codec) Decode(data []byte) (env *model.Envelope, ok bool, err error) {
	var probe originProbe
	if json.Unmarshal(data, &probe) != nil || probe.Origin == nil || *probe.Origin != c.origin {
		return nil, false, nil
	}

	env = new(model.Envelope)
	if err := json.Unmarshal(data, env); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" || !env.To.Valid() {
		return nil, false, fmt.Errorf("%w: type %q to %q", ErrMalformed, env.Type, env.To)
	}
	return env, true, nil
}
