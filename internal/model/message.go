package model

import "encoding/json"

type (
	// Role names one of the isolated execution contexts.
	Role string

	// Envelope is the wire record exchanged between contexts.
	Envelope struct {
		To         Role            `json:"to"`
		From       Role            `json:"from"`
		Type       string          `json:"type"`
		Serial     string          `json:"serial"`
		ResponseTo string          `json:"responseTo,omitempty"`
		Origin     string          `json:"origin"`
		WidgetID   *int            `json:"widgetId,omitempty"`
		Payload    json.RawMessage `json:"payload,omitempty"`
	}
)

const (
	RoleBackground Role = "background"
	RoleContent    Role = "content"
	RoleInjected   Role = "injected"
	RoleWidget     Role = "injected-widget"
	RolePopup      Role = "popup"
)

func (r Role) Valid() bool {
	switch r {
	case RoleBackground, RoleContent, RoleInjected, RoleWidget, RolePopup:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// IsResponse reports whether the envelope answers an earlier request.
func (e *Envelope) IsResponse() bool {
	return e.ResponseTo != ""
}
