package model

import "encoding/json"

// Operation types carried in Envelope.Type.
const (
	TypeGetState           = "get-state"
	TypeSetState           = "set-state"
	TypeUpdateRegistration = "update-registration"
	TypeValidateProof      = "validate-proof"
	TypeReloadTabs         = "reload-tabs"
	TypeReloadTab          = "reload-tab"
	TypeGetURL             = "get-url"
	TypeWidgetCreate       = "widget-create"
	TypeRedirect           = "redirect"
	TypeConsoleLog         = "console.log"
	TypeConsoleError       = "console.error"
	TypeForward            = "forward"
)

// Store partition names.
const (
	StoreState            = "state"
	StorePlatformRequests = "platform-requests"
)

type (
	// ErrorPayload is the payload of a response whose handler failed.
	ErrorPayload struct {
		Error string `json:"error"`
	}

	Ack struct{}

	GetStateRequest struct {
		Store string `json:"store,omitempty"`
	}

	StateResponse struct {
		State map[string]any `json:"state"`
		Store string         `json:"store,omitempty"`
	}

	SetStateRequest struct {
		Store string          `json:"store,omitempty"`
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}

	UpdateRegistrationRequest struct {
		State RegistrationState `json:"state"`
	}

	ValidateProofRequest struct {
		ProofURL  string          `json:"proofUrl"`
		FirstName string          `json:"firstName"`
		LastName  string          `json:"lastName"`
		UserData  json.RawMessage `json:"userData,omitempty"`
		Platform  string          `json:"platform"`
	}

	ReloadTabsRequest struct {
		Contains string `json:"contains"`
	}

	ReloadTabsResponse struct {
		Notified int `json:"notified"`
	}

	GetURLRequest struct {
		File string `json:"file"`
	}

	GetURLResponse struct {
		URL string `json:"url"`
	}

	WidgetCreateRequest struct {
		ID int `json:"id"`
	}

	RedirectRequest struct {
		URL string `json:"url"`
	}

	ConsoleRequest struct {
		Text string          `json:"text"`
		More json.RawMessage `json:"more,omitempty"`
	}
)
