package app

import (
	"encoding/json"
	"proof_bridge/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	id := 3
	tests := []struct {
		line string
		want *Command
	}{
		{"get", &Command{From: model.RolePopup, To: model.RoleBackground, Type: model.TypeGetState, Payload: model.GetStateRequest{}}},
		{"get platform-requests", &Command{From: model.RolePopup, To: model.RoleBackground, Type: model.TypeGetState,
			Payload: model.GetStateRequest{Store: "platform-requests"}}},
		{`set staging true`, &Command{From: model.RolePopup, To: model.RoleBackground, Type: model.TypeSetState,
			Payload: model.SetStateRequest{Key: "staging", Value: json.RawMessage("true")}}},
		{"register li jdoe step=proof", &Command{From: model.RolePopup, To: model.RoleBackground, Type: model.TypeUpdateRegistration,
			Payload: model.UpdateRegistrationRequest{State: model.RegistrationState{"platform": "li", "username": "jdoe", "step": "proof"}}}},
		{"reload linkedin.com", &Command{From: model.RolePopup, To: model.RoleBackground, Type: model.TypeReloadTabs,
			Payload: model.ReloadTabsRequest{Contains: "linkedin.com"}}},
		{"log hello there", &Command{From: model.RoleInjected, To: model.RoleContent, Type: model.TypeConsoleLog, Post: true,
			Payload: model.ConsoleRequest{Text: "hello there"}}},
		{"widget 3 ping", &Command{From: model.RoleInjected, To: model.RoleWidget, Type: "ping", Widget: &id}},
		{"dump state", &Command{From: model.RolePopup, To: model.RoleBackground, Dump: "state"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"nope",
		"get a b",
		"set staging",
		"set staging {bad",
		"register li",
		"register li jdoe novalue",
		"validate https://proof",
		"widget x ping",
		"dump",
	} {
		_, err := ParseCommand(line)
		assert.Error(t, err, line)
	}
}
