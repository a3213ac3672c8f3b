package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"proof_bridge/internal/model"
	"strconv"
	"strings"
)

type (
	// Command is one parsed console line: which context sends what to whom.
	Command struct {
		From    model.Role
		To      model.Role
		Type    string
		Payload any
		// Post commands do not wait for a response.
		Post bool
		// Widget addresses one widget when To is the widget role.
		Widget *int
		// Dump reads a partition over the debug route instead of the port.
		Dump string
	}
)

const usage = `commands:
  get [store]                          read a store partition
  set <key> <json> [store]             upsert one key
  register <platform> <username> [k=v ...]
  validate <proofUrl> <first> <last>   validate a proof (platform li)
  reload <contains>                    reload matching tabs
  url <file>                           resolve a packaged resource
  log <text>                           relay a console line to content
  widget <id> <type> [json]            request from injected to a widget
  dump <store>                         read the cached partition over http`

var errUsage = errors.New(usage)

// ParseCommand turns a console line into a Command.
func ParseCommand(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errUsage
	}
	name, args := fields[0], fields[1:]

	cmd := &Command{From: model.RolePopup, To: model.RoleBackground}
	switch name {
	case "get":
		if len(args) > 1 {
			return nil, errUsage
		}
		req := model.GetStateRequest{}
		if len(args) == 1 {
			req.Store = args[0]
		}
		cmd.Type, cmd.Payload = model.TypeGetState, req

	case "set":
		if len(args) < 2 || len(args) > 3 {
			return nil, errUsage
		}
		if !json.Valid([]byte(args[1])) {
			return nil, fmt.Errorf("set: value %q is not json", args[1])
		}
		req := model.SetStateRequest{Key: args[0], Value: json.RawMessage(args[1])}
		if len(args) == 3 {
			req.Store = args[2]
		}
		cmd.Type, cmd.Payload = model.TypeSetState, req

	case "register":
		if len(args) < 2 {
			return nil, errUsage
		}
		state := model.RegistrationState{
			model.FieldPlatform: args[0],
			model.FieldUsername: args[1],
		}
		for _, kv := range args[2:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("register: expected key=value, got %q", kv)
			}
			state[k] = v
		}
		cmd.Type, cmd.Payload = model.TypeUpdateRegistration, model.UpdateRegistrationRequest{State: state}

	case "validate":
		if len(args) != 3 {
			return nil, errUsage
		}
		cmd.Type, cmd.Payload = model.TypeValidateProof, model.ValidateProofRequest{
			ProofURL:  args[0],
			FirstName: args[1],
			LastName:  args[2],
			Platform:  "li",
		}

	case "reload":
		if len(args) != 1 {
			return nil, errUsage
		}
		cmd.Type, cmd.Payload = model.TypeReloadTabs, model.ReloadTabsRequest{Contains: args[0]}

	case "url":
		if len(args) != 1 {
			return nil, errUsage
		}
		cmd.Type, cmd.Payload = model.TypeGetURL, model.GetURLRequest{File: args[0]}

	case "log":
		if len(args) == 0 {
			return nil, errUsage
		}
		cmd.From, cmd.To, cmd.Post = model.RoleInjected, model.RoleContent, true
		cmd.Type, cmd.Payload = model.TypeConsoleLog, model.ConsoleRequest{Text: strings.Join(args, " ")}

	case "widget":
		if len(args) < 2 || len(args) > 3 {
			return nil, errUsage
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("widget: bad id %q", args[0])
		}
		cmd.From, cmd.To, cmd.Type, cmd.Widget = model.RoleInjected, model.RoleWidget, args[1], &id
		if len(args) == 3 {
			if !json.Valid([]byte(args[2])) {
				return nil, fmt.Errorf("widget: payload %q is not json", args[2])
			}
			cmd.Payload = json.RawMessage(args[2])
		}

	case "dump":
		if len(args) != 1 {
			return nil, errUsage
		}
		cmd.Dump = args[0]

	default:
		return nil, errUsage
	}
	return cmd, nil
}
