package model

import "errors"

// ErrInvalidArgs marks a request whose payload is missing required fields.
var ErrInvalidArgs = errors.New("invalid args")
