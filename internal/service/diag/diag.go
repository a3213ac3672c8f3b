// Package diag consumes console.log and console.error relays from the page.
package diag

import (
	"context"
	"proof_bridge/internal/model"
	"proof_bridge/internal/protocol/router"
	"proof_bridge/internal/utils/log"

	"go.uber.org/zap"
)

// Register installs the console handlers on e.
func Register(e *router.Endpoint) {
	router.HandleFunc(e, model.TypeConsoleLog, func(_ context.Context, req *model.Envelope, p *model.ConsoleRequest) (any, error) {
		log.Info(p.Text, fields(req, p)...)
		return router.NoReply, nil
	})
	router.HandleFunc(e, model.TypeConsoleError, func(_ context.Context, req *model.Envelope, p *model.ConsoleRequest) (any, error) {
		log.Error(p.Text, fields(req, p)...)
		return router.NoReply, nil
	})
}

func fields(req *model.Envelope, p *model.ConsoleRequest) []zap.Field {
	fs := []zap.Field{zap.Stringer("from", req.From)}
	if len(p.More) > 0 {
		fs = append(fs, zap.ByteString("more", p.More))
	}
	return fs
}
