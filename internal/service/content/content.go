// Package content installs the commands the content context serves itself.
package content

import (
	"context"
	"proof_bridge/internal/model"
	"proof_bridge/internal/protocol/router"
	"proof_bridge/internal/service/diag"
	"strings"
)

type (
	// Navigator is the page the content context runs in.
	Navigator interface {
		URL() string
		Redirect(ctx context.Context, url string) error
		Reload(ctx context.Context) error
	}
)

// Install registers redirect, reload-tab and the console relays on c.
func Install(c *router.Content, nav Navigator) {
	router.HandleFunc(c.Endpoint, model.TypeRedirect, func(ctx context.Context, _ *model.Envelope, req *model.RedirectRequest) (any, error) {
		if req.URL == "" {
			return nil, model.ErrInvalidArgs
		}
		if err := nav.Redirect(ctx, req.URL); err != nil {
			return nil, err
		}
		return router.NoReply, nil
	})

	router.HandleFunc(c.Endpoint, model.TypeReloadTab, func(ctx context.Context, _ *model.Envelope, req *model.ReloadTabsRequest) (any, error) {
		if strings.Contains(nav.URL(), req.Contains) {
			if err := nav.Reload(ctx); err != nil {
				return nil, err
			}
		}
		return router.NoReply, nil
	})

	diag.Register(c.Endpoint)
}
