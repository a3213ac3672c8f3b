package router

import (
	"context"
	"proof_bridge/internal/model"
	"proof_bridge/internal/transport"
	"proof_bridge/internal/utils/log"

	"go.uber.org/zap"
)

type (
	// Content is the router of the content script, the only relay between
	// the page-side contexts and the background.
	//
	// From the privileged port: envelopes for content are consumed, anything
	// for another page-side role is relayed down to it. From the page or a
	// downlink: envelopes for content are consumed, envelopes for the
	// background are wrapped as forward and relayed over the port, and the
	// rest is left alone since the broadcast already delivered it.
	Content struct {
		*Endpoint

		port      transport.Channel
		page      transport.Channel
		downlinks map[model.Role]transport.Channel
		stops     []func()
	}

	ContentOption func(*Content)
)

// WithDownlink routes envelopes for role over ch instead of the page
// broadcast, and listens on ch for envelopes to relay. The popup uses one.
func WithDownlink(role model.Role, ch transport.Channel) ContentOption {
	return func(c *Content) {
		c.downlinks[role] = ch
	}
}

func NewContent(port, page transport.Channel, cfg Config, opts ...ContentOption) *Content {
	c := &Content{
		Endpoint:  newEndpoint(model.RoleContent, cfg),
		port:      port,
		page:      page,
		downlinks: make(map[model.Role]transport.Channel),
	}
	c.route = c.routeOut
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Content) Start() {
	c.stops = append(c.stops, c.port.Listen(c.fromPort))
	c.stops = append(c.stops, c.page.Listen(c.fromPage))
	for _, ch := range c.downlinks {
		c.stops = append(c.stops, ch.Listen(c.fromPage))
	}
}

func (c *Content) Close() error {
	for _, stop := range c.stops {
		stop()
	}
	c.stops = nil
	c.close()
	return nil
}

func (c *Content) downlink(role model.Role) transport.Channel {
	if ch, ok := c.downlinks[role]; ok {
		return ch
	}
	return c.page
}

func (c *Content) fromPort(data []byte) {
	env, ok := c.decode(data)
	if !ok {
		return
	}

	switch env.To {
	case model.RoleContent:
		c.deliver(env, c.routeOut)
	case model.RoleBackground:
		log.Debug("dropping background envelope from port", zap.String("type", env.Type))
	default:
		if err := c.downlink(env.To).Post(c.ctx, data); err != nil {
			log.Warn("relay to page failed",
				zap.Stringer("to", env.To), zap.String("type", env.Type), zap.Error(err))
		}
	}
}

func (c *Content) fromPage(data []byte) {
	env, ok := c.decode(data)
	if !ok || env.From == model.RoleContent {
		return
	}

	switch env.To {
	case model.RoleContent:
		c.deliver(env, c.routeOut)
	case model.RoleBackground:
		fwd, err := c.builder.Forward(env)
		if err != nil {
			log.Error("wrap forward failed", zap.String("type", env.Type), zap.Error(err))
			return
		}
		if err := c.postPort(c.ctx, fwd); err != nil {
			log.Warn("relay to background failed", zap.String("type", env.Type), zap.Error(err))
		}
	}
}

func (c *Content) routeOut(ctx context.Context, env *model.Envelope) error {
	switch env.To {
	case model.RoleContent:
		c.deliver(env, c.routeOut)
		return nil
	case model.RoleBackground:
		return c.postPort(ctx, env)
	}

	data, err := c.encode(env)
	if err != nil {
		return err
	}
	return c.downlink(env.To).Post(ctx, data)
}

func (c *Content) postPort(ctx context.Context, env *model.Envelope) error {
	data, err := c.encode(env)
	if err != nil {
		return err
	}
	return c.port.Post(ctx, data)
}
