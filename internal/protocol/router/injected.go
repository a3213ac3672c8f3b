package router

import (
	"context"
	"proof_bridge/internal/model"
	"proof_bridge/internal/transport"
	"proof_bridge/internal/utils/log"
	"proof_bridge/internal/widget"

	"go.uber.org/zap"
)

type (
	// Injected is the router of the script running in the page's own
	// context. It reaches content over the page broadcast and its widget
	// documents through the widget routing record.
	Injected struct {
		*Endpoint

		page    transport.Channel
		widgets *widget.Registry
		stop    func()
	}
)

func NewInjected(page transport.Channel, cfg Config) *Injected {
	i := &Injected{
		Endpoint: newEndpoint(model.RoleInjected, cfg),
		page:     page,
		widgets:  widget.NewRegistry(),
	}
	i.route = i.routeOut
	return i
}

func (i *Injected) Widgets() *widget.Registry {
	return i.widgets
}

func (i *Injected) Start() {
	i.stop = i.page.Listen(i.fromPage)
}

func (i *Injected) Close() error {
	if i.stop != nil {
		i.stop()
	}
	i.close()
	return nil
}

// OpenWidget records the channel into a freshly opened widget document and
// tells the widget which id it has been given.
func (i *Injected) OpenWidget(ctx context.Context, id int, ch transport.Channel) error {
	i.widgets.Register(id, ch)
	if err := i.RequestInto(ctx, model.RoleWidget, model.TypeWidgetCreate,
		model.WidgetCreateRequest{ID: id}, nil, withWidget(id)); err != nil {
		i.widgets.Unregister(id)
		return err
	}
	return nil
}

func (i *Injected) CloseWidget(id int) {
	i.widgets.Unregister(id)
}

func (i *Injected) fromPage(data []byte) {
	env, ok := i.decode(data)
	if !ok {
		return
	}

	switch env.To {
	case model.RoleInjected:
		i.deliver(env, i.routeOut)
	case model.RoleWidget:
		if env.From == model.RoleInjected || env.From == model.RoleWidget {
			return
		}
		if err := i.widgets.Deliver(i.ctx, env.WidgetID, data); err != nil {
			log.Warn("relay to widget failed", zap.String("type", env.Type), zap.Error(err))
		}
	}
}

// routeOut sends widget traffic straight into the widget document and
// everything else onto the page, where content picks it up.
func (i *Injected) routeOut(ctx context.Context, env *model.Envelope) error {
	switch env.To {
	case model.RoleInjected:
		i.deliver(env, i.routeOut)
		return nil
	case model.RoleWidget:
		data, err := i.encode(env)
		if err != nil {
			return err
		}
		return i.widgets.Deliver(ctx, env.WidgetID, data)
	}

	data, err := i.encode(env)
	if err != nil {
		return err
	}
	return i.page.Post(ctx, data)
}
