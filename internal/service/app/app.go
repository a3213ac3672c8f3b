// Package app is the developer console. It hosts the page-side contexts of
// one tab (content, injected, popup and a widget) in a single process and
// talks to the background over a real port.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"proof_bridge/internal/config"
	"proof_bridge/internal/model"
	"proof_bridge/internal/protocol/envelope"
	"proof_bridge/internal/protocol/router"
	"proof_bridge/internal/service/content"
	"proof_bridge/internal/service/diag"
	redisSvc "proof_bridge/internal/service/redis"
	"proof_bridge/internal/transport"
	"proof_bridge/internal/transport/memory"
	"proof_bridge/internal/transport/redisbus"
	"proof_bridge/internal/utils/log"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rivo/tview"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const ConsoleWidgetID = 1

type (
	App struct {
		app    *tview.Application
		output *tview.TextView
		input  *tview.InputField

		conf *config.Config
		host string
		nav  *navigator

		content  *router.Content
		injected *router.Injected
		popup    *router.Frame
		widget   *router.Frame

		cancel  context.CancelFunc
		group   *errgroup.Group
		closers []func() error

		mu      sync.Mutex
		pending []string
	}
)

func NewApp(conf *config.Config, pageURL string) *App {
	c := &App{
		app:  tview.NewApplication(),
		conf: conf,
		host: conf.Server.Listen,
	}
	c.nav = &navigator{url: pageURL, onEvent: c.print}
	return c
}

// Connect dials the background and starts every page-side router.
func (c *App) Connect(ctx context.Context) error {
	port, err := c.dialPort(ctx)
	if err != nil {
		return fmt.Errorf("dial background: %w", err)
	}
	c.closers = append(c.closers, port.Close)

	page, err := c.pageChannel(ctx)
	if err != nil {
		port.Close()
		return err
	}
	c.closers = append(c.closers, page.Close)

	link := memory.NewBus()
	doc := memory.NewBus()
	c.closers = append(c.closers, link.Close, doc.Close)

	rc := c.conf.RouterConfig()
	c.content = router.NewContent(port, page, rc, router.WithDownlink(model.RolePopup, link))
	content.Install(c.content, c.nav)
	c.injected = router.NewInjected(page, rc)
	c.popup = router.NewPopup(link, rc)
	c.widget = router.NewWidget(page, doc, rc)
	diag.Register(c.widget.Endpoint)
	c.widget.Handle("ping", func(context.Context, *model.Envelope) (any, error) {
		return map[string]bool{"pong": true}, nil
	})

	c.content.Start()
	c.injected.Start()
	c.popup.Start()
	c.widget.Start()

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.group, runCtx = errgroup.WithContext(runCtx)
	for _, e := range []*router.Endpoint{c.content.Endpoint, c.injected.Endpoint, c.popup.Endpoint, c.widget.Endpoint} {
		e := e
		c.group.Go(func() error { return e.Run(runCtx) })
	}

	if err := c.injected.OpenWidget(ctx, ConsoleWidgetID, doc); err != nil {
		c.Stop()
		return fmt.Errorf("open widget: %w", err)
	}
	return nil
}

func (c *App) pageChannel(ctx context.Context) (transport.Channel, error) {
	if c.conf.Redis.PageChannel == "" {
		return memory.NewBus(), nil
	}

	rs := redisSvc.NewRedis(redis.NewClient(&redis.Options{
		Addr:     c.conf.Redis.Addr,
		Password: c.conf.Redis.Password,
		DB:       c.conf.Redis.DB,
	}))
	if err := rs.Ping(ctx); err != nil {
		rs.Close()
		return nil, fmt.Errorf("page bus: %w", err)
	}
	c.closers = append(c.closers, rs.Close)
	return redisbus.New(rs, c.conf.Redis.PageChannel), nil
}

// Run blocks in the terminal UI until it is closed.
func (c *App) Run(ctx context.Context) {
	c.renderUI(ctx)
}

func (c *App) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.group.Wait()
	}
	for _, r := range []interface{ Close() error }{c.widget, c.popup, c.injected, c.content} {
		if r != nil {
			r.Close()
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
	c.app.Stop()
}

// Execute runs one console line and returns what to print.
func (c *App) Execute(ctx context.Context, line string) (string, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return "", err
	}
	if cmd.Dump != "" {
		return c.getStore(ctx, cmd.Dump)
	}

	var from *router.Endpoint
	switch cmd.From {
	case model.RoleInjected:
		from = c.injected.Endpoint
	default:
		from = c.popup.Endpoint
	}

	var opts []envelope.Option
	if cmd.Widget != nil {
		opts = append(opts, envelope.ToWidget(*cmd.Widget))
	}

	if cmd.Post {
		if err := from.Post(ctx, cmd.To, cmd.Type, cmd.Payload, opts...); err != nil {
			return "", err
		}
		return "sent", nil
	}

	resp, err := from.Request(ctx, cmd.To, cmd.Type, cmd.Payload, opts...)
	if err != nil {
		return "", err
	}
	if err := router.ResponseError(resp); err != nil {
		return "", err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, resp.Payload, "", "  "); err != nil {
		return string(resp.Payload), nil
	}
	return out.String(), nil
}

// print writes a line to the output, or holds it until the UI exists.
func (c *App) print(line string) {
	c.mu.Lock()
	if c.output == nil {
		c.pending = append(c.pending, line)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.app.QueueUpdateDraw(func() {
		fmt.Fprintf(c.output, "[blue]%s[-]\n", tview.Escape(line))
		c.output.ScrollToEnd()
	})
}

// blocking function
func (c *App) renderUI(ctx context.Context) {
	output := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	output.SetBorder(true).SetTitle(fmt.Sprintf(" %s ", c.nav.URL()))
	fmt.Fprintf(output, "%s\n", tview.Escape(usage))

	c.mu.Lock()
	c.output = output
	for _, line := range c.pending {
		fmt.Fprintf(output, "[blue]%s[-]\n", tview.Escape(line))
	}
	c.pending = nil
	c.mu.Unlock()

	c.input = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" Command ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		line := c.input.GetText()
		if line == "" {
			return
		}
		c.input.SetText("")

		go func() {
			out, err := c.Execute(ctx, line)
			c.app.QueueUpdateDraw(func() {
				fmt.Fprintf(c.output, "[yellow]>[-] %s\n", tview.Escape(line))
				if err != nil {
					fmt.Fprintf(c.output, "[red]%s[-]\n", tview.Escape(err.Error()))
				} else {
					fmt.Fprintf(c.output, "%s\n", tview.Escape(out))
				}
				c.output.ScrollToEnd()
			})
		}()
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.output, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	if err := c.app.SetRoot(layout, true).SetFocus(c.input).Run(); err != nil {
		log.Fatal("cannot init app", zap.Error(err))
	}
}
