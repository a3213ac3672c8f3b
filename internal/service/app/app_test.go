package app

import (
	"context"
	"net/http/httptest"
	"proof_bridge/internal/config"
	"proof_bridge/internal/protocol/router"
	"proof_bridge/internal/service/background"
	"proof_bridge/internal/service/server"
	"proof_bridge/internal/service/store"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnectedApp(t *testing.T) *App {
	t.Helper()
	ctx := context.Background()

	conf := config.Default()
	conf.Router.RequestTimeout = config.Duration{Duration: 2 * time.Second}

	bg := router.NewBackground(conf.RouterConfig())
	svc := background.New(bg, store.New(store.NewMemoryBackend()), nil,
		background.Config{ResourceBaseURL: "https://ext.example/"})
	require.NoError(t, svc.Init(ctx))

	srv := httptest.NewServer(server.NewHttpServer("", bg, svc).Handler())
	conf.Server.Listen = strings.TrimPrefix(srv.URL, "http://")

	c := NewApp(conf, "https://www.linkedin.com/in/jdoe")
	require.NoError(t, c.Connect(ctx))

	t.Cleanup(func() {
		c.Stop()
		srv.Close()
		bg.Close()
	})
	return c
}

func (c *App) held() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pending...)
}

func TestExecuteStoreCommands(t *testing.T) {
	c := newConnectedApp(t)
	ctx := context.Background()

	_, err := c.Execute(ctx, "set staging true")
	require.NoError(t, err)

	out, err := c.Execute(ctx, "get")
	require.NoError(t, err)
	assert.Contains(t, out, `"staging": true`)

	out, err = c.Execute(ctx, "register li jdoe step=proof")
	require.NoError(t, err)
	assert.Contains(t, out, `"jdoe"`)

	out, err = c.Execute(ctx, "dump state")
	require.NoError(t, err)
	assert.Contains(t, out, `"step":"proof"`)
}

func TestExecuteRemoteError(t *testing.T) {
	c := newConnectedApp(t)

	_, err := c.Execute(context.Background(), "validate https://proof Jane Doe")
	var remote *router.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "no connection", remote.Message)
}

func TestExecuteWidgetAndLog(t *testing.T) {
	c := newConnectedApp(t)
	ctx := context.Background()

	out, err := c.Execute(ctx, "widget 1 ping")
	require.NoError(t, err)
	assert.Contains(t, out, `"pong": true`)

	_, err = c.Execute(ctx, "widget 2 ping")
	assert.ErrorIs(t, err, router.ErrNoSuchWidget)

	out, err = c.Execute(ctx, "log hello")
	require.NoError(t, err)
	assert.Equal(t, "sent", out)
}

func TestExecuteReload(t *testing.T) {
	c := newConnectedApp(t)

	out, err := c.Execute(context.Background(), "reload linkedin")
	require.NoError(t, err)
	assert.Contains(t, out, `"notified": 1`)

	assert.Eventually(t, func() bool {
		held := c.held()
		return len(held) == 1 && held[0] == "reloaded https://www.linkedin.com/in/jdoe"
	}, time.Second, 10*time.Millisecond)
}
