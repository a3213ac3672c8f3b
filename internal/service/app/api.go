package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"proof_bridge/internal/transport/wsport"
)

// getStore reads the cached partition from the background's debug route.
func (c *App) getStore(ctx context.Context, name string) (string, error) {
	u := url.URL{
		Scheme: "http",
		Host:   c.host,
		Path:   fmt.Sprintf("/stores/%s", url.PathEscape(name)),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}

	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dump %s: %s", name, resp.Status)
	}
	return string(data), nil
}

func (c *App) dialPort(ctx context.Context) (*wsport.Conn, error) {
	u := url.URL{
		Scheme: "ws",
		Host:   c.host,
		Path:   "/port",
	}
	return wsport.Dial(ctx, u.String(), nil)
}
