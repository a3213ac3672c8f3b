package app

import (
	"context"
	"sync"
)

// navigator stands in for the browser tab the content context lives in.
type navigator struct {
	mu      sync.Mutex
	url     string
	onEvent func(string)
}

func (n *navigator) URL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.url
}

func (n *navigator) Redirect(_ context.Context, url string) error {
	n.mu.Lock()
	n.url = url
	n.mu.Unlock()
	n.onEvent("redirected to " + url)
	return nil
}

func (n *navigator) Reload(context.Context) error {
	n.onEvent("reloaded " + n.URL())
	return nil
}
