// Package verify talks to the external proof verification service.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"proof_bridge/internal/model"
	"proof_bridge/internal/utils/log"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoConnection means the service could not be reached at all, as
	// opposed to answering that a proof is not valid.
	ErrNoConnection = errors.New("no connection")
)

type (
	Client struct {
		url  string
		http *http.Client
	}
)

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Validate posts the proof to the service and returns its JSON answer
// unchanged.
func (c *Client) Validate(ctx context.Context, req *model.ValidateProofRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Warn("verification service unreachable", zap.String("url", c.url), zap.Error(err))
		return nil, ErrNoConnection
	}

	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("verification service: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrNoConnection
	}
	if !json.Valid(data) {
		return nil, errors.New("verification service: invalid response")
	}
	return data, nil
}
