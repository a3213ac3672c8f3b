package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"proof_bridge/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProxiesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req model.ValidateProofRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://proof/1", req.ProofURL)
		w.Write([]byte(`{"valid":false,"reason":"name mismatch"}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, time.Second).Validate(context.Background(), &model.ValidateProofRequest{
		ProofURL: "https://proof/1", Platform: "li",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":false,"reason":"name mismatch"}`, string(out))
}

func TestValidateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Validate(context.Background(), &model.ValidateProofRequest{})
	assert.ErrorIs(t, err, ErrNoConnection)
	assert.Equal(t, "no connection", err.Error())
}

func TestValidateBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Validate(context.Background(), &model.ValidateProofRequest{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoConnection)
	assert.Contains(t, err.Error(), "502")
}
