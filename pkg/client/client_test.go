package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otacast/pkg/models"
)

// recordedRequest captures what the client actually sent.
type recordedRequest struct {
	method      string
	path        string
	contentType string
	body        []byte
}

func stubServer(t *testing.T, status int, response interface{}) (*Client, *recordedRequest) {
	t.Helper()
	recorded := &recordedRequest{}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorded.method = r.Method
		recorded.path = r.URL.Path
		recorded.contentType = r.Header.Get("Content-Type")
		recorded.body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if response != nil {
			_ = json.NewEncoder(w).Encode(response)
		}
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second), recorded
}

func TestCreateChannel(t *testing.T) {
	cli, recorded := stubServer(t, http.StatusCreated, models.Channel{
		ID: 1, Project: "demo", Name: "production", Key: "abc123",
	})

	channel, err := cli.CreateChannel(context.Background(), "demo", "production")
	require.NoError(t, err)
	assert.Equal(t, "abc123", channel.Key)

	assert.Equal(t, http.MethodPost, recorded.method)
	assert.Equal(t, "/api/channels", recorded.path)
	assert.JSONEq(t, `{"project":"demo","name":"production"}`, string(recorded.body))
}

func TestPublishBundle(t *testing.T) {
	cli, recorded := stubServer(t, http.StatusCreated, models.Update{
		ID: "upd-1", RuntimeVersion: "1.0.0",
	})

	upd, err := cli.PublishBundle(context.Background(), PublishParams{
		ChannelKey:        "abc123",
		RuntimeVersion:    "1.0.0",
		RolloutPercentage: 25,
		Metadata:          map[string]string{"branch": "main"},
	}, []byte("zip bytes"))
	require.NoError(t, err)
	assert.Equal(t, "upd-1", upd.ID)

	assert.Equal(t, "/api/channels/abc123/bundles", recorded.path)
	assert.Contains(t, recorded.contentType, "multipart/form-data")
	assert.Contains(t, string(recorded.body), "zip bytes")
	assert.Contains(t, string(recorded.body), "1.0.0")
	assert.Contains(t, string(recorded.body), `{"branch":"main"}`)
}

func TestSetRollout(t *testing.T) {
	cli, recorded := stubServer(t, http.StatusNoContent, nil)

	err := cli.SetRollout(context.Background(), "upd-1", 75)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, recorded.method)
	assert.Equal(t, "/api/updates/upd-1/rollout", recorded.path)
	assert.JSONEq(t, `{"percentage":75}`, string(recorded.body))
}

func TestCreateRule(t *testing.T) {
	cli, recorded := stubServer(t, http.StatusCreated, models.RolloutRule{
		ID: 7, Type: models.RuleTypeDeviceID,
	})

	rule, err := cli.CreateRule(context.Background(), "upd-1", models.RuleTypeDeviceID,
		models.RuleValue{Include: []string{"vip"}}, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rule.ID)
	assert.Equal(t, "/api/updates/upd-1/rules", recorded.path)
}

func TestCreateDirective(t *testing.T) {
	cli, recorded := stubServer(t, http.StatusCreated, models.Directive{ID: 3})

	directive, err := cli.CreateDirective(context.Background(), DirectiveParams{
		ChannelKey:     "abc123",
		RuntimeVersion: "1.0.0",
		Type:           models.DirectiveRollBackToEmbedded,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), directive.ID)
	assert.Equal(t, "/api/channels/abc123/directives", recorded.path)
}

func TestAPIErrorSurfaced(t *testing.T) {
	cli, _ := stubServer(t, http.StatusBadRequest, map[string]string{
		"error": "rolloutPercentage must be an integer in [0, 100]",
	})

	err := cli.SetRollout(context.Background(), "upd-1", 150)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "rolloutPercentage")
}

func TestNoRetryOnHTTPErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cli := New(srv.URL, 5*time.Second)
	err := cli.SetEnabled(context.Background(), "upd-1", true)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "HTTP errors must not be retried")
}
