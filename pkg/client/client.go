// Package client is the operator-facing HTTP client used by the publishing
// CLI. Requests retry on connection errors but never on HTTP error statuses,
// so server-side validation failures surface as-is.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"otacast/pkg/models"
)

const (
	defaultRetryMax     = 3
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to one update server.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// New creates a client for the given server base URL.
func New(baseURL string, timeout time.Duration) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = defaultRetryMax
	httpClient.RetryWaitMin = defaultRetryWaitMin
	httpClient.RetryWaitMax = defaultRetryWaitMax
	httpClient.HTTPClient.Timeout = timeout
	httpClient.Logger = nil // Disable retryablehttp logging
	httpClient.CheckRetry = connectionRetryPolicy

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// connectionRetryPolicy only retries on connection/timeout errors, never on
// HTTP status errors, so validation responses come back unmangled.
func connectionRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil {
		return false, nil
	}
	if err != nil {
		return true, nil //nolint:nilerr // retryablehttp reports the final error
	}
	return false, nil
}

// CreateChannel creates a channel and returns it with its fresh key.
func (c *Client) CreateChannel(ctx context.Context, project, name string) (*models.Channel, error) {
	var channel models.Channel
	err := c.doJSON(ctx, http.MethodPost, "/api/channels",
		map[string]string{"project": project, "name": name}, &channel)
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// RegenerateKey replaces the channel key and returns the new one.
func (c *Client) RegenerateKey(ctx context.Context, channelKey string) (string, error) {
	var resp map[string]string
	err := c.doJSON(ctx, http.MethodPost, "/api/channels/"+channelKey+"/regenerate-key", nil, &resp)
	if err != nil {
		return "", err
	}
	return resp["key"], nil
}

// EnableSigning turns on manifest signing for the channel and returns the
// public key clients verify against.
func (c *Client) EnableSigning(ctx context.Context, channelKey string) (string, error) {
	var resp map[string]string
	err := c.doJSON(ctx, http.MethodPost, "/api/channels/"+channelKey+"/signing", nil, &resp)
	if err != nil {
		return "", err
	}
	return resp["publicKey"], nil
}

// SetChannelEnabled toggles a channel. Disabled channels answer manifest
// checks with not-found.
func (c *Client) SetChannelEnabled(ctx context.Context, channelKey string, enabled bool) error {
	return c.doJSON(ctx, http.MethodPut, "/api/channels/"+channelKey+"/enabled",
		map[string]bool{"is_enabled": enabled}, nil)
}

// DeleteChannel soft-deletes a channel.
func (c *Client) DeleteChannel(ctx context.Context, channelKey string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/channels/"+channelKey, nil, nil)
}

// PublishParams configures one bundle publication.
type PublishParams struct {
	ChannelKey        string
	RuntimeVersion    string
	RolloutPercentage int
	Metadata          map[string]string
}

// PublishBundle uploads a zip bundle and returns the created update.
func (c *Client) PublishBundle(ctx context.Context, params PublishParams, bundle []byte) (*models.Update, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("runtimeVersion", params.RuntimeVersion); err != nil {
		return nil, err
	}
	if err := writer.WriteField("rolloutPercentage", strconv.Itoa(params.RolloutPercentage)); err != nil {
		return nil, err
	}
	if len(params.Metadata) > 0 {
		metadataJSON, err := json.Marshal(params.Metadata)
		if err != nil {
			return nil, err
		}
		if err = writer.WriteField("metadata", string(metadataJSON)); err != nil {
			return nil, err
		}
	}
	part, err := writer.CreateFormFile("bundle", "bundle.zip")
	if err != nil {
		return nil, err
	}
	if _, err = part.Write(bundle); err != nil {
		return nil, err
	}
	if err = writer.Close(); err != nil {
		return nil, err
	}

	var upd models.Update
	err = c.do(ctx, http.MethodPost, "/api/channels/"+params.ChannelKey+"/bundles",
		body.Bytes(), writer.FormDataContentType(), &upd)
	if err != nil {
		return nil, err
	}
	return &upd, nil
}

// SetRollout changes the staged rollout percentage of an update.
func (c *Client) SetRollout(ctx context.Context, updateID string, percentage int) error {
	return c.doJSON(ctx, http.MethodPut, "/api/updates/"+updateID+"/rollout",
		map[string]int{"percentage": percentage}, nil)
}

// SetEnabled toggles an update.
func (c *Client) SetEnabled(ctx context.Context, updateID string, enabled bool) error {
	return c.doJSON(ctx, http.MethodPut, "/api/updates/"+updateID+"/enabled",
		map[string]bool{"enabled": enabled}, nil)
}

// CreateRule attaches a rollout rule to an update.
func (c *Client) CreateRule(ctx context.Context, updateID, ruleType string, value models.RuleValue, priority int) (*models.RolloutRule, error) {
	var rule models.RolloutRule
	err := c.doJSON(ctx, http.MethodPost, "/api/updates/"+updateID+"/rules", map[string]interface{}{
		"type":     ruleType,
		"value":    value,
		"priority": priority,
	}, &rule)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules returns the rules attached to an update.
func (c *Client) ListRules(ctx context.Context, updateID string) ([]models.RolloutRule, error) {
	var rules []models.RolloutRule
	if err := c.doJSON(ctx, http.MethodGet, "/api/updates/"+updateID+"/rules", nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// DeleteRule removes a rule.
func (c *Client) DeleteRule(ctx context.Context, ruleID int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/rules/"+strconv.FormatInt(ruleID, 10), nil, nil)
}

// DirectiveParams configures a new directive.
type DirectiveParams struct {
	ChannelKey     string
	RuntimeVersion string
	Type           string
	Parameters     map[string]string
	ExpiresAt      *time.Time
}

// CreateDirective records a directive, active immediately.
func (c *Client) CreateDirective(ctx context.Context, params DirectiveParams) (*models.Directive, error) {
	var directive models.Directive
	err := c.doJSON(ctx, http.MethodPost, "/api/channels/"+params.ChannelKey+"/directives", map[string]interface{}{
		"runtime_version": params.RuntimeVersion,
		"type":            params.Type,
		"parameters":      params.Parameters,
		"expires_at":      params.ExpiresAt,
	}, &directive)
	if err != nil {
		return nil, err
	}
	return &directive, nil
}

// ListDirectives returns all directives of a channel.
func (c *Client) ListDirectives(ctx context.Context, channelKey string) ([]models.Directive, error) {
	var directives []models.Directive
	if err := c.doJSON(ctx, http.MethodGet, "/api/channels/"+channelKey+"/directives", nil, &directives); err != nil {
		return nil, err
	}
	return directives, nil
}

// DeactivateDirective turns a directive off.
func (c *Client) DeactivateDirective(ctx context.Context, directiveID int64) error {
	return c.doJSON(ctx, http.MethodPost,
		"/api/directives/"+strconv.FormatInt(directiveID, 10)+"/deactivate", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	var body []byte
	contentType := ""
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return err
		}
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, out interface{}) error {
	var reqBody io.ReadSeeker
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// errorMessage extracts the error field from a JSON error body, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var wire struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error != "" {
		return wire.Error
	}
	return strings.TrimSpace(string(body))
}
