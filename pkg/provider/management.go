package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/platinummonkey/idbridge/pkg/config"
	"github.com/platinummonkey/idbridge/pkg/observability"
)

// timeoutConfig bounds every outbound provider call
type timeoutConfig struct {
	d time.Duration
}

func (t timeoutConfig) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.d)
}

// ManagementClient calls the provider's management API using client
// credentials
type ManagementClient struct {
	baseURL string
	client  *http.Client
	timeout timeoutConfig
	metrics *observability.Metrics
}

// NewManagementClient builds a management client with a client-credentials
// token source
func NewManagementClient(ctx context.Context, cfg config.ProviderConfig, metrics *observability.Metrics) *ManagementClient {
	cc := clientcredentials.Config{
		ClientID:     cfg.ManagementClientID,
		ClientSecret: cfg.ManagementClientSecret,
		TokenURL:     cfg.ManagementTokenURL,
	}
	if cfg.ManagementAudience != "" {
		cc.EndpointParams = url.Values{"audience": {cfg.ManagementAudience}}
	}

	return &ManagementClient{
		baseURL: strings.TrimRight(cfg.ManagementBaseURL, "/"),
		client:  cc.Client(ctx),
		timeout: timeoutConfig{cfg.RequestTimeout},
		metrics: metrics,
	}
}

// GetUserRoles returns the full current role set for a subject
func (m *ManagementClient) GetUserRoles(ctx context.Context, subjectID string) ([]Role, error) {
	var roles []Role
	err := m.get(ctx, "get_user_roles", fmt.Sprintf("/users/%s/roles", url.PathEscape(subjectID)), &roles)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// GetUser returns the provider's user record for a subject
func (m *ManagementClient) GetUser(ctx context.Context, subjectID string) (map[string]interface{}, error) {
	var user map[string]interface{}
	err := m.get(ctx, "get_user", fmt.Sprintf("/users/%s", url.PathEscape(subjectID)), &user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUserMetadata merges app metadata onto the provider's user record
func (m *ManagementClient) UpdateUserMetadata(ctx context.Context, subjectID string, metadata map[string]interface{}) error {
	body, err := json.Marshal(map[string]interface{}{"app_metadata": metadata})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return m.do(ctx, "update_user_metadata", http.MethodPatch,
		fmt.Sprintf("/users/%s", url.PathEscape(subjectID)), body, nil)
}

// get issues a GET request and decodes the JSON response into out
func (m *ManagementClient) get(ctx context.Context, operation, path string, out interface{}) error {
	return m.do(ctx, operation, http.MethodGet, path, nil, out)
}

func (m *ManagementClient) do(ctx context.Context, operation, method, path string, body []byte, out interface{}) error {
	ctx, cancel := m.timeout.bound(ctx)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		m.observe(operation, "error", start)
		return fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.observe(operation, fmt.Sprintf("http_%d", resp.StatusCode), start)
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s request returned status %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	m.observe(operation, "ok", start)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}

func (m *ManagementClient) observe(operation, status string, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.ObserveProviderRequest(operation, status, time.Since(start))
}
