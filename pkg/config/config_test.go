package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the minimum environment for a valid config.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("IDBRIDGE_POSTGRES_URL", "postgres://localhost/idbridge?sslmode=disable")
	t.Setenv("IDBRIDGE_OIDC_ISSUER_URL", "https://tenant.example.auth0.com/")
	t.Setenv("IDBRIDGE_OIDC_CLIENT_ID", "client-id")
	t.Setenv("IDBRIDGE_OIDC_CLIENT_SECRET", "client-secret")
	t.Setenv("IDBRIDGE_OIDC_REDIRECT_URL", "https://app.example.com/auth/callback")
	t.Setenv("IDBRIDGE_MGMT_BASE_URL", "https://tenant.example.auth0.com/api/v2")
	t.Setenv("IDBRIDGE_MGMT_TOKEN_URL", "https://tenant.example.auth0.com/oauth/token")
	t.Setenv("IDBRIDGE_MGMT_CLIENT_ID", "mgmt-client")
	t.Setenv("IDBRIDGE_MGMT_CLIENT_SECRET", "mgmt-secret")
	t.Setenv("IDBRIDGE_WEBHOOK_TOKEN", "hook-token")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 24*time.Hour, cfg.Server.SessionTTL)
	assert.Equal(t, 10*time.Second, cfg.Provider.RequestTimeout)
	assert.Equal(t, "en", cfg.Provider.DefaultLocale)
	assert.Contains(t, cfg.Provider.Scopes, "openid")
	assert.Equal(t, "role-mapping.yaml", cfg.RoleMapping.Path)
	assert.True(t, cfg.Sweep.Enabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("IDBRIDGE_PORT", "8888")
	t.Setenv("IDBRIDGE_PROVIDER_TIMEOUT", "3s")
	t.Setenv("IDBRIDGE_OIDC_SCOPES", "openid, email")
	t.Setenv("IDBRIDGE_SWEEP_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Provider.RequestTimeout)
	assert.Equal(t, []string{"openid", "email"}, cfg.Provider.Scopes)
	assert.False(t, cfg.Sweep.Enabled)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T)
		wantErr string
	}{
		{
			name:    "missing postgres URL",
			mutate:  func(t *testing.T) { t.Setenv("IDBRIDGE_POSTGRES_URL", "") },
			wantErr: "postgres URL is required",
		},
		{
			name:    "missing issuer",
			mutate:  func(t *testing.T) { t.Setenv("IDBRIDGE_OIDC_ISSUER_URL", "") },
			wantErr: "issuer URL is required",
		},
		{
			name:    "missing openid scope",
			mutate:  func(t *testing.T) { t.Setenv("IDBRIDGE_OIDC_SCOPES", "profile,email") },
			wantErr: "'openid' scope is required",
		},
		{
			name:    "missing webhook token",
			mutate:  func(t *testing.T) { t.Setenv("IDBRIDGE_WEBHOOK_TOKEN", "") },
			wantErr: "webhook token is required",
		},
		{
			name: "health port collision",
			mutate: func(t *testing.T) {
				t.Setenv("IDBRIDGE_PORT", "9090")
			},
			wantErr: "must be different",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			tt.mutate(t)

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
