// Package config loads and validates application configuration from
// environment variables.
//
// All variables use the IDBRIDGE_ prefix. Secrets (OIDC client secret,
// management API credentials, webhook token) are only ever read from the
// environment and never logged.
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatalf("invalid configuration: %v", err)
//	}
package config
