// Package config loads the service configuration from environment variables and
// an optional config.yaml, applying defaults and validating the result.
package config
