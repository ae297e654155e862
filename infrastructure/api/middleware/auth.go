package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// APIKeyHeader is the header carrying the API key.
const APIKeyHeader = "X-API-KEY"

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	apiKeys [][]byte
}

// NewAuthConfigWithKeys creates an AuthConfig. Blank keys are ignored; with
// no keys authentication is disabled.
func NewAuthConfigWithKeys(apiKeys []string) AuthConfig {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	return AuthConfig{apiKeys: keys}
}

// Enabled returns true if authentication is enabled.
func (c AuthConfig) Enabled() bool { return len(c.apiKeys) > 0 }

func (c AuthConfig) accepts(key string) bool {
	candidate := []byte(key)
	for _, k := range c.apiKeys {
		if subtle.ConstantTimeCompare(k, candidate) == 1 {
			return true
		}
	}
	return false
}

// APIKey returns a middleware that requires a valid X-API-KEY header.
// If the config has no keys, every request passes.
func APIKey(config AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(APIKeyHeader)
			switch {
			case key == "":
				WriteError(w, r, NewAuthenticationError(APIKeyHeader+" header is required"), logger)
				return
			case !config.accepts(key):
				WriteError(w, r, NewAuthenticationError("invalid API key"), logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// APIKeyAuth creates auth middleware from a slice of API keys.
func APIKeyAuth(apiKeys []string, logger *slog.Logger) func(http.Handler) http.Handler {
	return APIKey(NewAuthConfigWithKeys(apiKeys), logger)
}
