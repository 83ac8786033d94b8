package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// ProviderMode selects how an OAuth provider flow is driven
type ProviderMode string

const (
	// ProviderModeBackend delegates the provider handshake to the auth
	// backend: it issues the redirect URL, state nonce, and verifier, and
	// the callback carries a ready-to-use token.
	ProviderModeBackend ProviderMode = "backend"

	// ProviderModeDirect talks to the identity provider without the
	// backend in the middle: the client generates the state nonce and
	// PKCE verifier and exchanges the authorization code itself.
	ProviderModeDirect ProviderMode = "direct"
)

// APIConfig holds the auth backend connection settings with resolved values
type APIConfig struct {
	BaseURL string        `json:"baseURL"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// SessionConfig holds session lifecycle settings with resolved values
type SessionConfig struct {
	RefreshInterval time.Duration `json:"refreshInterval,omitempty"`
	ReturnPath      string        `json:"returnPath,omitempty"`
	LandingPath     string        `json:"landingPath,omitempty"`

	// KeyringService names the OS keyring entry the persisted credential
	// lives under; empty disables persistence.
	KeyringService string `json:"keyringService,omitempty"`
	EncryptionKey  Secret `json:"encryptionKey,omitempty"`
}

// ProviderConfig represents one OAuth provider with resolved values.
//
// Environment variable references using {"$env": "VAR_NAME"} syntax are
// resolved at config load time. This explicit JSON syntax was chosen over
// bash-like $VAR substitution:
//
//  1. Shell Safety: Config files are often manipulated in shell contexts
//     (startup scripts, CI/CD pipelines). Using $VAR could lead to accidental
//     expansion by the shell before the config is parsed.
//
//  2. Unambiguous Intent: {"$env": "X"} clearly indicates this is a reference
//     to be resolved by our application, not a literal string containing $.
//
//  3. Type Safety: The JSON structure allows us to validate references at
//     parse time rather than discovering invalid patterns at runtime.
type ProviderConfig struct {
	Mode ProviderMode `json:"mode"`

	// Direct mode only
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret Secret `json:"clientSecret,omitempty"`
	RedirectURI  string `json:"redirectUri,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	API       APIConfig                  `json:"api"`
	Session   SessionConfig              `json:"session"`
	Providers map[string]*ProviderConfig `json:"providers,omitempty"`
}

// RawConfigValue represents a value that could be a string or an env ref.
// This is only used during parsing, not in the final config
type RawConfigValue struct {
	value string
}

// ParseConfigValue parses a JSON value that could be a string or reference object
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	// Try reference object
	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return nil, fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		return nil, fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return &RawConfigValue{value: value}, nil
}
