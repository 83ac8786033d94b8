package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, "v1") {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// Parse directly into typed Config struct
	// The custom UnmarshalJSON methods will resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig validates the config structure before environment
// resolution: secret material must come in as an env reference, never as a
// literal string sitting in the file.
func validateRawConfig(rawConfig map[string]any) error {
	if session, ok := rawConfig["session"].(map[string]any); ok {
		if err := requireEnvRef(session, "encryptionKey"); err != nil {
			return err
		}
	}

	providers, ok := rawConfig["providers"].(map[string]any)
	if !ok {
		return nil
	}
	for name, value := range providers {
		provider, ok := value.(map[string]any)
		if !ok {
			continue
		}
		if err := requireEnvRef(provider, "clientSecret"); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}
	return nil
}

func requireEnvRef(section map[string]any, field string) error {
	value, exists := section[field]
	if !exists {
		return nil
	}
	if _, isString := value.(string); isString {
		return fmt.Errorf("%s must use environment variable reference for security", field)
	}
	if refMap, isMap := value.(map[string]any); isMap {
		if _, hasEnv := refMap["$env"]; !hasEnv {
			return fmt.Errorf("%s must use {\"$env\": \"VAR_NAME\"} format", field)
		}
	}
	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.API.BaseURL == "" {
		return fmt.Errorf("api.baseURL is required")
	}
	u, err := url.Parse(config.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.baseURL must be an absolute URL, got %q", config.API.BaseURL)
	}

	if config.Session.KeyringService != "" && config.Session.EncryptionKey == "" {
		return fmt.Errorf("session.encryptionKey is required when keyringService is set")
	}

	if path := config.Session.ReturnPath; path != "" && !strings.HasPrefix(path, "/") {
		return fmt.Errorf("session.returnPath must start with /, got %q", path)
	}
	if path := config.Session.LandingPath; path != "" && !strings.HasPrefix(path, "/") {
		return fmt.Errorf("session.landingPath must start with /, got %q", path)
	}

	for name, provider := range config.Providers {
		if err := validateProvider(name, provider); err != nil {
			return err
		}
	}

	return nil
}

func validateProvider(name string, provider *ProviderConfig) error {
	switch provider.Mode {
	case ProviderModeBackend:
		if provider.ClientID != "" || provider.ClientSecret != "" {
			return fmt.Errorf("provider %s in backend mode cannot carry client credentials", name)
		}
	case ProviderModeDirect:
		if provider.ClientID == "" {
			return fmt.Errorf("provider %s in direct mode must have clientId", name)
		}
		if provider.ClientSecret == "" {
			return fmt.Errorf("provider %s in direct mode must have clientSecret", name)
		}
		if provider.RedirectURI == "" {
			return fmt.Errorf("provider %s in direct mode must have redirectUri", name)
		}
	default:
		return fmt.Errorf("provider %s has invalid mode: %s", name, provider.Mode)
	}
	return nil
}
