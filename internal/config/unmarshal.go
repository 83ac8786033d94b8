package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnmarshalJSON implements custom unmarshaling for APIConfig
func (a *APIConfig) UnmarshalJSON(data []byte) error {
	// Use a raw type to parse references
	type rawAPI struct {
		BaseURL json.RawMessage `json:"baseURL"`
		Timeout string          `json:"timeout,omitempty"`
	}

	var raw rawAPI
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.BaseURL != nil {
		parsed, err := ParseConfigValue(raw.BaseURL)
		if err != nil {
			return fmt.Errorf("parsing baseURL: %w", err)
		}
		a.BaseURL = parsed.value
	}

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		a.Timeout = timeout
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for SessionConfig
func (s *SessionConfig) UnmarshalJSON(data []byte) error {
	type rawSession struct {
		RefreshInterval string          `json:"refreshInterval,omitempty"`
		ReturnPath      string          `json:"returnPath,omitempty"`
		LandingPath     string          `json:"landingPath,omitempty"`
		KeyringService  string          `json:"keyringService,omitempty"`
		EncryptionKey   json.RawMessage `json:"encryptionKey,omitempty"`
	}

	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.ReturnPath = raw.ReturnPath
	s.LandingPath = raw.LandingPath
	s.KeyringService = raw.KeyringService

	if raw.RefreshInterval != "" {
		interval, err := time.ParseDuration(raw.RefreshInterval)
		if err != nil {
			return fmt.Errorf("parsing refreshInterval: %w", err)
		}
		if interval <= 0 {
			return fmt.Errorf("refreshInterval must be positive, got %s", interval)
		}
		s.RefreshInterval = interval
	}

	if raw.EncryptionKey != nil {
		parsed, err := ParseConfigValue(raw.EncryptionKey)
		if err != nil {
			return fmt.Errorf("parsing encryptionKey: %w", err)
		}
		s.EncryptionKey = Secret(parsed.value)
	}

	if s.EncryptionKey != "" && len(s.EncryptionKey) != 32 {
		return fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(s.EncryptionKey))
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for ProviderConfig
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type rawProvider struct {
		Mode         ProviderMode    `json:"mode"`
		ClientID     json.RawMessage `json:"clientId,omitempty"`
		ClientSecret json.RawMessage `json:"clientSecret,omitempty"`
		RedirectURI  json.RawMessage `json:"redirectUri,omitempty"`
	}

	var raw rawProvider
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Mode = raw.Mode
	if p.Mode == "" {
		p.Mode = ProviderModeBackend
	}

	if raw.ClientID != nil {
		parsed, err := ParseConfigValue(raw.ClientID)
		if err != nil {
			return fmt.Errorf("parsing clientId: %w", err)
		}
		p.ClientID = parsed.value
	}

	if raw.ClientSecret != nil {
		parsed, err := ParseConfigValue(raw.ClientSecret)
		if err != nil {
			return fmt.Errorf("parsing clientSecret: %w", err)
		}
		p.ClientSecret = Secret(parsed.value)
	}

	if raw.RedirectURI != nil {
		parsed, err := ParseConfigValue(raw.RedirectURI)
		if err != nil {
			return fmt.Errorf("parsing redirectUri: %w", err)
		}
		p.RedirectURI = parsed.value
	}

	return nil
}
