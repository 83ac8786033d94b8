package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/auxodev/dashclient/internal/crypto"
	"github.com/zalando/go-keyring"
)

const keyringUser = "default"

// KeyringCredentialStore persists the ambient credential in the OS keyring,
// encrypted at rest so a readable keyring backend does not leak the raw
// refresh cookie.
type KeyringCredentialStore struct {
	service   string
	encryptor crypto.Encryptor
}

func NewKeyringCredentialStore(service string, encryptor crypto.Encryptor) *KeyringCredentialStore {
	return &KeyringCredentialStore{service: service, encryptor: encryptor}
}

func (s *KeyringCredentialStore) Save(cred Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	sealed, err := s.encryptor.Encrypt(string(data))
	if err != nil {
		return fmt.Errorf("encrypting credential: %w", err)
	}

	if err := keyring.Set(s.service, keyringUser, sealed); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	return nil
}

func (s *KeyringCredentialStore) Load() (Credential, error) {
	sealed, err := keyring.Get(s.service, keyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Credential{}, ErrCredentialNotFound
		}
		return Credential{}, fmt.Errorf("reading keyring: %w", err)
	}

	data, err := s.encryptor.Decrypt(sealed)
	if err != nil {
		return Credential{}, fmt.Errorf("decrypting credential: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return Credential{}, fmt.Errorf("unmarshaling credential: %w", err)
	}
	return cred, nil
}

func (s *KeyringCredentialStore) Clear() error {
	err := keyring.Delete(s.service, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keyring entry: %w", err)
	}
	return nil
}
