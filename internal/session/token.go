// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/morganforge/relay-tui/internal/util"
)

// File names under the relay data directory.
const (
	credentialFile = "session.bin"
	machineKeyFile = ".machine-key"
)

// scrypt parameters for deriving the sealing key from the machine secret.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// =============================================================================
// ENCRYPTED CREDENTIAL PERSISTENCE
// =============================================================================

// saveCredentials seals the credentials with a key derived from the
// machine secret and writes them atomically.
func (m *Manager) saveCredentials(creds *Credentials) error {
	key, err := m.sealingKey()
	if err != nil {
		return err
	}

	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plain, nil)
	return util.AtomicWriteFile(filepath.Join(m.dataDir, credentialFile), sealed, 0600)
}

// loadCredentials opens and unseals the persisted session.
func (m *Manager) loadCredentials() (*Credentials, error) {
	sealed, err := os.ReadFile(filepath.Join(m.dataDir, credentialFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, ErrNoSession
	}

	key, err := m.sealingKey()
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// A credential file sealed under another machine key is as good
		// as absent.
		return nil, ErrNoSession
	}

	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return &creds, nil
}

// clearCredentialFile removes the persisted session.
func (m *Manager) clearCredentialFile() {
	os.Remove(filepath.Join(m.dataDir, credentialFile))
}

// sealingKey derives the 32-byte sealing key from the per-machine secret,
// creating the secret on first use.
func (m *Manager) sealingKey() ([]byte, error) {
	secret, err := m.machineSecret()
	if err != nil {
		return nil, err
	}
	return scrypt.Key(secret, []byte("relay-session-v1"), scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
}

// machineSecret loads or creates the random per-machine secret.
func (m *Manager) machineSecret() ([]byte, error) {
	path := filepath.Join(m.dataDir, machineKeyFile)

	secret, err := os.ReadFile(path)
	if err == nil && len(secret) == 32 {
		return secret, nil
	}

	secret = make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate machine secret: %w", err)
	}
	if err := util.AtomicWriteFile(path, secret, 0600); err != nil {
		return nil, err
	}
	return secret, nil
}
