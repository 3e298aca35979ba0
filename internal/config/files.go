package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Conventional file names inside the configuration directory. The files
// are written by the external admin layer; the gateway only reads them at
// startup (and rewrites secrets once, to persist a generated session
// secret).
const (
	DomainFile    = "domain.json"
	UsersFile     = "users.json"
	SecretsFile   = "secrets.json"
	BlocklistFile = "blocklist.json"
)

// LoadDomain reads and validates the domain configuration snapshot.
func LoadDomain(dir string) (*Domain, error) {
	var d Domain
	if err := readJSON(filepath.Join(dir, DomainFile), &d); err != nil {
		return nil, fmt.Errorf("load domain config: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid domain config: %w", err)
	}
	return &d, nil
}

// LoadUsers reads the user records snapshot. A missing file yields an
// empty user set rather than an error.
func LoadUsers(dir string) ([]User, error) {
	var users []User
	err := readJSON(filepath.Join(dir, UsersFile), &users)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return users, nil
}

// LoadSecrets reads the secrets snapshot.
func LoadSecrets(dir string) (*Secrets, error) {
	var s Secrets
	if err := readJSON(filepath.Join(dir, SecretsFile), &s); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	return &s, nil
}

// SaveSecrets persists the secrets snapshot. Used once, to store a lazily
// generated session secret; written via a temp file and rename so a crash
// cannot leave a truncated secrets file.
func SaveSecrets(dir string, s *Secrets) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, SecretsFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadBlocklist reads the blocked IP set. A missing file yields an empty
// set.
func LoadBlocklist(dir string) ([]string, error) {
	var ips []string
	err := readJSON(filepath.Join(dir, BlocklistFile), &ips)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load blocklist: %w", err)
	}
	return ips, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
