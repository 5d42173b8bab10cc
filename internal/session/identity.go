package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrNoIdentity = errors.New("no user identity established")

// IdentitySource supplies the identity established by the login flow. The
// controller never validates or refreshes it.
type IdentitySource interface {
	Identity() (string, error)
}

type StaticIdentity string

func (s StaticIdentity) Identity() (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoIdentity
	}
	return string(s), nil
}

// FileIdentity reads the username stored by `assistant login`.
type FileIdentity struct {
	Path string
}

func (f FileIdentity) Identity() (string, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoIdentity
		}
		return "", fmt.Errorf("failed to read identity file: %w", err)
	}
	id := strings.TrimSpace(string(b))
	if id == "" {
		return "", ErrNoIdentity
	}
	return id, nil
}

func (f FileIdentity) Save(username string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create identity dir: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(strings.TrimSpace(username)+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	return nil
}

func (f FileIdentity) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove identity file: %w", err)
	}
	return nil
}
