package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Credential store file permissions. The key is secret material, so the
// directory and file are restricted to the owner.
const (
	credDirPerm  = 0700
	credFilePerm = 0600
)

// CredentialsPath returns the on-disk location of the stored API key,
// ~/.config/pai/credentials by default.
func CredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "pai", "credentials"), nil
}

// SaveAPIKey stores the API key in the credential file, creating the
// directory with owner-only permissions.
func SaveAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("API key is empty")
	}

	path, err := CredentialsPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), credDirPerm); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(key+"\n"), credFilePerm); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	return nil
}

// LoadAPIKey reads the stored API key. Returns an empty string when no
// credential file exists. A warning is emitted to stderr when the file
// permissions are looser than owner-only.
func LoadAPIKey() (string, error) {
	path, err := CredentialsPath()
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to stat credentials: %w", err)
	}

	if info.Mode().Perm()&0077 != 0 {
		fmt.Fprintf(os.Stderr, "warning: %s has permissions %v, expected %04o\n", path, info.Mode().Perm(), credFilePerm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read credentials: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

// RemoveAPIKey deletes the stored API key. Removing a key that does not
// exist is not an error.
func RemoveAPIKey() error {
	path, err := CredentialsPath()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}

	return nil
}

// MaskKey returns a redacted rendering of an API key for display,
// keeping the first five and last four characters.
func MaskKey(key string) string {
	if len(key) <= 9 {
		return strings.Repeat("*", len(key))
	}
	return key[:5] + "..." + key[len(key)-4:]
}
