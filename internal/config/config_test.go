package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
host = "0.0.0.0"
port = 8080
base_url = "https://contacts.example.com/"
addressbook = "main"
store_path = "/var/lib/kith/kith.db"
photo_dir = "/var/lib/kith/photos"
auth_username = "jane"
auth_password_hash = "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, uint16(8080), cfg.Port)
	assert.Equal(t, "https://contacts.example.com", cfg.BaseURL, "trailing slash stripped")
	assert.Equal(t, "main", cfg.Addressbook)
	assert.Equal(t, "/var/lib/kith/kith.db", cfg.StorePath)
	assert.Equal(t, "jane", cfg.AuthUsername)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
store_path = "/tmp/kith.db"
auth_username = "user"
auth_password_hash = "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, uint16(5232), cfg.Port)
	assert.Equal(t, "personal", cfg.Addressbook)
	assert.Equal(t, "http://127.0.0.1:5232", cfg.BaseURL)
}

func TestLoadMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `host = "localhost"`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	require.Error(t, err)
}

func TestLoadInvalidTOML(t *testing.T) {
	path := writeConfig(t, `host = [broken`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestTildeExpansion(t *testing.T) {
	t.Setenv("HOME", "/home/jane")
	path := writeConfig(t, `
store_path = "~/kith/kith.db"
auth_username = "user"
auth_password_hash = "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/home/jane/kith/kith.db", cfg.StorePath)
}
