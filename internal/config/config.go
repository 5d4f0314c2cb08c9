// Package config loads the server configuration from a TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the runtime configuration consumed by the serve command.
type Config struct {
	Host        string `toml:"host"`
	Port        uint16 `toml:"port"`
	// BaseURL prefixes every href in PROPFIND/REPORT responses, e.g.
	// "https://contacts.example.com".
	BaseURL     string `toml:"base_url"`
	Addressbook string `toml:"addressbook"`
	StorePath   string `toml:"store_path"`
	// PhotoDir is where photo blobs live; the store only holds metadata.
	PhotoDir string `toml:"photo_dir"`

	AuthUsername string `toml:"auth_username"`
	// AuthPasswordHash is an Argon2id PHC string; generate one with
	// `kith hash-password`.
	AuthPasswordHash string `toml:"auth_password_hash"`
}

// Load reads and validates a config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{
		Host:        "127.0.0.1",
		Port:        5232,
		Addressbook: "personal",
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.StorePath = expandTilde(cfg.StorePath)
	cfg.PhotoDir = expandTilde(cfg.PhotoDir)

	if cfg.StorePath == "" {
		return Config{}, fmt.Errorf("config %s: store_path is required", path)
	}
	if cfg.AuthUsername == "" || cfg.AuthPasswordHash == "" {
		return Config{}, fmt.Errorf("config %s: auth_username and auth_password_hash are required", path)
	}

	return cfg, nil
}

// expandTilde resolves a leading ~/ against $HOME.
func expandTilde(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
