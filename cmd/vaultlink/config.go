// cmd/vaultlink/config.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/OsbornePro/VaultLink/internal/protocol"
)

type ServerConfig struct {
	ListenAddr    string `json:"listen_addr" yaml:"listen_addr"`
	ReadTimeoutMs int    `json:"read_timeout_ms" yaml:"read_timeout_ms"`
	MaxSessions   int    `json:"max_sessions" yaml:"max_sessions"`

	// --------------------
	// Storage
	// --------------------
	// "sqlite" keeps pairings in a single-file database; "file" uses the
	// sealed JSON store with the sealing key in the OS keyring.
	StoreBackend string `json:"store_backend" yaml:"store_backend"`
	StorePath    string `json:"store_path" yaml:"store_path"`

	// Decrypted credential export the bridge serves from. Missing file
	// reads as a locked vault.
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`

	// Identity advertised in HandshakeResponse
	AppName    string `json:"app_name" yaml:"app_name"`
	AppVersion string `json:"app_version" yaml:"app_version"`

	// Logging
	LogLevel string `json:"log_level" yaml:"log_level"` // debug/info/warn/error
	LogJSON  bool   `json:"log_json" yaml:"log_json"`
}

var cfg ServerConfig

const (
	defaultJSON = "server_config.json"
	defaultYAML = "server_config.yaml"
	defaultYML  = "server_config.yml"
)

// loadConfig reads server_config.{yaml,yml,json} from the working directory.
// A missing file is fine: everything has a default.
func loadConfig() error {
	path := pickConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults()
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config extension %q (use .json/.yaml/.yml)", ext)
	}

	applyDefaults()
	return nil
}

func pickConfigPath() string {
	if fileExists(defaultYAML) {
		return defaultYAML
	}
	if fileExists(defaultYML) {
		return defaultYML
	}
	return defaultJSON
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func applyDefaults() {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf("127.0.0.1:%d", protocol.Port)
	}
	if cfg.ReadTimeoutMs == 0 {
		cfg.ReadTimeoutMs = 10000
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = 32
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "sqlite"
	}
	if cfg.StorePath == "" {
		switch cfg.StoreBackend {
		case "file":
			cfg.StorePath = "pairings.sealed"
		default:
			cfg.StorePath = "vaultlink.db"
		}
	}
	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = "credentials.json"
	}
	if cfg.AppName == "" {
		cfg.AppName = "VaultLink"
	}
	if cfg.AppVersion == "" {
		cfg.AppVersion = version
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func readTimeout() time.Duration {
	return time.Duration(cfg.ReadTimeoutMs) * time.Millisecond
}
