// Package config loads the server and client config.json files.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/zsiec/vstream/apperr"
)

// ServerConfig is the server's config.json shape.
type ServerConfig struct {
	CertificateFingerprint string `json:"certificate_fingerprint"`
	ServerPort             uint16 `json:"server_port"`
	PacingEnabled          bool   `json:"pacing_enabled"`
}

// ClientConfig is the client's config.json shape.
type ClientConfig struct {
	ServerPort uint16 `json:"server_port"`
}

const defaultServerPort = 4443

// LoadServer reads and validates a server config.json at path.
func LoadServer(path string) (ServerConfig, error) {
	var cfg ServerConfig
	cfg.PacingEnabled = true // default per spec before unmarshaling over it

	if err := readJSON(path, &cfg); err != nil {
		return ServerConfig{}, err
	}

	if len(cfg.CertificateFingerprint) != 40 {
		return ServerConfig{}, apperr.New(apperr.ConfigInvalid, "config.LoadServer",
			fmt.Errorf("certificate_fingerprint must be 40 hex characters, got %d", len(cfg.CertificateFingerprint)))
	}
	if cfg.ServerPort == 0 {
		cfg.ServerPort = defaultServerPort
	}
	return cfg, nil
}

// LoadClient reads and validates a client config.json at path.
func LoadClient(path string) (ClientConfig, error) {
	var cfg ClientConfig
	if err := readJSON(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	if cfg.ServerPort == 0 {
		cfg.ServerPort = defaultServerPort
	}
	return cfg, nil
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return apperr.New(apperr.ConfigInvalid, "config.readJSON", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return apperr.New(apperr.ConfigInvalid, "config.readJSON", err)
	}
	return nil
}
