package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the daemon's config.toml.
type Config struct {
	// ListenAddr is the HTTP listen address for the API and websocket feed.
	ListenAddr string `toml:"listen_addr"`
	// DataDir holds the database, the lock file and the log file.
	DataDir string `toml:"data_dir"`
	// AccountAddress is the authoritative identity of the account holder,
	// used to derive message directionality. Optional; when empty,
	// directionality falls back to comparing against the payload contact.
	AccountAddress string `toml:"account_address"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:8080",
		DataDir:    defaultDataDir(),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatd"
	}
	return filepath.Join(home, ".chatd")
}

// DBPath returns the SQLite database path inside the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "chatd.db")
}

// LogPath returns the daemon log file path inside the data dir.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "chatd.log")
}

// Load reads config from the given path, filling unset fields with
// defaults. Returns an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	def := Default()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
