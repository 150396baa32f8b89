package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	LedgerBadger = "badger"
	LedgerSQLite = "sqlite"
	LedgerHTTP   = "http"
	LedgerMemory = "memory"

	BlobSafe   = "safe"
	BlobMemory = "memory"
	BlobS3     = "s3"
	BlobHTTP   = "http"

	MergeBuiltin = "builtin"
	MergeDiff3   = "diff3"
)

type Config struct {
	Server struct {
		Host string `json:"host" toml:"host"`
		Port int    `json:"port" toml:"port"`
	} `json:"server" toml:"server"`

	Database struct {
		Path   string `json:"path" toml:"path"`
		Driver string `json:"driver" toml:"driver"` // badger, sqlite, memory
	} `json:"database" toml:"database"`

	Auth struct {
		Tokens map[string]string `json:"tokens" toml:"tokens"` // token -> account
	} `json:"auth" toml:"auth"`

	Account string       `json:"account" toml:"account"`
	Ledger  LedgerConfig `json:"ledger" toml:"ledger"`
	Blob    BlobConfig   `json:"blob" toml:"blob"`
	Merge   MergeConfig  `json:"merge" toml:"merge"`

	Environment string `json:"environment" toml:"environment"` // dev, prod
	LogLevel    string `json:"log_level" toml:"log_level"`     // debug, info, warn, error
}

type LedgerConfig struct {
	Type      string `json:"type" toml:"type"`
	Path      string `json:"path" toml:"path"`
	URL       string `json:"url" toml:"url"`
	Token     string `json:"token" toml:"token"`
	CacheSize int    `json:"cache_size" toml:"cache_size"`
}

type BlobConfig struct {
	Type       string `json:"type" toml:"type"`
	Root       string `json:"root" toml:"root"`
	CacheSize  int    `json:"cache_size" toml:"cache_size"`
	URL        string `json:"url" toml:"url"`
	S3Bucket   string `json:"s3_bucket" toml:"s3_bucket"`
	S3Prefix   string `json:"s3_prefix" toml:"s3_prefix"`
	S3Region   string `json:"s3_region" toml:"s3_region"`
	S3Endpoint string `json:"s3_endpoint" toml:"s3_endpoint"`
}

type MergeConfig struct {
	Tool      string `json:"tool" toml:"tool"`
	Diff3Path string `json:"diff3_path" toml:"diff3_path"`
}

// Default returns a configuration that keeps ledger and blobs on local disk
// under baseDir.
func Default(baseDir string) *Config {
	var c Config
	c.Server.Host = "127.0.0.1"
	c.Server.Port = 7420
	c.Database.Path = filepath.Join(baseDir, "server")
	c.Database.Driver = LedgerBadger
	c.Ledger = LedgerConfig{
		Type:      LedgerBadger,
		Path:      filepath.Join(baseDir, "ledger"),
		CacheSize: 512,
	}
	c.Blob = BlobConfig{
		Type:      BlobSafe,
		Root:      filepath.Join(baseDir, "blobs"),
		CacheSize: 1000,
	}
	c.Merge = MergeConfig{Tool: MergeBuiltin, Diff3Path: "diff3"}
	c.Environment = "dev"
	c.LogLevel = "warn"
	return &c
}

// Load reads path as TOML when it ends in .toml and as JSON otherwise.
// A missing file yields the defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	baseDir, err := BaseDir()
	if err != nil {
		return nil, err
	}
	config := Default(baseDir)

	if err := decodeFile(path, config); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	config.applyEnv()
	if config.Account == "" {
		config.Account = defaultAccount()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func decodeFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err = toml.NewDecoder(file).Decode(config)
		return err
	}
	return json.NewDecoder(file).Decode(config)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LVCS_ACCOUNT"); v != "" {
		c.Account = v
	}
	if v := os.Getenv("LVCS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LVCS_LEDGER_URL"); v != "" {
		c.Ledger.Type = LedgerHTTP
		c.Ledger.URL = v
		if c.Blob.Type == BlobSafe {
			c.Blob.Type = BlobHTTP
			c.Blob.URL = v
		}
	}
	if v := os.Getenv("LVCS_TOKEN"); v != "" {
		c.Ledger.Token = v
	}
}

// Validate checks that every backend named in the configuration is known and
// has the settings it needs.
func (c *Config) Validate() error {
	switch c.Ledger.Type {
	case LedgerBadger, LedgerSQLite:
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path is required for %s ledgers", c.Ledger.Type)
		}
	case LedgerHTTP:
		if c.Ledger.URL == "" {
			return fmt.Errorf("ledger.url is required for http ledgers")
		}
	default:
		return fmt.Errorf("unknown ledger type %q", c.Ledger.Type)
	}

	switch c.Blob.Type {
	case BlobSafe:
		if c.Blob.Root == "" {
			return fmt.Errorf("blob.root is required for safe blob stores")
		}
	case BlobMemory:
	case BlobS3:
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("blob.s3_bucket is required for s3 blob stores")
		}
	case BlobHTTP:
		if c.Blob.URL == "" {
			c.Blob.URL = c.Ledger.URL
		}
		if c.Blob.URL == "" {
			return fmt.Errorf("blob.url is required for http blob stores")
		}
	default:
		return fmt.Errorf("unknown blob type %q", c.Blob.Type)
	}

	switch c.Database.Driver {
	case LedgerBadger, LedgerSQLite, LedgerMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Merge.Tool {
	case MergeBuiltin, MergeDiff3:
	default:
		return fmt.Errorf("unknown merge tool %q", c.Merge.Tool)
	}
	return nil
}

// Path returns the config file location, checking LVCS_CONFIG first.
func Path() (string, error) {
	if path := os.Getenv("LVCS_CONFIG"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "lvcs", "config.toml"), nil
}

// BaseDir returns the data directory, checking LVCS_HOME first.
func BaseDir() (string, error) {
	if path := os.Getenv("LVCS_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "lvcs"), nil
}

func defaultAccount() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "anonymous"
}
