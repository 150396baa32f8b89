package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("LVCS_HOME", home)
	t.Setenv("LVCS_ACCOUNT", "")
	t.Setenv("LVCS_LOG_LEVEL", "")
	t.Setenv("LVCS_LEDGER_URL", "")
	t.Setenv("LVCS_TOKEN", "")
	return home
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	home := setupEnv(t)

	cfg, err := Load(filepath.Join(home, "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, LedgerBadger, cfg.Ledger.Type)
	assert.Equal(t, filepath.Join(home, "ledger"), cfg.Ledger.Path)
	assert.Equal(t, BlobSafe, cfg.Blob.Type)
	assert.Equal(t, MergeBuiltin, cfg.Merge.Tool)
	assert.NotEmpty(t, cfg.Account)
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		contents string
	}{
		{
			name: "json",
			file: "config.json",
			contents: `{
				"account": "alice",
				"log_level": "debug",
				"ledger": {"type": "sqlite", "path": "/tmp/ledger.db"},
				"merge": {"tool": "diff3", "diff3_path": "/usr/bin/diff3"}
			}`,
		},
		{
			name: "toml",
			file: "config.toml",
			contents: `
account = "alice"
log_level = "debug"

[ledger]
type = "sqlite"
path = "/tmp/ledger.db"

[merge]
tool = "diff3"
diff3_path = "/usr/bin/diff3"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := setupEnv(t)
			path := filepath.Join(home, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.contents), 0644))

			cfg, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, "alice", cfg.Account)
			assert.Equal(t, "debug", cfg.LogLevel)
			assert.Equal(t, LedgerSQLite, cfg.Ledger.Type)
			assert.Equal(t, "/tmp/ledger.db", cfg.Ledger.Path)
			assert.Equal(t, MergeDiff3, cfg.Merge.Tool)
			// untouched sections keep their defaults
			assert.Equal(t, BlobSafe, cfg.Blob.Type)
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	home := setupEnv(t)
	t.Setenv("LVCS_ACCOUNT", "bob")
	t.Setenv("LVCS_LEDGER_URL", "http://ledger.local:7420")
	t.Setenv("LVCS_TOKEN", "secret")

	cfg, err := Load(filepath.Join(home, "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "bob", cfg.Account)
	assert.Equal(t, LedgerHTTP, cfg.Ledger.Type)
	assert.Equal(t, "http://ledger.local:7420", cfg.Ledger.URL)
	assert.Equal(t, "secret", cfg.Ledger.Token)
	assert.Equal(t, BlobHTTP, cfg.Blob.Type)
	assert.Equal(t, "http://ledger.local:7420", cfg.Blob.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown ledger", func(c *Config) { c.Ledger.Type = "ethereum" }, true},
		{"http ledger without url", func(c *Config) { c.Ledger.Type = LedgerHTTP }, true},
		{"s3 without bucket", func(c *Config) { c.Blob.Type = BlobS3 }, true},
		{"s3 with bucket", func(c *Config) { c.Blob.Type = BlobS3; c.Blob.S3Bucket = "b" }, false},
		{"memory blobs", func(c *Config) { c.Blob.Type = BlobMemory }, false},
		{"memory server store", func(c *Config) { c.Database.Driver = LedgerMemory }, false},
		{"unknown server store", func(c *Config) { c.Database.Driver = "postgres" }, true},
		{"unknown merge tool", func(c *Config) { c.Merge.Tool = "kdiff3" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default(t.TempDir())
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	home := setupEnv(t)
	path := filepath.Join(home, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
