package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 30, cfg.General.ConnectTimeout)
	assert.Equal(t, 32768, cfg.Transfer.ChunkSize)
	assert.Equal(t, 5, cfg.Transfer.S3PartSizeMB)
	assert.Equal(t, 3, cfg.Transfer.S3Concurrency)
	assert.True(t, cfg.UI.ShowHidden)
	assert.NotEmpty(t, cfg.General.DataDir)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"
format = "json"

[general]
connect_timeout = 10
data_dir = "/var/lib/ducktransfer"

[transfer]
chunk_size = 65536
s3_part_size_mb = 16
s3_concurrency = 4

[ftp]
disable_epsv = true

[sftp]
known_hosts_file = "/home/u/.ssh/known_hosts"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/lib/ducktransfer", cfg.General.DataDir)
	assert.True(t, cfg.FTP.DisableEPSV)

	opts := cfg.ConnectorOptions()
	assert.Equal(t, 10*time.Second, opts.Timeout)
	assert.Equal(t, 65536, opts.ChunkSize)
	assert.EqualValues(t, 16*1024*1024, opts.S3PartSize)
	assert.Equal(t, 4, opts.S3Concurrency)
	assert.Equal(t, "/home/u/.ssh/known_hosts", opts.SFTPKnownHostsFile)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DUCKTRANSFER_CONNECT_TIMEOUT", "5")
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.General.ConnectTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Log:      LogConfig{Level: "info", Format: "text"},
			General:  GeneralConfig{ConnectTimeout: 30, DataDir: "/tmp/d"},
			Transfer: TransferConfig{ChunkSize: 32768, S3PartSizeMB: 5, S3Concurrency: 3},
		}
	}
	require.NoError(t, Validate(valid()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"zero timeout", func(c *Config) { c.General.ConnectTimeout = 0 }},
		{"empty data dir", func(c *Config) { c.General.DataDir = " " }},
		{"small chunk", func(c *Config) { c.Transfer.ChunkSize = 512 }},
		{"small part", func(c *Config) { c.Transfer.S3PartSizeMB = 4 }},
		{"no concurrency", func(c *Config) { c.Transfer.S3Concurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestUserDataRoundTrip(t *testing.T) {
	dir := t.TempDir()

	ud, err := LoadUserData(dir)
	require.NoError(t, err)
	assert.Empty(t, ud.LastConnection)

	require.NoError(t, ud.SetLastConnection("mirror"))
	require.NoError(t, ud.SetLastLocalDir("/home/u/Downloads"))

	again, err := LoadUserData(dir)
	require.NoError(t, err)
	assert.Equal(t, "mirror", again.LastConnection)
	assert.Equal(t, "/home/u/Downloads", again.LastLocalDir)
	assert.False(t, again.CreatedAt.IsZero())
}

func TestUserDataCorruptFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, userDataFile), []byte("{not json"), 0o600))

	ud, err := LoadUserData(dir)
	require.NoError(t, err)
	assert.Empty(t, ud.LastConnection)
	require.NoError(t, ud.SetLastConnection("x"))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
