package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
)

// Config holds the complete application configuration
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	General  GeneralConfig  `mapstructure:"general"`
	Transfer TransferConfig `mapstructure:"transfer"`
	FTP      FTPConfig      `mapstructure:"ftp"`
	SFTP     SFTPConfig     `mapstructure:"sftp"`
	UI       UIConfig       `mapstructure:"ui"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GeneralConfig holds general application configuration
type GeneralConfig struct {
	ConnectTimeout int    `mapstructure:"connect_timeout"`
	DataDir        string `mapstructure:"data_dir"`
}

// TransferConfig tunes how bytes are moved
type TransferConfig struct {
	ChunkSize     int `mapstructure:"chunk_size"`
	S3PartSizeMB  int `mapstructure:"s3_part_size_mb"`
	S3Concurrency int `mapstructure:"s3_concurrency"`
}

// FTPConfig holds FTP/FTPS options
type FTPConfig struct {
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
	DisableEPSV        bool `mapstructure:"disable_epsv"`
}

// SFTPConfig holds SFTP options
type SFTPConfig struct {
	KnownHostsFile string `mapstructure:"known_hosts_file"`
}

// UIConfig holds user interface configuration
type UIConfig struct {
	StartDir   string `mapstructure:"start_dir"`
	ShowHidden bool   `mapstructure:"show_hidden"`
}

// Load loads configuration from multiple sources with priority:
// 1. Command line flags (highest)
// 2. Environment variables
// 3. Configuration file
// 4. Defaults (lowest)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("DUCKTRANSFER")
	v.AutomaticEnv()

	v.BindEnv("log.level", "DUCKTRANSFER_LOG_LEVEL")
	v.BindEnv("log.format", "DUCKTRANSFER_LOG_FORMAT")
	v.BindEnv("general.connect_timeout", "DUCKTRANSFER_CONNECT_TIMEOUT")
	v.BindEnv("general.data_dir", "DUCKTRANSFER_DATA_DIR")
	v.BindEnv("transfer.chunk_size", "DUCKTRANSFER_CHUNK_SIZE")
	v.BindEnv("transfer.s3_part_size_mb", "DUCKTRANSFER_S3_PART_SIZE_MB")
	v.BindEnv("transfer.s3_concurrency", "DUCKTRANSFER_S3_CONCURRENCY")
	v.BindEnv("ftp.insecure_skip_verify", "DUCKTRANSFER_FTP_INSECURE_SKIP_VERIFY")
	v.BindEnv("ftp.disable_epsv", "DUCKTRANSFER_FTP_DISABLE_EPSV")
	v.BindEnv("sftp.known_hosts_file", "DUCKTRANSFER_SFTP_KNOWN_HOSTS_FILE")
	v.BindEnv("ui.start_dir", "DUCKTRANSFER_UI_START_DIR")
	v.BindEnv("ui.show_hidden", "DUCKTRANSFER_UI_SHOW_HIDDEN")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")

		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ducktransfer")
		v.AddConfigPath("/etc/ducktransfer/")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is not an error - we can use defaults and env vars
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("general.connect_timeout", 30)
	v.SetDefault("general.data_dir", GetDefaultDataDir())

	v.SetDefault("transfer.chunk_size", connector.DefaultChunkSize)
	v.SetDefault("transfer.s3_part_size_mb", 5)
	v.SetDefault("transfer.s3_concurrency", 3)

	v.SetDefault("ftp.insecure_skip_verify", false)
	v.SetDefault("ftp.disable_epsv", false)

	v.SetDefault("sftp.known_hosts_file", "")

	v.SetDefault("ui.start_dir", "")
	v.SetDefault("ui.show_hidden", true)
}

// ConnectorOptions turns the configuration into options shared by every connector.
func (c *Config) ConnectorOptions() connector.Options {
	return connector.Options{
		Timeout:               time.Duration(c.General.ConnectTimeout) * time.Second,
		ChunkSize:             c.Transfer.ChunkSize,
		FTPInsecureSkipVerify: c.FTP.InsecureSkipVerify,
		FTPDisableEPSV:        c.FTP.DisableEPSV,
		SFTPKnownHostsFile:    c.SFTP.KnownHostsFile,
		S3PartSize:            int64(c.Transfer.S3PartSizeMB) * 1024 * 1024,
		S3Concurrency:         c.Transfer.S3Concurrency,
	}
}

// GetDefaultDataDir returns the directory holding the database and user data
func GetDefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".ducktransfer"
	}
	return filepath.Join(homeDir, ".ducktransfer")
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	return filepath.Join(GetDefaultDataDir(), "config.toml")
}
