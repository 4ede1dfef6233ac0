package config

import (
	"fmt"
	"strings"
)

// Validate validates the configuration and returns an error if invalid
func Validate(config *Config) error {
	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config validation failed: %w", err)
	}

	if err := validateGeneralConfig(&config.General); err != nil {
		return fmt.Errorf("general config validation failed: %w", err)
	}

	if err := validateTransferConfig(&config.Transfer); err != nil {
		return fmt.Errorf("transfer config validation failed: %w", err)
	}

	return nil
}

// validateLogConfig validates log configuration
func validateLogConfig(config *LogConfig) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	level := strings.ToLower(config.Level)
	if !validLevels[level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error, fatal, panic)", config.Level)
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}

	format := strings.ToLower(config.Format)
	if !validFormats[format] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", config.Format)
	}

	return nil
}

// validateGeneralConfig validates general configuration
func validateGeneralConfig(config *GeneralConfig) error {
	if config.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got: %d", config.ConnectTimeout)
	}

	if strings.TrimSpace(config.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}

	return nil
}

// validateTransferConfig validates chunk and multipart sizing
func validateTransferConfig(config *TransferConfig) error {
	if config.ChunkSize < 1024 {
		return fmt.Errorf("chunk_size must be at least 1024 bytes, got: %d", config.ChunkSize)
	}

	// S3 rejects multipart parts smaller than 5 MiB
	if config.S3PartSizeMB < 5 {
		return fmt.Errorf("s3_part_size_mb must be at least 5, got: %d", config.S3PartSizeMB)
	}

	if config.S3Concurrency < 1 {
		return fmt.Errorf("s3_concurrency must be at least 1, got: %d", config.S3Concurrency)
	}

	return nil
}
