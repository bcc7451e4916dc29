package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validLocalConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":3000",
			ShutdownTimeoutSec: 10,
			ReadTimeoutSec:     15,
			WriteTimeoutSec:    30,
		},
		Storage: StorageConfig{
			Type:      "local",
			LocalPath: "./images",
		},
		Processing: ProcessingConfig{
			OutputQuality:   90,
			PersistAttempts: 3,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid local config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing addr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: "server.addr",
		},
		{
			name:    "unknown storage type",
			mutate:  func(c *Config) { c.Storage.Type = "ftp" },
			wantErr: "storage.type",
		},
		{
			name:    "local storage without path",
			mutate:  func(c *Config) { c.Storage.LocalPath = "" },
			wantErr: "storage.local_path",
		},
		{
			name: "s3 storage without endpoint",
			mutate: func(c *Config) {
				c.Storage.Type = "s3"
				c.Storage.S3Bucket = "imgcache"
				c.Storage.S3AccessKey = "k"
				c.Storage.S3SecretKey = "s"
			},
			wantErr: "storage.s3_endpoint",
		},
		{
			name: "s3 storage without credentials",
			mutate: func(c *Config) {
				c.Storage.Type = "s3"
				c.Storage.S3Endpoint = "localhost:9000"
				c.Storage.S3Bucket = "imgcache"
			},
			wantErr: "s3_access_key",
		},
		{
			name:    "output quality out of range",
			mutate:  func(c *Config) { c.Processing.OutputQuality = 101 },
			wantErr: "output_quality",
		},
		{
			name: "decode cache without ttl",
			mutate: func(c *Config) {
				c.Processing.DecodeCache = true
				c.Processing.DecodeCacheTTLSec = 0
			},
			wantErr: "decode_cache_ttl_sec",
		},
		{
			name:    "negative persist attempts",
			mutate:  func(c *Config) { c.Processing.PersistAttempts = -1 },
			wantErr: "persist_attempts",
		},
		{
			name:    "missing log level",
			mutate:  func(c *Config) { c.Logging.Level = "" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validLocalConfig()
			tt.mutate(cfg)

			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
