package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetConfigFile(t *testing.T) {
	originalCfgFile := cfgFile
	defer func() {
		cfgFile = originalCfgFile
	}()

	tests := []struct {
		name     string
		cfgValue string
		want     string
	}{
		{
			name:     "default config file",
			cfgValue: "dentsync.yaml",
			want:     "dentsync.yaml",
		},
		{
			name:     "custom config file",
			cfgValue: "/etc/dentsync/prod.yaml",
			want:     "/etc/dentsync/prod.yaml",
		},
		{
			name:     "config file with spaces",
			cfgValue: "/path/to/my config.yaml",
			want:     "/path/to/my config.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgFile = tt.cfgValue
			assert.Equal(t, tt.want, GetConfigFile())
		})
	}
}

func TestGetCLIOverrides(t *testing.T) {
	originalLogLevel := logLevel
	originalLogFormat := logFormat
	originalBatchSize := batchSize
	originalSkipVerify := skipVerify
	defer func() {
		logLevel = originalLogLevel
		logFormat = originalLogFormat
		batchSize = originalBatchSize
		skipVerify = originalSkipVerify
	}()

	tests := []struct {
		name       string
		logLevel   string
		logFormat  string
		batchSize  int
		skipVerify bool
		want       CLIOverrides
	}{
		{
			name: "empty overrides",
			want: CLIOverrides{},
		},
		{
			name:       "all overrides set",
			logLevel:   "debug",
			logFormat:  "text",
			batchSize:  500,
			skipVerify: true,
			want: CLIOverrides{
				LogLevel:   "debug",
				LogFormat:  "text",
				BatchSize:  500,
				SkipVerify: true,
			},
		},
		{
			name:      "partial overrides",
			logLevel:  "warn",
			batchSize: 2000,
			want: CLIOverrides{
				LogLevel:  "warn",
				BatchSize: 2000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logLevel = tt.logLevel
			logFormat = tt.logFormat
			batchSize = tt.batchSize
			skipVerify = tt.skipVerify

			assert.Equal(t, tt.want, GetCLIOverrides())
		})
	}
}

func TestRootCommandStructure(t *testing.T) {
	assert.Equal(t, "dentsync", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Equal(t, Version, rootCmd.Version)
}
