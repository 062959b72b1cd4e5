package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := LoadFromViper(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)
	normalizeTables(cfg)

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) {
	// Substitute in source config
	cfg.Source.Host = expandEnvVar(cfg.Source.Host)
	cfg.Source.User = expandEnvVar(cfg.Source.User)
	cfg.Source.Password = expandEnvVar(cfg.Source.Password)
	cfg.Source.Database = expandEnvVar(cfg.Source.Database)

	// Substitute in target config
	cfg.Target.Host = expandEnvVar(cfg.Target.Host)
	cfg.Target.User = expandEnvVar(cfg.Target.User)
	cfg.Target.Password = expandEnvVar(cfg.Target.Password)
	cfg.Target.Database = expandEnvVar(cfg.Target.Database)

	// Substitute in logging config
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// normalizeTables copies each map key into the TableConfig.Name field so a
// TableConfig is self-describing once handed to the replicator.
func normalizeTables(cfg *Config) {
	for name, tbl := range cfg.Tables {
		tbl.Name = name
		cfg.Tables[name] = tbl
	}
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// GetTable retrieves a specific table configuration by name.
func (c *Config) GetTable(name string) (*TableConfig, error) {
	tbl, exists := c.Tables[name]
	if !exists {
		return nil, fmt.Errorf("table %q not found in configuration", name)
	}
	return &tbl, nil
}

// ListTables returns all configured table names, sorted for stable output.
func (c *Config) ListTables() []string {
	tables := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	return tables
}

// TablesByPriority returns configured table names sorted by processing
// priority (most urgent first), with name as tiebreak for determinism.
func (c *Config) TablesByPriority() []string {
	tables := c.ListTables()
	sort.SliceStable(tables, func(i, j int) bool {
		ti := c.Tables[tables[i]]
		tj := c.Tables[tables[j]]
		return ti.PriorityRank() < tj.PriorityRank()
	})
	return tables
}

// ApplyOverrides applies CLI flag overrides to the global configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, batchSize int, skipVerify bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if batchSize > 0 {
		for name, tbl := range c.Tables {
			tbl.BatchSize = batchSize
			c.Tables[name] = tbl
		}
	}
	if skipVerify {
		c.Verification.SkipVerification = true
	}
}
