package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"org-restore/internal/source"
)

// TargetOrgConfig is one target org entry in the config file. Exactly
// one entry must be active.
type TargetOrgConfig struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout_seconds"`
	Active  bool   `mapstructure:"active"`
}

// GetActiveTargetConfig returns the currently active target org. Flags
// override the config file: --target-url and --token replace the active
// entry's values when set.
func GetActiveTargetConfig() (*TargetOrgConfig, error) {
	var configs []TargetOrgConfig

	if err := viper.UnmarshalKey("targets", &configs); err != nil {
		return nil, fmt.Errorf("failed to parse targets config: %w", err)
	}

	var activeConfig *TargetOrgConfig
	count := 0
	for i := range configs {
		if configs[i].Active {
			activeConfig = &configs[i]
			count++
		}
	}

	if count > 1 {
		return nil, fmt.Errorf("multiple active targets found (only one can be active)")
	}
	if count == 0 {
		activeConfig = &TargetOrgConfig{Name: "CLI Wrapper"}
	}

	if url := viper.GetString("target.url"); url != "" {
		activeConfig.URL = url
	}
	if token := viper.GetString("target.token"); token != "" {
		activeConfig.Token = token
	}
	if activeConfig.URL == "" {
		return nil, fmt.Errorf("no target org configured (set targets in the config file or use --target-url)")
	}
	return activeConfig, nil
}

// HTTPTimeout returns the per-call timeout for this target.
func (c *TargetOrgConfig) HTTPTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// openSourceReader builds a snapshot reader from the --source value: an
// existing directory means CSV exports, anything else is treated as a
// staging database DSN and needs a driver.
func openSourceReader(path string, logger *zap.Logger) (source.Reader, func(), error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		reader, err := source.NewCSVReader(path, logger)
		if err != nil {
			return nil, nil, err
		}
		return reader, func() {}, nil
	}

	driver := viper.GetString("source.driver")
	if driver == "" {
		return nil, nil, fmt.Errorf("source %q is not a directory; set source.driver (mysql, postgres, sqlserver, oracle) to use it as a DSN", path)
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open source db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to source db: %w", err)
	}

	schemaName := viper.GetString("source.schema")
	reader := source.NewDatabaseReader(db, driver, schemaName, logger)
	return reader, func() { db.Close() }, nil
}
