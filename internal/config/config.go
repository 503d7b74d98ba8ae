package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/acordero/worksync/internal/coda"
	"github.com/acordero/worksync/internal/credential"
)

// Config holds everything a sync run needs. It is loaded once at
// startup and passed explicitly; nothing reads the environment later.
type Config struct {
	// APIToken authenticates against the document service.
	APIToken string

	// BaseURL is the document service API root.
	BaseURL string

	// DatabaseURL is the source database DSN.
	DatabaseURL string

	// DBDriver overrides driver selection; empty means infer from the DSN.
	DBDriver string

	// DocName and TableName are the remote sync targets, matched by
	// exact name.
	DocName   string
	TableName string
}

// Load reads configuration from the environment. The API token falls
// back to the OS keyring (stored via `worksync auth`) when the env var
// is unset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("base_url", coda.DefaultBaseURL)

	// Same variable names the original deployment used, so existing
	// cron environments keep working unchanged.
	bindings := map[string][]string{
		"api_token":    {"CODA_API_TOKEN"},
		"database_url": {"POSTGRES_URL", "DATABASE_URL"},
		"doc_name":     {"CODA_DOC_NAME"},
		"table_name":   {"CODA_TABLE_NAME"},
		"base_url":     {"CODA_BASE_URL"},
		"db_driver":    {"WORKSYNC_DB_DRIVER"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	cfg := &Config{
		APIToken:    v.GetString("api_token"),
		BaseURL:     v.GetString("base_url"),
		DatabaseURL: v.GetString("database_url"),
		DBDriver:    v.GetString("db_driver"),
		DocName:     v.GetString("doc_name"),
		TableName:   v.GetString("table_name"),
	}

	if cfg.APIToken == "" {
		if token, err := credential.Get(credential.TokenKey); err == nil {
			cfg.APIToken = token
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.APIToken == "" {
		missing = append(missing, "CODA_API_TOKEN")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "POSTGRES_URL")
	}
	if c.DocName == "" {
		missing = append(missing, "CODA_DOC_NAME")
	}
	if c.TableName == "" {
		missing = append(missing, "CODA_TABLE_NAME")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
