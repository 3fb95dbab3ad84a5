// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Default values, matching what an administrator gets from a stock Bugzilla
// install and a fresh JIRA project.
const (
	DefaultBugzillaHost     = "localhost"
	DefaultBugzillaPort     = 3306
	DefaultBugzillaUser     = "root"
	DefaultBugzillaPassword = "root"
	DefaultBugzillaDatabase = "bugzilla"
	DefaultJiraProject      = "TEST"
	DefaultSeverityField    = "customfield_10600"
	DefaultStatusField      = "customfield_10601"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Bugzilla  BugzillaConfig
	Jira      JiraConfig
	Zendesk   ZendeskConfig
	Migration MigrationConfig
}

// BugzillaConfig holds the connection settings of the Bugzilla MySQL database.
type BugzillaConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL      string
	Username string
	Token    string

	// Project is the key of the project issues are created in
	Project string

	// SeverityField and StatusField are the ids of the select-list custom
	// fields receiving the Bugzilla severity and status
	SeverityField string
	StatusField   string

	// OpSysField, PlatformField and ProductField are optional custom field
	// ids. Empty means the value is not sent.
	OpSysField    string
	PlatformField string
	ProductField  string
}

// ZendeskConfig holds the Zendesk instance tickets are linked to.
type ZendeskConfig struct {
	URL string
}

// MigrationConfig holds the run options.
type MigrationConfig struct {
	AbortOnError     bool
	ExcludedProducts []string
	// StagingDir is where attachments are written before upload. Empty
	// means the OS temp dir.
	StagingDir string
}

// LoadConfig loads configuration from environment variables and, when
// configFile is not empty, from that file. Environment variables win.
func LoadConfig(configFile string) (*Config, error) {
	return loadConfig(afero.NewOsFs(), configFile)
}

func loadConfig(fs afero.Fs, configFile string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("bugzilla.host", DefaultBugzillaHost)
	v.SetDefault("bugzilla.port", DefaultBugzillaPort)
	v.SetDefault("bugzilla.user", DefaultBugzillaUser)
	v.SetDefault("bugzilla.password", DefaultBugzillaPassword)
	v.SetDefault("bugzilla.database", DefaultBugzillaDatabase)
	v.SetDefault("jira.project", DefaultJiraProject)
	v.SetDefault("jira.severity_field", DefaultSeverityField)
	v.SetDefault("jira.status_field", DefaultStatusField)

	// Map specific environment variables
	v.BindEnv("bugzilla.host", "BUGZILLA_HOST")
	v.BindEnv("bugzilla.port", "BUGZILLA_PORT")
	v.BindEnv("bugzilla.user", "BUGZILLA_USER")
	v.BindEnv("bugzilla.password", "BUGZILLA_PASSWORD")
	v.BindEnv("bugzilla.database", "BUGZILLA_DATABASE")
	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.username", "JIRA_USERNAME")
	v.BindEnv("jira.token", "JIRA_TOKEN")
	v.BindEnv("jira.project", "JIRA_PROJECT")
	v.BindEnv("zendesk.url", "ZENDESK_URL")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	config := &Config{
		Bugzilla: BugzillaConfig{
			Host:     v.GetString("bugzilla.host"),
			Port:     v.GetInt("bugzilla.port"),
			User:     v.GetString("bugzilla.user"),
			Password: v.GetString("bugzilla.password"),
			Database: v.GetString("bugzilla.database"),
		},
		Jira: JiraConfig{
			URL:           v.GetString("jira.url"),
			Username:      v.GetString("jira.username"),
			Token:         v.GetString("jira.token"),
			Project:       v.GetString("jira.project"),
			SeverityField: v.GetString("jira.severity_field"),
			StatusField:   v.GetString("jira.status_field"),
			OpSysField:    v.GetString("jira.os_field"),
			PlatformField: v.GetString("jira.platform_field"),
			ProductField:  v.GetString("jira.product_field"),
		},
		Zendesk: ZendeskConfig{
			URL: v.GetString("zendesk.url"),
		},
		Migration: MigrationConfig{
			AbortOnError:     v.GetBool("migration.abort_on_error"),
			ExcludedProducts: stringList(v.Get("migration.excluded_products")),
			StagingDir:       v.GetString("migration.staging_dir"),
		},
	}

	return config, nil
}

// stringList accepts a YAML list or a comma separated string (as found in
// MIGRATION_EXCLUDED_PRODUCTS).
func stringList(raw any) []string {
	var items []string
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		items = strings.Split(val, ",")
	case []string:
		items = val
	case []any:
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
	default:
		items = []string{fmt.Sprint(val)}
	}

	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ValidateBugzillaConfig validates the Bugzilla connection settings.
func ValidateBugzillaConfig(config *Config) error {
	var missingVars []string

	if config.Bugzilla.Host == "" {
		missingVars = append(missingVars, "BUGZILLA_HOST")
	}
	if config.Bugzilla.Port <= 0 {
		missingVars = append(missingVars, "BUGZILLA_PORT")
	}
	if config.Bugzilla.User == "" {
		missingVars = append(missingVars, "BUGZILLA_USER")
	}
	if config.Bugzilla.Database == "" {
		missingVars = append(missingVars, "BUGZILLA_DATABASE")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	// JIRA validation
	if config.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}
	if config.Jira.Project == "" {
		missingVars = append(missingVars, "JIRA_PROJECT")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if config.Jira.SeverityField == "" || config.Jira.StatusField == "" {
		return fmt.Errorf("severity and status custom field ids must not be empty")
	}

	return nil
}

// ValidateZendeskConfig validates the Zendesk instance URL.
func ValidateZendeskConfig(config *Config) error {
	if config.Zendesk.URL == "" {
		return fmt.Errorf("missing required environment variables: [ZENDESK_URL]")
	}
	if !strings.HasPrefix(config.Zendesk.URL, "http://") && !strings.HasPrefix(config.Zendesk.URL, "https://") {
		return fmt.Errorf("ZENDESK_URL must be an http(s) URL, got %q", config.Zendesk.URL)
	}
	return nil
}
