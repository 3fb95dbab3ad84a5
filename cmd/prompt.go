package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/danielolaszy/bz2jira/internal/config"
	"github.com/danielolaszy/bz2jira/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// setting is a required value that can be asked for interactively.
type setting struct {
	env         string
	title       string
	placeholder string
	secret      bool
	value       *string
}

// requirements selects which groups of settings a command needs.
type requirements struct {
	bugzilla bool
	jira     bool
	zendesk  bool
}

// missingSettings lists the required settings still empty in cfg.
func missingSettings(cfg *config.Config, req requirements) []setting {
	var missing []setting
	add := func(s setting) {
		if strings.TrimSpace(*s.value) == "" {
			missing = append(missing, s)
		}
	}

	if req.jira {
		add(setting{env: "JIRA_URL", title: "JIRA URL", placeholder: "https://jira.example.com", value: &cfg.Jira.URL})
		add(setting{env: "JIRA_USERNAME", title: "JIRA username", value: &cfg.Jira.Username})
		add(setting{env: "JIRA_TOKEN", title: "JIRA password or API token", secret: true, value: &cfg.Jira.Token})
		add(setting{env: "JIRA_PROJECT", title: "JIRA project key", placeholder: config.DefaultJiraProject, value: &cfg.Jira.Project})
	}
	if req.zendesk {
		add(setting{env: "ZENDESK_URL", title: "Zendesk instance", placeholder: "https://acme.zendesk.com", value: &cfg.Zendesk.URL})
	}
	return missing
}

// canPrompt reports whether the user can be asked for settings.
func canPrompt(cmd *cobra.Command) bool {
	noInput, err := cmd.Flags().GetBool("no-input")
	if err != nil || noInput {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptMissing asks for the missing settings in a single form.
func promptMissing(missing []setting) error {
	if len(missing) == 0 {
		return nil
	}

	fields := make([]huh.Field, 0, len(missing))
	for _, s := range missing {
		input := huh.NewInput().
			Title(s.title).
			Description(s.env).
			Placeholder(s.placeholder).
			Value(s.value).
			Validate(func(v string) error {
				if strings.TrimSpace(v) == "" {
					return fmt.Errorf("%s is required", s.title)
				}
				return nil
			})
		if s.secret {
			input = input.EchoMode(huh.EchoModePassword)
		}
		fields = append(fields, input)
	}

	err := huh.NewForm(huh.NewGroup(fields...)).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return fmt.Errorf("cancelled")
	}
	if err != nil {
		return fmt.Errorf("form error: %w", err)
	}

	for _, s := range missing {
		*s.value = strings.TrimSpace(*s.value)
		if s.secret {
			logging.Debug("setting entered", "name", s.env, "value", logging.MaskSensitive(*s.value))
		} else {
			logging.Debug("setting entered", "name", s.env, "value", *s.value)
		}
	}
	return nil
}

// loadSettings loads the configuration, asks for what is missing when
// possible, and validates the groups req asks for.
func loadSettings(cmd *cobra.Command, req requirements) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}

	if missing := missingSettings(cfg, req); len(missing) > 0 && canPrompt(cmd) {
		if err := promptMissing(missing); err != nil {
			return nil, err
		}
	}

	if err := validateSettings(cfg, req); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateSettings(cfg *config.Config, req requirements) error {
	if req.bugzilla {
		if err := config.ValidateBugzillaConfig(cfg); err != nil {
			return err
		}
	}
	if req.jira {
		if err := config.ValidateJiraConfig(cfg); err != nil {
			return err
		}
	}
	if req.zendesk {
		if err := config.ValidateZendeskConfig(cfg); err != nil {
			return err
		}
	}
	return nil
}
