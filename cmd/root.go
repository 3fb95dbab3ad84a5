// Package cmd provides the command-line interface of bz2jira.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

const appName = "bz2jira"

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "bz2jira migrates open Bugzilla bugs to JIRA",
	Long: `bz2jira is a CLI tool that migrates the open bugs of a Bugzilla database into a
JIRA project. Every bug becomes one issue; its Android versions, attachments,
comments and the data of its duplicates are merged into that issue.

Settings are read from the environment (BUGZILLA_*, JIRA_*, ZENDESK_URL) and from
an optional YAML file given with --config. Missing required settings are prompted
for when running in a terminal.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().Bool("no-input", false, "Never prompt for missing settings")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
}
