package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/danielolaszy/bz2jira/internal/jira"
	"github.com/danielolaszy/bz2jira/internal/mapper"
	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many JIRA issues came from Bugzilla",
	Long: `This command displays how many issues of the JIRA project were created by a
migration, recognized by the 'From_Bugzilla' label.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd, requirements{jira: true})
		if err != nil {
			return err
		}

		jiraClient, err := jira.NewClient(cmd.Context(), cfg.Jira)
		if err != nil {
			return err
		}

		return printStatus(cmd.Context(), cmd.OutOrStdout(), jiraClient, cfg.Jira.Project)
	},
}

// migrationCounter counts the issues of the configured project.
type migrationCounter interface {
	CountMigrated(ctx context.Context) (total int, migrated int, err error)
}

func printStatus(ctx context.Context, w io.Writer, counter migrationCounter, project string) error {
	total, migrated, err := counter.CountMigrated(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch JIRA statistics: %w", err)
	}

	fmt.Fprintf(w, "JIRA project '%s':\n", project)
	fmt.Fprintf(w, "- Total issues: %d\n", total)
	fmt.Fprintf(w, "- Issues labeled '%s': %d\n", mapper.MigrationLabel, migrated)
	fmt.Fprintf(w, "- Other issues: %d\n", total-migrated)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Migration status:", statusMessage(total, migrated))
	return nil
}

func statusMessage(total, migrated int) string {
	if migrated == 0 {
		return "No migrated issues found"
	}
	if migrated == total {
		return "Every issue of the project comes from Bugzilla"
	}

	percentage := float64(migrated) / float64(total) * 100
	return fmt.Sprintf("%.1f%% of the project comes from Bugzilla (%d/%d issues)", percentage, migrated, total)
}
