package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/danielolaszy/bz2jira/internal/bugzilla"
	"github.com/danielolaszy/bz2jira/internal/config"
	"github.com/danielolaszy/bz2jira/internal/jira"
	"github.com/danielolaszy/bz2jira/internal/logging"
	"github.com/danielolaszy/bz2jira/internal/migration"
	"github.com/danielolaszy/bz2jira/pkg/models"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// migrateCmd runs a full migration.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate open Bugzilla bugs to JIRA",
	Long: `Migrate the open bugs of a Bugzilla database into a JIRA project.

A bug is migrated when its status is neither RELEASED nor CLOSED, it has no
resolution and its product is not excluded. The migration runs in passes:

1. Creates one JIRA issue per bug, labeled 'From_Bugzilla'
2. Fills in the affected Android versions
3. Uploads the attachments
4. Uses the first comment as description and posts the others as comments
5. Merges the affected users, attachments and comments of duplicate bugs
6. Removes every placeholder left in the descriptions

A failed record is logged and skipped unless --abort-on-error is set.

Example:
  bz2jira migrate --exclude-product Sandbox --exclude-product "Legacy Desktop"
  bz2jira migrate --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return err
		}

		cfg, err := loadSettings(cmd, requirements{bugzilla: true, jira: !dryRun, zendesk: true})
		if err != nil {
			return err
		}
		if err := applyMigrateFlags(cmd, cfg); err != nil {
			return err
		}

		if logFile, err := logging.OpenRunLog(appName); err != nil {
			logging.Warn("log file disabled", "error", err)
		} else {
			defer logFile.Close()
			logging.SetupFromEnv(io.MultiWriter(os.Stdout, logFile))
			logging.Info("writing log file", "path", logFile.Name())
		}

		ctx := cmd.Context()
		logging.Info("starting migration",
			"dry_run", dryRun,
			"project", cfg.Jira.Project,
			"excluded_products", cfg.Migration.ExcludedProducts,
			"abort_on_error", cfg.Migration.AbortOnError)

		db, err := bugzilla.Open(ctx, cfg.Bugzilla)
		if err != nil {
			return err
		}
		defer db.Close()

		var sink migration.Sink
		if dryRun {
			sink = migration.NewDryRunSink()
		} else {
			jiraClient, err := jira.NewClient(ctx, cfg.Jira)
			if err != nil {
				return err
			}
			sink = jiraClient
		}

		extractor := bugzilla.NewExtractor(db, cfg.Migration.ExcludedProducts)
		report, err := runMigration(ctx, extractor, sink, afero.NewOsFs(), cfg)
		if err != nil {
			return err
		}

		if failed := report.Failed(); failed > 0 {
			return fmt.Errorf("migration finished with %d failed records, see the log for details", failed)
		}
		logging.Info("migration complete", "issues_created", report.Issues)
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("dry-run", false, "Log what would be sent to JIRA without contacting it")
	migrateCmd.Flags().StringArray("exclude-product", []string{}, "Bugzilla product to skip (can be specified multiple times)")
	migrateCmd.Flags().Bool("abort-on-error", false, "Stop at the first failed record")
	migrateCmd.Flags().String("staging-dir", "", "Directory attachments are written to before upload")
}

// applyMigrateFlags merges the command line options into cfg.
func applyMigrateFlags(cmd *cobra.Command, cfg *config.Config) error {
	excluded, err := cmd.Flags().GetStringArray("exclude-product")
	if err != nil {
		return err
	}
	abort, err := cmd.Flags().GetBool("abort-on-error")
	if err != nil {
		return err
	}
	stagingDir, err := cmd.Flags().GetString("staging-dir")
	if err != nil {
		return err
	}

	cfg.Migration.ExcludedProducts = append(cfg.Migration.ExcludedProducts, excluded...)
	cfg.Migration.AbortOnError = cfg.Migration.AbortOnError || abort
	if stagingDir != "" {
		cfg.Migration.StagingDir = stagingDir
	}
	return nil
}

// snapshotLoader reads every record to migrate.
type snapshotLoader interface {
	Load(ctx context.Context) (*models.Snapshot, error)
}

// runMigration loads the records and runs every pass against sink. The
// report is logged before returning.
func runMigration(ctx context.Context, loader snapshotLoader, sink migration.Sink, fs afero.Fs, cfg *config.Config) (*migration.Report, error) {
	snap, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load bugzilla records: %w", err)
	}

	orchestrator := migration.New(sink,
		migration.WithZendeskURL(cfg.Zendesk.URL),
		migration.WithStager(migration.NewStager(fs, cfg.Migration.StagingDir)),
		migration.WithAbortOnError(cfg.Migration.AbortOnError))

	report, err := orchestrator.Run(ctx, snap)
	if report != nil {
		report.Log()
	}
	if err != nil {
		return report, fmt.Errorf("migration aborted: %w", err)
	}
	return report, nil
}
