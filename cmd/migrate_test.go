package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/danielolaszy/bz2jira/internal/config"
	"github.com/danielolaszy/bz2jira/internal/errs"
	"github.com/danielolaszy/bz2jira/pkg/models"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLoader implements snapshotLoader for testing
type MockLoader struct {
	LoadFunc func(context.Context) (*models.Snapshot, error)
}

func (m *MockLoader) Load(ctx context.Context) (*models.Snapshot, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return nil, errors.New("Load not implemented")
}

// MockSink implements migration.Sink for testing. Calls without a func
// succeed.
type MockSink struct {
	CreateIssueFunc       func(models.IssuePayload) (models.IssueRef, error)
	UpdateDescriptionFunc func(key, description string) error
	AddCommentFunc        func(key, body string) error
	AddAttachmentFunc     func(key string, r io.Reader, filename string) error

	created      int
	descriptions map[string]string
}

func (m *MockSink) CreateIssue(_ context.Context, payload models.IssuePayload) (models.IssueRef, error) {
	if m.CreateIssueFunc != nil {
		return m.CreateIssueFunc(payload)
	}
	m.created++
	return models.IssueRef{Key: fmt.Sprintf("TEST-%d", m.created)}, nil
}

func (m *MockSink) UpdateDescription(_ context.Context, key, description string) error {
	if m.UpdateDescriptionFunc != nil {
		return m.UpdateDescriptionFunc(key, description)
	}
	if m.descriptions == nil {
		m.descriptions = make(map[string]string)
	}
	m.descriptions[key] = description
	return nil
}

func (m *MockSink) AddComment(_ context.Context, key, body string) error {
	if m.AddCommentFunc != nil {
		return m.AddCommentFunc(key, body)
	}
	return nil
}

func (m *MockSink) AddAttachment(_ context.Context, key string, r io.Reader, filename string) error {
	if m.AddAttachmentFunc != nil {
		return m.AddAttachmentFunc(key, r, filename)
	}
	_, err := io.Copy(io.Discard, r)
	return err
}

func testSettings() *config.Config {
	return &config.Config{
		Zendesk: config.ZendeskConfig{URL: "https://acme.zendesk.com"},
		Migration: config.MigrationConfig{
			StagingDir: "/staging",
		},
	}
}

func testSnapshot() *models.Snapshot {
	created := time.Date(2019, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.Snapshot{
		Bugs: []models.BugRecord{
			{ID: 1, ShortDesc: "Crash", BugType: "Problem", CreatedAt: created, TicketRef: "77"},
			{ID: 2, ShortDesc: "Dark mode", BugType: "Feature", CreatedAt: created},
		},
		Attachments: []models.AttachmentRecord{
			{BugID: 1, Filename: "boot.log", Data: []byte("log")},
		},
		Comments: []models.CommentRecord{
			{BugID: 1, Author: "bob@example.com", CreatedAt: created, Text: "It crashes"},
		},
	}
}

func TestRunMigration(t *testing.T) {
	loader := &MockLoader{
		LoadFunc: func(ctx context.Context) (*models.Snapshot, error) {
			return testSnapshot(), nil
		},
	}
	var attached []string
	sink := &MockSink{
		AddAttachmentFunc: func(key string, r io.Reader, filename string) error {
			attached = append(attached, key+"/"+filename)
			return nil
		},
	}
	fs := afero.NewMemMapFs()

	report, err := runMigration(context.Background(), loader, sink, fs, testSettings())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Issues)
	assert.Equal(t, 0, report.Failed())
	assert.Equal(t, []string{"TEST-1/boot.log"}, attached)
	assert.Contains(t, sink.descriptions["TEST-1"], "https://acme.zendesk.com/agent/tickets/77")
	assert.Contains(t, sink.descriptions["TEST-1"], "It crashes")
	assert.NotContains(t, sink.descriptions["TEST-2"], "_KEY]")

	entries, err := afero.ReadDir(fs, "/staging")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunMigrationLoadError(t *testing.T) {
	loader := &MockLoader{
		LoadFunc: func(ctx context.Context) (*models.Snapshot, error) {
			return nil, fmt.Errorf("%w: bugs: no such table", errs.ErrQuery)
		},
	}
	sink := &MockSink{
		CreateIssueFunc: func(models.IssuePayload) (models.IssueRef, error) {
			t.Fatal("no issue must be created when loading fails")
			return models.IssueRef{}, nil
		},
	}

	report, err := runMigration(context.Background(), loader, sink, afero.NewMemMapFs(), testSettings())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, errs.ErrQuery))
}

func TestRunMigrationFailuresAreReported(t *testing.T) {
	loader := &MockLoader{
		LoadFunc: func(ctx context.Context) (*models.Snapshot, error) {
			return testSnapshot(), nil
		},
	}
	sink := &MockSink{
		AddAttachmentFunc: func(key string, r io.Reader, filename string) error {
			return errors.New("413 request entity too large")
		},
	}

	report, err := runMigration(context.Background(), loader, sink, afero.NewMemMapFs(), testSettings())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed())
	assert.True(t, errors.Is(report.Err(), errs.ErrUpload))
}

func TestRunMigrationAbortOnError(t *testing.T) {
	loader := &MockLoader{
		LoadFunc: func(ctx context.Context) (*models.Snapshot, error) {
			return testSnapshot(), nil
		},
	}
	sink := &MockSink{
		AddAttachmentFunc: func(key string, r io.Reader, filename string) error {
			return errors.New("413 request entity too large")
		},
	}
	cfg := testSettings()
	cfg.Migration.AbortOnError = true

	report, err := runMigration(context.Background(), loader, sink, afero.NewMemMapFs(), cfg)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "migration aborted"))
	assert.True(t, errors.Is(err, errs.ErrUpload))
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Issues)
}

func newMigrateFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "migrate"}
	cmd.Flags().StringArray("exclude-product", []string{}, "")
	cmd.Flags().Bool("abort-on-error", false, "")
	cmd.Flags().String("staging-dir", "", "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestApplyMigrateFlags(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		base         config.MigrationConfig
		wantExcluded []string
		wantAbort    bool
		wantStaging  string
	}{
		{
			name:         "no flags keeps config",
			base:         config.MigrationConfig{ExcludedProducts: []string{"Sandbox"}, StagingDir: "/var/tmp"},
			wantExcluded: []string{"Sandbox"},
			wantStaging:  "/var/tmp",
		},
		{
			name:         "flags add to config",
			args:         []string{"--exclude-product", "Legacy Desktop", "--exclude-product", "QA", "--abort-on-error", "--staging-dir", "/scratch"},
			base:         config.MigrationConfig{ExcludedProducts: []string{"Sandbox"}},
			wantExcluded: []string{"Sandbox", "Legacy Desktop", "QA"},
			wantAbort:    true,
			wantStaging:  "/scratch",
		},
		{
			name:      "abort from config survives",
			base:      config.MigrationConfig{AbortOnError: true},
			wantAbort: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Migration: tt.base}
			require.NoError(t, applyMigrateFlags(newMigrateFlags(t, tt.args...), cfg))

			assert.Equal(t, tt.wantExcluded, cfg.Migration.ExcludedProducts)
			assert.Equal(t, tt.wantAbort, cfg.Migration.AbortOnError)
			assert.Equal(t, tt.wantStaging, cfg.Migration.StagingDir)
		})
	}
}
