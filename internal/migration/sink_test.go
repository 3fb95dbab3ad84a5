package migration

import (
	"context"
	"strings"
	"testing"

	"github.com/danielolaszy/bz2jira/pkg/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRunSink(t *testing.T) {
	sink := NewDryRunSink()
	ctx := context.Background()

	first, err := sink.CreateIssue(ctx, models.IssuePayload{Summary: "[BZ1] crash", Type: models.IssueTypeStory})
	require.NoError(t, err)
	second, err := sink.CreateIssue(ctx, models.IssuePayload{
		Summary: "[BZ2] freeze",
		Type:    models.IssueTypeBug,
		Defect:  &models.DefectFields{Severity: "major"},
	})
	require.NoError(t, err)

	assert.Equal(t, "DRY-1", first.Key)
	assert.Equal(t, "DRY-2", second.Key)

	assert.NoError(t, sink.UpdateDescription(ctx, first.Key, "text"))
	assert.NoError(t, sink.AddComment(ctx, first.Key, "comment"))
	assert.NoError(t, sink.AddAttachment(ctx, first.Key, strings.NewReader("data"), "log.txt"))
}

func TestDryRunMigration(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := New(NewDryRunSink(), WithStager(NewStager(fs, "/staging")))

	report, err := o.Run(context.Background(), &models.Snapshot{
		Bugs:        []models.BugRecord{testBug(1), testBug(2)},
		Attachments: []models.AttachmentRecord{{BugID: 2, Filename: "a.txt", Data: []byte("a")}},
		Comments:    []models.CommentRecord{testComment(1, "bob@example.com", "report")},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Issues)
	assert.Equal(t, 0, report.Failed())
	assert.NoError(t, report.Err())

	h, ok := o.Issues().Lookup(2)
	require.True(t, ok)
	assert.Equal(t, "DRY-2", h.Key())

	entries, err := afero.ReadDir(fs, "/staging")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
