package migration

import (
	"context"
	"fmt"
	"io"

	"github.com/danielolaszy/bz2jira/internal/logging"
	"github.com/danielolaszy/bz2jira/pkg/models"
)

// Sink is the issue tracker the orchestrator writes to. Issues are addressed
// by key; the project is fixed by the implementation.
type Sink interface {
	// CreateIssue creates one issue and returns its reference.
	CreateIssue(ctx context.Context, payload models.IssuePayload) (models.IssueRef, error)
	// UpdateDescription replaces the description of an issue.
	UpdateDescription(ctx context.Context, key, description string) error
	// AddComment posts a comment on an issue.
	AddComment(ctx context.Context, key, body string) error
	// AddAttachment uploads r as filename on an issue.
	AddAttachment(ctx context.Context, key string, r io.Reader, filename string) error
}

// DryRunSink logs every call instead of talking to a tracker. Issues get
// sequential keys (DRY-1, DRY-2, ...).
type DryRunSink struct {
	created int
}

// NewDryRunSink returns a sink for --dry-run.
func NewDryRunSink() *DryRunSink {
	return &DryRunSink{}
}

// CreateIssue logs the payload and returns a synthetic reference.
func (s *DryRunSink) CreateIssue(_ context.Context, payload models.IssuePayload) (models.IssueRef, error) {
	s.created++
	ref := models.IssueRef{
		ID:  fmt.Sprintf("%d", s.created),
		Key: fmt.Sprintf("DRY-%d", s.created),
	}
	args := []any{
		"key", ref.Key,
		"summary", payload.Summary,
		"type", payload.Type,
		"priority", payload.Priority,
	}
	if payload.Defect != nil {
		args = append(args,
			"severity", payload.Defect.Severity,
			"status", payload.Defect.Status,
			"component", payload.Defect.Component)
	}
	logging.Info("dry run: create issue", args...)
	return ref, nil
}

// UpdateDescription logs the description size.
func (s *DryRunSink) UpdateDescription(_ context.Context, key, description string) error {
	logging.Debug("dry run: update description", "key", key, "length", len(description))
	return nil
}

// AddComment logs the comment size.
func (s *DryRunSink) AddComment(_ context.Context, key, body string) error {
	logging.Debug("dry run: add comment", "key", key, "length", len(body))
	return nil
}

// AddAttachment drains r and logs its size.
func (s *DryRunSink) AddAttachment(_ context.Context, key string, r io.Reader, filename string) error {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return err
	}
	logging.Debug("dry run: add attachment", "key", key, "filename", filename, "bytes", n)
	return nil
}
