// Package migration drives the Bugzilla to JIRA migration: it creates one
// issue per bug, then merges versions, attachments, comments and duplicate
// data into those issues in a fixed sequence of passes.
package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielolaszy/bz2jira/internal/errs"
	"github.com/danielolaszy/bz2jira/internal/logging"
	"github.com/danielolaszy/bz2jira/internal/mapper"
	"github.com/danielolaszy/bz2jira/pkg/models"
	"github.com/spf13/afero"
)

// Pass names, in execution order.
const (
	PassCreate               = "create"
	PassAndroidVersions      = "android-versions"
	PassAttachments          = "attachments"
	PassComments             = "comments"
	PassDuplicateUsers       = "duplicate-users"
	PassDuplicateAttachments = "duplicate-attachments"
	PassDuplicateComments    = "duplicate-comments"
	PassCleanup              = "cleanup"
)

// duplicateNoticePrefix marks the comments Bugzilla writes when a bug is
// resolved as a duplicate; they are never migrated.
const duplicateNoticePrefix = "Duplicate"

// Pass is one ordered sweep over one category of records.
type Pass struct {
	Name string
	Run  func(ctx context.Context, snap *models.Snapshot, res *PassResult) error
}

// Orchestrator runs the migration passes against a Sink.
type Orchestrator struct {
	sink         Sink
	stager       *Stager
	zendeskURL   string
	abortOnError bool
	issues       *MigrationMap
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithZendeskURL sets the Zendesk instance linked from descriptions.
func WithZendeskURL(url string) Option {
	return func(o *Orchestrator) {
		o.zendeskURL = url
	}
}

// WithStager sets where attachments are staged before upload.
func WithStager(s *Stager) Option {
	return func(o *Orchestrator) {
		o.stager = s
	}
}

// WithAbortOnError stops the run at the first failed record instead of
// logging it and moving on.
func WithAbortOnError(abort bool) Option {
	return func(o *Orchestrator) {
		o.abortOnError = abort
	}
}

// New returns an orchestrator writing to sink. Attachments are staged in the
// OS temp dir unless WithStager is given.
func New(sink Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sink:   sink,
		issues: NewMigrationMap(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.stager == nil {
		o.stager = NewStager(afero.NewOsFs(), "")
	}
	return o
}

// Issues returns the bug id to issue map built by the create pass.
func (o *Orchestrator) Issues() *MigrationMap {
	return o.issues
}

// Passes returns the passes in the order they must run. Every pass after
// create reads the MigrationMap, so create always comes first.
func (o *Orchestrator) Passes() []Pass {
	return []Pass{
		{Name: PassCreate, Run: o.createIssues},
		{Name: PassAndroidVersions, Run: o.mergeAndroidVersions},
		{Name: PassAttachments, Run: o.mergeAttachments},
		{Name: PassComments, Run: o.mergeComments},
		{Name: PassDuplicateUsers, Run: o.mergeDuplicateUsers},
		{Name: PassDuplicateAttachments, Run: o.mergeDuplicateAttachments},
		{Name: PassDuplicateComments, Run: o.mergeDuplicateComments},
		{Name: PassCleanup, Run: o.cleanup},
	}
}

// Run executes every pass over snap. With the default policy per-record
// failures are logged and counted in the report, and Run only returns an
// error when ctx is done. With WithAbortOnError the first failure is returned.
// The report is returned in both cases.
func (o *Orchestrator) Run(ctx context.Context, snap *models.Snapshot) (*Report, error) {
	if o.issues.Frozen() {
		return nil, fmt.Errorf("orchestrator already ran")
	}

	report := &Report{}
	for _, pass := range o.Passes() {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		log := logging.With("pass", pass.Name)
		log.Info("starting pass")
		res := &PassResult{Name: pass.Name}
		report.Passes = append(report.Passes, res)

		err := pass.Run(ctx, snap, res)
		report.Issues = o.issues.Len()
		log.Info("finished pass",
			"processed", res.Processed,
			"skipped", res.Skipped,
			"failed", res.Failed)
		if err != nil {
			return report, fmt.Errorf("pass %s: %w", pass.Name, err)
		}
	}
	return report, nil
}

// fail records a per-record error. It returns err when the run must stop.
func (o *Orchestrator) fail(res *PassResult, err error, args ...any) error {
	res.addError(err)
	logging.Error("record failed", append([]any{"pass", res.Name, "error", err}, args...)...)
	if o.abortOnError {
		return err
	}
	return nil
}

func (o *Orchestrator) createIssues(ctx context.Context, snap *models.Snapshot, res *PassResult) error {
	defer o.issues.Freeze()

	for _, bug := range snap.Bugs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, exists := o.issues.Lookup(bug.ID); exists {
			logging.Warn("bug appears twice in snapshot, keeping first issue", "bug_id", bug.ID)
			res.Skipped++
			continue
		}

		logging.Debug("loading bug", "bug_id", bug.ID, "summary", bug.ShortDesc)
		payload, err := mapper.MapBugToIssue(bug, o.zendeskURL)
		if err != nil {
			if err := o.fail(res, err, "bug_id", bug.ID); err != nil {
				return err
			}
			continue
		}

		ref, err := o.sink.CreateIssue(ctx, payload)
		if err != nil {
			err = fmt.Errorf("failed to create issue for bug %d: %w", bug.ID, err)
			if err := o.fail(res, err, "bug_id", bug.ID); err != nil {
				return err
			}
			continue
		}

		if err := o.issues.Put(newIssueHandle(bug, ref, payload.Description)); err != nil {
			return err
		}
		res.Processed++
		logging.Info("created issue", "bug_id", bug.ID, "key", ref.Key)
	}
	return nil
}

func (o *Orchestrator) mergeAndroidVersions(ctx context.Context, snap *models.Snapshot, res *PassResult) error {
	versions := make(map[int][]string)
	for _, row := range snap.AndroidVersions {
		versions[row.BugID] = append(versions[row.BugID], row.Version)
	}

	for _, h := range o.issues.Handles() {
		if err := ctx.Err(); err != nil {
			return err
		}
		bugVersions, ok := versions[h.BugID]
		if !ok {
			res.Skipped++
			continue
		}

		h.set(slotAndroidVersions, strings.Join(bugVersions, ", "))
		if err := o.pushDescription(ctx, h, res); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) mergeAttachments(ctx context.Context, snap *models.Snapshot, res *PassResult) error {
	for _, a := range snap.Attachments {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, ok := o.issues.Lookup(a.BugID)
		if !ok {
			res.Skipped++
			continue
		}
		if err := o.attach(ctx, h, a.Filename, a.Description, a.Data, res); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) mergeComments(ctx context.Context, snap *models.Snapshot, res *PassResult) error {
	for _, c := range snap.Comments {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, ok := o.issues.Lookup(c.BugID)
		if !ok || c.Text == "" {
			res.Skipped++
			continue
		}

		body := mapper.FormatComment(c.Author, c.CreatedAt, c.Text)
		// The first comment of a bug is its description in Bugzilla.
		if h.fillOnce(slotDescription, body) {
			if err := o.pushDescription(ctx, h, res); err != nil {
				return err
			}
			continue
		}
		if err := o.comment(ctx, h, body, res); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) mergeDuplicateUsers(ctx context.Context, snap *models.Snapshot, res *PassResult) error {
	for _, d := range snap.DuplicateUsers {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, ok := o.issues.Lookup(d.OriginalID)
		if !ok || strings.TrimSpace(d.AffectedUsers) == "" {
			res.Skipped++
			continue
		}

		h.add(slotDuplicateUsers, d.AffectedUsers)
		if err := o.pushDescription(ctx, h, res); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) mergeDuplicateAttachments(ctx context.Context, snap *models.Snapshot, res *PassResult) error {
	for _, a := range snap.DuplicateAttachments {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, ok := o.issues.Lookup(a.OriginalID)
		if !ok {
			res.Skipped++
			continue
		}
		if err := o.attach(ctx, h, a.Filename, a.Description, a.Data, res); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) mergeDuplicateComments(ctx context.Context, snap *models.Snapshot, res *PassResult) error {
	for _, c := range snap.DuplicateComments {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, ok := o.issues.Lookup(c.OriginalID)
		if !ok || c.Text == "" || strings.HasPrefix(c.Text, duplicateNoticePrefix) {
			res.Skipped++
			continue
		}

		body := mapper.FormatComment(c.Author, c.CreatedAt, c.Text)
		if err := o.comment(ctx, h, body, res); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) cleanup(ctx context.Context, _ *models.Snapshot, res *PassResult) error {
	for _, h := range o.issues.Handles() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.sink.UpdateDescription(ctx, h.Key(), h.Render(true)); err != nil {
			err = fmt.Errorf("%w: final description of %s: %w", errs.ErrUpdate, h.Key(), err)
			if err := o.fail(res, err, "bug_id", h.BugID, "key", h.Key()); err != nil {
				return err
			}
			continue
		}
		res.Processed++
	}
	return nil
}

// pushDescription sends the current rendering of h, keeping unfilled
// markers for later passes.
func (o *Orchestrator) pushDescription(ctx context.Context, h *IssueHandle, res *PassResult) error {
	if err := o.sink.UpdateDescription(ctx, h.Key(), h.Render(false)); err != nil {
		err = fmt.Errorf("%w: description of %s: %w", errs.ErrUpdate, h.Key(), err)
		return o.fail(res, err, "bug_id", h.BugID, "key", h.Key())
	}
	res.Processed++
	logging.Info("updated issue description", "pass", res.Name, "key", h.Key())
	return nil
}

func (o *Orchestrator) comment(ctx context.Context, h *IssueHandle, body string, res *PassResult) error {
	if err := o.sink.AddComment(ctx, h.Key(), body); err != nil {
		err = fmt.Errorf("%w: comment on %s: %w", errs.ErrComment, h.Key(), err)
		return o.fail(res, err, "bug_id", h.BugID, "key", h.Key())
	}
	res.Processed++
	logging.Info("added comment", "pass", res.Name, "key", h.Key())
	return nil
}

// attach uploads one attachment and posts a comment pointing at it. The
// staged file is removed before returning, whatever happened.
func (o *Orchestrator) attach(ctx context.Context, h *IssueHandle, filename, description string, data []byte, res *PassResult) error {
	if err := o.upload(ctx, h, filename, data); err != nil {
		return o.fail(res, err, "bug_id", h.BugID, "key", h.Key(), "filename", filename)
	}

	body := mapper.FormatAttachmentComment(filename, description)
	if err := o.sink.AddComment(ctx, h.Key(), body); err != nil {
		err = fmt.Errorf("%w: attachment comment on %s: %w", errs.ErrComment, h.Key(), err)
		return o.fail(res, err, "bug_id", h.BugID, "key", h.Key(), "filename", filename)
	}
	res.Processed++
	logging.Info("added attachment", "pass", res.Name, "key", h.Key(), "filename", filename)
	return nil
}

func (o *Orchestrator) upload(ctx context.Context, h *IssueHandle, filename string, data []byte) error {
	path, err := o.stager.Stage(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errs.ErrUpload, filename, err)
	}
	defer o.stager.Remove(path)

	f, err := o.stager.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errs.ErrUpload, filename, err)
	}
	defer f.Close()

	if err := o.sink.AddAttachment(ctx, h.Key(), f, filename); err != nil {
		return fmt.Errorf("%w: %s on %s: %w", errs.ErrUpload, filename, h.Key(), err)
	}
	return nil
}
