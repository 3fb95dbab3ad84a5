// Package jira writes migrated issues to a JIRA instance.
package jira

import (
	"context"
	"fmt"
	"io"
	"net/http"

	jira "github.com/andygrunwald/go-jira"
	"github.com/danielolaszy/bz2jira/internal/config"
	"github.com/danielolaszy/bz2jira/internal/errs"
	"github.com/danielolaszy/bz2jira/internal/logging"
	"github.com/danielolaszy/bz2jira/internal/mapper"
	"github.com/danielolaszy/bz2jira/pkg/models"
	"github.com/trivago/tgo/tcontainer"
)

// Client handles interactions with the JIRA API
type Client struct {
	client  *jira.Client
	project string
	fields  customFields
}

// customFields holds the ids of the custom fields defect data is written to.
// An empty id means the value is not sent.
type customFields struct {
	severity string
	status   string
	opSys    string
	platform string
	product  string
}

// NewClient creates a JIRA client for cfg and checks the credentials.
func NewClient(ctx context.Context, cfg config.JiraConfig) (*Client, error) {
	if err := config.ValidateJiraConfig(&config.Config{Jira: cfg}); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConnection, err)
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
	}

	client, err := jira.NewClient(tp.Client(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create jira client: %w", errs.ErrConnection, err)
	}

	logging.Info("connecting to jira",
		"url", cfg.URL,
		"username", cfg.Username,
		"token", logging.MaskSensitive(cfg.Token))

	user, _, err := client.User.GetSelfWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: jira at %s: %w", errs.ErrConnection, cfg.URL, err)
	}
	logging.Info("connected to jira", "user", user.DisplayName, "project", cfg.Project)

	return &Client{
		client:  client,
		project: cfg.Project,
		fields: customFields{
			severity: cfg.SeverityField,
			status:   cfg.StatusField,
			opSys:    cfg.OpSysField,
			platform: cfg.PlatformField,
			product:  cfg.ProductField,
		},
	}, nil
}

// Project returns the key of the project issues are created in.
func (c *Client) Project() string {
	return c.project
}

// issueFields converts a payload into the fields of a new issue.
func (c *Client) issueFields(payload models.IssuePayload) *jira.IssueFields {
	fields := &jira.IssueFields{
		Project: jira.Project{
			Key: c.project,
		},
		Type: jira.IssueType{
			Name: string(payload.Type),
		},
		Summary:     payload.Summary,
		Description: payload.Description,
		Labels:      payload.Labels,
	}
	if payload.Priority != "" {
		fields.Priority = &jira.Priority{Name: payload.Priority}
	}

	d := payload.Defect
	if d == nil {
		return fields
	}

	if d.Version != "" {
		fields.AffectsVersions = []*jira.AffectsVersion{{Name: d.Version}}
	}
	if d.Component != "" {
		fields.Components = []*jira.Component{{Name: d.Component}}
	}

	unknowns := tcontainer.NewMarshalMap()
	setOption(unknowns, c.fields.severity, d.Severity)
	setOption(unknowns, c.fields.status, d.Status)
	setOption(unknowns, c.fields.opSys, d.OpSys)
	setOption(unknowns, c.fields.platform, d.Platform)
	setOption(unknowns, c.fields.product, d.Product)
	if len(unknowns) > 0 {
		fields.Unknowns = unknowns
	}
	return fields
}

// setOption writes a select-list custom field value.
func setOption(m tcontainer.MarshalMap, fieldID, value string) {
	if fieldID == "" || value == "" {
		return
	}
	m[fieldID] = map[string]string{"value": value}
}

// CreateIssue creates an issue in the configured project.
func (c *Client) CreateIssue(ctx context.Context, payload models.IssuePayload) (models.IssueRef, error) {
	issue := &jira.Issue{
		Fields: c.issueFields(payload),
	}

	created, resp, err := c.client.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		return models.IssueRef{}, fmt.Errorf("failed to create jira issue: %w", jiraError(resp, err))
	}

	logging.Debug("created jira issue", "key", created.Key, "id", created.ID)
	return models.IssueRef{
		ID:   created.ID,
		Key:  created.Key,
		Self: created.Self,
	}, nil
}

// UpdateDescription replaces the description of an issue.
func (c *Client) UpdateDescription(ctx context.Context, key, description string) error {
	data := map[string]interface{}{
		"fields": map[string]interface{}{
			"description": description,
		},
	}

	resp, err := c.client.Issue.UpdateIssueWithContext(ctx, key, data)
	if err != nil {
		return fmt.Errorf("failed to update description of %s: %w", key, jiraError(resp, err))
	}
	resp.Body.Close()
	return nil
}

// AddComment posts a comment on an issue.
func (c *Client) AddComment(ctx context.Context, key, body string) error {
	_, _, err := c.client.Issue.AddCommentWithContext(ctx, key, &jira.Comment{Body: body})
	if err != nil {
		return fmt.Errorf("failed to comment on %s: %w", key, err)
	}
	return nil
}

// AddAttachment uploads r as an attachment named filename.
func (c *Client) AddAttachment(ctx context.Context, key string, r io.Reader, filename string) error {
	_, _, err := c.client.Issue.PostAttachmentWithContext(ctx, key, r, filename)
	if err != nil {
		return fmt.Errorf("failed to attach %s to %s: %w", filename, key, err)
	}
	return nil
}

// CountMigrated returns the number of issues in the project and how many of
// them carry the migration label.
func (c *Client) CountMigrated(ctx context.Context) (int, int, error) {
	total, err := c.count(ctx, fmt.Sprintf("project = %q", c.project))
	if err != nil {
		return 0, 0, err
	}

	migrated, err := c.count(ctx, fmt.Sprintf("project = %q AND labels = %q", c.project, mapper.MigrationLabel))
	if err != nil {
		return 0, 0, err
	}

	return total, migrated, nil
}

func (c *Client) count(ctx context.Context, jql string) (int, error) {
	_, resp, err := c.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
		MaxResults: 1,
		Fields:     []string{"key"},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to search jira issues (%s): %w", jql, err)
	}
	return resp.Total, nil
}

// jiraError extracts the error details JIRA sent back, when there are any.
func jiraError(resp *jira.Response, err error) error {
	if resp == nil || resp.StatusCode < http.StatusBadRequest {
		return err
	}
	return jira.NewJiraError(resp, err)
}
