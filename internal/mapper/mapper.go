// Package mapper turns Bugzilla bug records into JIRA issue payloads.
//
// Everything in this package is pure: no network, no storage, and the same
// record always yields the same payload.
package mapper

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/danielolaszy/bz2jira/internal/errs"
	"github.com/danielolaszy/bz2jira/pkg/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// AndroidVersionKey marks where the affected Android versions go.
	AndroidVersionKey = "[ANDROID_VERSION_KEY]"
	// DescriptionKey marks where the first Bugzilla comment goes.
	DescriptionKey = "[DESCRIPTION_KEY]"
	// DuplicateUsersKey marks where users of duplicate bugs are appended.
	DuplicateUsersKey = "[DUPLICATE_USERS_KEY]"

	// MigrationLabel is attached to every issue created by a migration.
	MigrationLabel = "From_Bugzilla"

	// unsetValue is the Bugzilla sentinel for an empty select field.
	unsetValue = "---"

	timestampLayout = "2006-01-02 15:04:05"
)

// defectBugTypes are the cf_bugtype values migrated as Bug issues.
var defectBugTypes = map[string]bool{
	"Ticket":  true,
	"Problem": true,
}

var componentAcronyms = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`\bVm\b`), "VM"},
	{regexp.MustCompile(`\bIdea\b`), "IDEA"},
	{regexp.MustCompile(`\bGmtool\b`), "GMTool"},
}

// MapBugToIssue builds the payload of the issue a bug is migrated to.
// zendeskBaseURL is the Zendesk instance root (e.g., "https://acme.zendesk.com")
// used to link the ticket the bug was raised from.
func MapBugToIssue(bug models.BugRecord, zendeskBaseURL string) (models.IssuePayload, error) {
	if bug.ID <= 0 {
		return models.IssuePayload{}, fmt.Errorf("%w: invalid bug id %d", errs.ErrMapping, bug.ID)
	}
	if strings.TrimSpace(bug.ShortDesc) == "" {
		return models.IssuePayload{}, fmt.Errorf("%w: bug %d has no summary", errs.ErrMapping, bug.ID)
	}

	payload := models.IssuePayload{
		Summary:     fmt.Sprintf("[BZ%d] %s", bug.ID, bug.ShortDesc),
		Description: buildDescription(bug, zendeskBaseURL),
		Priority:    NormalizePriority(bug.Priority),
		Type:        ClassifyIssueType(bug.BugType),
		Labels:      []string{MigrationLabel},
	}

	if payload.Type == models.IssueTypeBug {
		payload.Defect = &models.DefectFields{
			Severity:  NormalizeSeverity(bug.Severity),
			Status:    NormalizeStatus(bug.Status),
			Version:   bug.Version,
			OpSys:     bug.OpSys,
			Platform:  bug.Platform,
			Product:   NormalizeProduct(bug.Product),
			Component: NormalizeComponent(bug.Component),
		}
	}

	return payload, nil
}

// TicketURL returns the Zendesk agent link for a ticket. An empty ticket
// reference still yields a link.
func TicketURL(zendeskBaseURL, ticketRef string) string {
	return strings.TrimRight(zendeskBaseURL, "/") + "/agent/tickets/" + ticketRef
}

func buildDescription(bug models.BugRecord, zendeskBaseURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Created]: %s\n", bug.CreatedAt.Format(timestampLayout))
	fmt.Fprintf(&b, "[Platform]: %s\n", bug.Platform)
	fmt.Fprintf(&b, "[Android version]: %s\n", AndroidVersionKey)
	fmt.Fprintf(&b, "[Affected users]: %s%s\n", bug.AffectedUsers, DuplicateUsersKey)
	fmt.Fprintf(&b, "[Zendesk ticket]: %s\n", TicketURL(zendeskBaseURL, bug.TicketRef))
	b.WriteString("[Description]:\n")
	b.WriteString(DescriptionKey)
	return b.String()
}

// FormatComment renders a Bugzilla comment the way it is shown in JIRA.
func FormatComment(author string, createdAt time.Time, text string) string {
	return fmt.Sprintf("%s, by %s:\n%s", createdAt.Format(timestampLayout), author, text)
}

// FormatAttachmentComment renders the comment posted next to an uploaded
// attachment.
func FormatAttachmentComment(filename, description string) string {
	return "Add an attached file : [^" + filename + "]\n\n" + description
}

// ClassifyIssueType decides whether a bug becomes a Bug or a Story.
func ClassifyIssueType(bugType string) models.IssueType {
	if defectBugTypes[bugType] {
		return models.IssueTypeBug
	}
	return models.IssueTypeStory
}

// NormalizePriority maps Bugzilla priorities onto JIRA priority names.
func NormalizePriority(priority string) string {
	switch priority {
	case "Normal", unsetValue:
		return "Medium"
	default:
		return priority
	}
}

// NormalizeSeverity maps a Bugzilla severity onto the JIRA severity options.
func NormalizeSeverity(severity string) string {
	severity = strings.ReplaceAll(severity, unsetValue, "normal")
	return strings.ReplaceAll(severity, "-", " ")
}

// NormalizeStatus maps a Bugzilla status (e.g., "IN_PROGRESS") onto the JIRA
// status options (e.g., "In progress").
func NormalizeStatus(status string) string {
	status = strings.ReplaceAll(status, unsetValue, "TO_CHECK")
	status = strings.NewReplacer("-", " ", "_", " ").Replace(status)
	return capitalize(status)
}

// NormalizeProduct renames products whose JIRA name differs.
func NormalizeProduct(product string) string {
	return strings.ReplaceAll(product, "Plugins", "Genymotion Plugin")
}

// NormalizeComponent title-cases a component name and restores the
// acronyms title-casing breaks.
func NormalizeComponent(component string) string {
	component = cases.Title(language.Und).String(component)
	for _, a := range componentAcronyms {
		component = a.re.ReplaceAllString(component, a.with)
	}
	return component
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
