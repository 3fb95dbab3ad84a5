// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// BugRecord represents one row of the Bugzilla bugs table joined with its
// product and component names.
type BugRecord struct {
	// ID is the Bugzilla bug number (e.g., 4242)
	ID int

	// Severity is the raw bug_severity value (e.g., "major", "---")
	Severity string

	// Status is the raw bug_status value (e.g., "NEW", "IN_PROGRESS")
	Status string

	// CreatedAt is the creation timestamp of the bug
	CreatedAt time.Time

	// ShortDesc is the one-line summary of the bug
	ShortDesc string

	// OpSys is the operating system the bug was reported on
	OpSys string

	// Priority is the raw priority value (e.g., "High", "Normal", "---")
	Priority string

	// Product is the name of the product the bug belongs to
	Product string

	// Platform is the hardware platform the bug was reported on
	Platform string

	// Version is the product version the bug affects
	Version string

	// Component is the name of the component the bug belongs to
	Component string

	// BugType is the cf_bugtype classifier (e.g., "Ticket", "Problem", "Feature")
	BugType string

	// AffectedUsers is the free-form cf_listusers list
	AffectedUsers string

	// TicketRef is the Zendesk ticket id the bug was raised from
	TicketRef string
}

// AndroidVersionRecord links a bug to one Android version it affects.
type AndroidVersionRecord struct {
	BugID   int
	Version string
}

// AttachmentRecord is a file attached to a bug.
type AttachmentRecord struct {
	BugID       int
	Filename    string
	Description string
	Data        []byte
}

// CommentRecord is one entry of a bug's comment history.
type CommentRecord struct {
	BugID     int
	Author    string
	CreatedAt time.Time
	Text      string
}

// DuplicateUserRecord carries the affected users of a bug that was marked as
// a duplicate of OriginalID.
type DuplicateUserRecord struct {
	OriginalID    int
	DuplicateID   int
	AffectedUsers string
}

// DuplicateAttachmentRecord is an attachment of a duplicate bug, to be folded
// into the issue of OriginalID.
type DuplicateAttachmentRecord struct {
	OriginalID  int
	DuplicateID int
	Filename    string
	Description string
	Data        []byte
}

// DuplicateCommentRecord is a comment of a duplicate bug, to be folded into
// the issue of OriginalID.
type DuplicateCommentRecord struct {
	OriginalID  int
	DuplicateID int
	Author      string
	CreatedAt   time.Time
	Text        string
}

// Snapshot holds every record loaded from Bugzilla. It is read once, in
// full, before any issue is created.
type Snapshot struct {
	Bugs                 []BugRecord
	AndroidVersions      []AndroidVersionRecord
	Attachments          []AttachmentRecord
	Comments             []CommentRecord
	DuplicateUsers       []DuplicateUserRecord
	DuplicateAttachments []DuplicateAttachmentRecord
	DuplicateComments    []DuplicateCommentRecord
}

// IssueType is the JIRA issue type a bug is migrated to.
type IssueType string

const (
	// IssueTypeBug is used for bugs classified as tickets or problems.
	IssueTypeBug IssueType = "Bug"
	// IssueTypeStory is used for every other bug.
	IssueTypeStory IssueType = "Story"
)

// IssuePayload is the tracker-neutral content of an issue to create.
type IssuePayload struct {
	// Summary is the issue title (e.g., "[BZ42] Crash on boot")
	Summary string

	// Description is the description template, placeholders included
	Description string

	// Priority is the normalized priority name (e.g., "Medium")
	Priority string

	// Type is the issue type to create
	Type IssueType

	// Labels are attached to the issue for traceability
	Labels []string

	// Defect carries the extra fields of a Bug issue. It is nil for stories.
	Defect *DefectFields
}

// DefectFields are the normalized Bugzilla fields only carried by Bug issues.
type DefectFields struct {
	Severity  string
	Status    string
	Version   string
	OpSys     string
	Platform  string
	Product   string
	Component string
}

// IssueRef identifies an issue created in the tracker.
type IssueRef struct {
	// ID is the numeric tracker id (e.g., "10042")
	ID string

	// Key is the full issue key (e.g., "TEST-42")
	Key string

	// Self is the API URL of the issue
	Self string
}
