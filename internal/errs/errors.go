// Package errs defines the error taxonomy shared by the source store, the
// field mapper, the orchestrator and the JIRA sink.
package errs

import "errors"

var (
	// ErrConnection means Bugzilla or JIRA could not be reached. Fatal.
	ErrConnection = errors.New("connection error")
	// ErrQuery means a source query failed or returned a malformed row. Fatal.
	ErrQuery = errors.New("query error")
	// ErrMapping means a bug record could not be turned into an issue payload.
	ErrMapping = errors.New("mapping error")
	// ErrUpload means an attachment could not be staged or uploaded.
	ErrUpload = errors.New("upload error")
	// ErrUpdate means an issue description could not be pushed.
	ErrUpdate = errors.New("update error")
	// ErrComment means a comment could not be posted.
	ErrComment = errors.New("comment error")
	// ErrMapFrozen means an issue was registered after the create pass.
	ErrMapFrozen = errors.New("migration map is frozen")
)
