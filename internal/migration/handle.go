package migration

import (
	"strings"

	"github.com/danielolaszy/bz2jira/internal/mapper"
	"github.com/danielolaszy/bz2jira/pkg/models"
)

// slot is a deferred part of an issue description.
type slot int

const (
	slotAndroidVersions slot = iota
	slotDescription
	slotDuplicateUsers
)

var slotMarkers = map[slot]string{
	slotAndroidVersions: mapper.AndroidVersionKey,
	slotDescription:     mapper.DescriptionKey,
	slotDuplicateUsers:  mapper.DuplicateUsersKey,
}

// IssueHandle is an issue created in the tracker together with the state of
// its description slots. The description pushed on every update is rendered
// from this state; it is never read back from the tracker.
type IssueHandle struct {
	// BugID is the Bugzilla bug the issue was created from
	BugID int

	// Ref identifies the issue in the tracker
	Ref models.IssueRef

	template string
	// hasUsers reports whether the bug had affected users of its own, in
	// which case duplicate users are appended after a separator.
	hasUsers bool
	values   map[slot][]string
}

func newIssueHandle(bug models.BugRecord, ref models.IssueRef, template string) *IssueHandle {
	return &IssueHandle{
		BugID:    bug.ID,
		Ref:      ref,
		template: template,
		hasUsers: strings.TrimSpace(bug.AffectedUsers) != "",
		values:   make(map[slot][]string),
	}
}

// Key returns the tracker issue key.
func (h *IssueHandle) Key() string {
	return h.Ref.Key
}

// filled reports whether s holds a value.
func (h *IssueHandle) filled(s slot) bool {
	return len(h.values[s]) > 0
}

// set replaces the value of s.
func (h *IssueHandle) set(s slot, value string) {
	h.values[s] = []string{value}
}

// fillOnce sets s only if it is still unfilled and reports whether it did.
func (h *IssueHandle) fillOnce(s slot, value string) bool {
	if h.filled(s) {
		return false
	}
	h.set(s, value)
	return true
}

// add appends value to s.
func (h *IssueHandle) add(s slot, value string) {
	h.values[s] = append(h.values[s], value)
}

// Render returns the description text. Unfilled markers are kept so a later
// pass can still fill them, unless strip is set.
func (h *IssueHandle) Render(strip bool) string {
	pairs := make([]string, 0, 2*len(slotMarkers))
	for s, marker := range slotMarkers {
		switch {
		case h.filled(s):
			pairs = append(pairs, marker, h.renderSlot(s))
		case strip:
			pairs = append(pairs, marker, "")
		}
	}
	if len(pairs) == 0 {
		return h.template
	}
	return strings.NewReplacer(pairs...).Replace(h.template)
}

// markerStripper removes reserved markers from slot values, so that text
// copied from Bugzilla can never reintroduce one.
var markerStripper = strings.NewReplacer(
	mapper.AndroidVersionKey, "",
	mapper.DescriptionKey, "",
	mapper.DuplicateUsersKey, "",
)

func (h *IssueHandle) renderSlot(s slot) string {
	joined := markerStripper.Replace(strings.Join(h.values[s], ", "))
	if s == slotDuplicateUsers && h.hasUsers {
		return ", " + joined
	}
	return joined
}
