package migration

import (
	"fmt"

	"github.com/danielolaszy/bz2jira/internal/errs"
)

// MigrationMap maps Bugzilla bug ids to the issues created for them. It is
// filled by the create pass and frozen afterwards; every later pass only
// reads it.
type MigrationMap struct {
	order   []int
	handles map[int]*IssueHandle
	frozen  bool
}

// NewMigrationMap returns an empty, writable map.
func NewMigrationMap() *MigrationMap {
	return &MigrationMap{handles: make(map[int]*IssueHandle)}
}

// Put registers the issue created for h.BugID.
func (m *MigrationMap) Put(h *IssueHandle) error {
	if m.frozen {
		return fmt.Errorf("%w: cannot register bug %d", errs.ErrMapFrozen, h.BugID)
	}
	if _, exists := m.handles[h.BugID]; exists {
		return fmt.Errorf("bug %d is already mapped to %s", h.BugID, m.handles[h.BugID].Key())
	}
	m.order = append(m.order, h.BugID)
	m.handles[h.BugID] = h
	return nil
}

// Lookup returns the issue created for bugID, if any.
func (m *MigrationMap) Lookup(bugID int) (*IssueHandle, bool) {
	h, ok := m.handles[bugID]
	return h, ok
}

// Freeze makes the map read-only.
func (m *MigrationMap) Freeze() {
	m.frozen = true
}

// Frozen reports whether Freeze was called.
func (m *MigrationMap) Frozen() bool {
	return m.frozen
}

// Len returns the number of mapped bugs.
func (m *MigrationMap) Len() int {
	return len(m.order)
}

// Handles returns the mapped issues in creation order.
func (m *MigrationMap) Handles() []*IssueHandle {
	out := make([]*IssueHandle, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.handles[id])
	}
	return out
}
