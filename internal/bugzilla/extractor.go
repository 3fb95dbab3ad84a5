package bugzilla

import (
	"context"
	"database/sql"
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/danielolaszy/bz2jira/internal/errs"
	"github.com/danielolaszy/bz2jira/internal/logging"
	"github.com/danielolaszy/bz2jira/pkg/models"
)

// duplicateNoticePrefix starts the comment Bugzilla writes on a bug resolved
// as a duplicate.
const duplicateNoticePrefix = "Duplicate"

// Queryer is the subset of *sql.DB the extractor needs.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Extractor loads the open bugs and everything attached to them.
type Extractor struct {
	db               Queryer
	excludedProducts []string
}

// NewExtractor returns an extractor skipping bugs of excludedProducts.
func NewExtractor(db Queryer, excludedProducts []string) *Extractor {
	return &Extractor{db: db, excludedProducts: excludedProducts}
}

// openBugIDs returns a subquery selecting the ids of the bugs to migrate,
// with its arguments. Every query restricts its rows with it.
func (e *Extractor) openBugIDs() (string, []any) {
	query := `SELECT ob.bug_id FROM bugs ob
		JOIN products op ON ob.product_id = op.id
		WHERE ob.bug_status NOT IN ('RELEASED', 'CLOSED')
		AND COALESCE(ob.resolution, '') = ''`

	if len(e.excludedProducts) == 0 {
		return query, nil
	}

	args := make([]any, len(e.excludedProducts))
	for i, p := range e.excludedProducts {
		args[i] = p
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	return query + " AND op.name NOT IN (" + placeholders + ")", args
}

// Load runs every query and returns the records in migration order. Any
// failure aborts the load.
func (e *Extractor) Load(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{}
	var err error

	if snap.Bugs, err = e.Bugs(ctx); err != nil {
		return nil, err
	}
	if snap.AndroidVersions, err = e.AndroidVersions(ctx); err != nil {
		return nil, err
	}
	if snap.Attachments, err = e.Attachments(ctx); err != nil {
		return nil, err
	}
	if snap.Comments, err = e.Comments(ctx); err != nil {
		return nil, err
	}
	if snap.DuplicateUsers, err = e.DuplicateUsers(ctx); err != nil {
		return nil, err
	}
	if snap.DuplicateAttachments, err = e.DuplicateAttachments(ctx); err != nil {
		return nil, err
	}
	if snap.DuplicateComments, err = e.DuplicateComments(ctx); err != nil {
		return nil, err
	}

	logging.Info("loaded bugzilla records",
		"bugs", len(snap.Bugs),
		"android_versions", len(snap.AndroidVersions),
		"attachments", len(snap.Attachments),
		"comments", len(snap.Comments),
		"duplicate_users", len(snap.DuplicateUsers),
		"duplicate_attachments", len(snap.DuplicateAttachments),
		"duplicate_comments", len(snap.DuplicateComments))
	return snap, nil
}

// Bugs returns the open bugs with their product and component names.
func (e *Extractor) Bugs(ctx context.Context) ([]models.BugRecord, error) {
	open, args := e.openBugIDs()
	query := `SELECT b.bug_id, COALESCE(b.bug_severity, ''), COALESCE(b.bug_status, ''),
		b.creation_ts, COALESCE(b.short_desc, ''), COALESCE(b.op_sys, ''),
		COALESCE(b.priority, ''), p.name, COALESCE(b.rep_platform, ''),
		COALESCE(b.version, ''), c.name, COALESCE(b.cf_bugtype, ''),
		COALESCE(b.cf_listusers, ''), COALESCE(b.cf_zendesk_ticket_id_text, '')
		FROM bugs b
		JOIN products p ON b.product_id = p.id
		JOIN components c ON b.component_id = c.id
		WHERE b.bug_id IN (` + open + `)
		ORDER BY b.bug_id`

	return queryRows(ctx, e.db, "bugs", query, args, func(rows *sql.Rows) (models.BugRecord, error) {
		var bug models.BugRecord
		var created timestamp
		err := rows.Scan(&bug.ID, &bug.Severity, &bug.Status, &created, &bug.ShortDesc,
			&bug.OpSys, &bug.Priority, &bug.Product, &bug.Platform, &bug.Version,
			&bug.Component, &bug.BugType, &bug.AffectedUsers, &bug.TicketRef)
		bug.CreatedAt = created.Time
		return bug, err
	})
}

// AndroidVersions returns the Android versions flagged on open bugs, grouped
// by bug. The versions of one bug keep the order the table returns them in.
func (e *Extractor) AndroidVersions(ctx context.Context) ([]models.AndroidVersionRecord, error) {
	open, args := e.openBugIDs()
	query := `SELECT av.bug_id, av.value
		FROM bug_cf_android_version av
		WHERE av.bug_id IN (` + open + `)`

	versions, err := queryRows(ctx, e.db, "android versions", query, args, func(rows *sql.Rows) (models.AndroidVersionRecord, error) {
		var r models.AndroidVersionRecord
		err := rows.Scan(&r.BugID, &r.Version)
		return r, err
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(versions, func(a, b models.AndroidVersionRecord) int {
		return cmp.Compare(a.BugID, b.BugID)
	})
	return versions, nil
}

// Attachments returns the attachments of open bugs with their payload.
func (e *Extractor) Attachments(ctx context.Context) ([]models.AttachmentRecord, error) {
	open, args := e.openBugIDs()
	query := `SELECT a.bug_id, a.filename, COALESCE(a.description, ''), d.thedata
		FROM attachments a
		JOIN attach_data d ON a.attach_id = d.id
		WHERE a.bug_id IN (` + open + `)
		ORDER BY a.bug_id, a.attach_id`

	return queryRows(ctx, e.db, "attachments", query, args, func(rows *sql.Rows) (models.AttachmentRecord, error) {
		var r models.AttachmentRecord
		err := rows.Scan(&r.BugID, &r.Filename, &r.Description, &r.Data)
		return r, err
	})
}

// Comments returns the non-empty comments of open bugs, oldest first.
func (e *Extractor) Comments(ctx context.Context) ([]models.CommentRecord, error) {
	open, args := e.openBugIDs()
	query := `SELECT c.bug_id, w.login_name, c.bug_when, c.thetext
		FROM longdescs c
		JOIN profiles w ON c.who = w.userid
		WHERE c.bug_id IN (` + open + `)
		AND c.thetext <> ''
		ORDER BY c.comment_id`

	return queryRows(ctx, e.db, "comments", query, args, func(rows *sql.Rows) (models.CommentRecord, error) {
		var r models.CommentRecord
		var when timestamp
		err := rows.Scan(&r.BugID, &r.Author, &when, &r.Text)
		r.CreatedAt = when.Time
		return r, err
	})
}

// DuplicateUsers returns the affected users of bugs marked as duplicates of
// an open bug.
func (e *Extractor) DuplicateUsers(ctx context.Context) ([]models.DuplicateUserRecord, error) {
	open, args := e.openBugIDs()
	query := `SELECT d.dupe_of, d.dupe, COALESCE(b.cf_listusers, '')
		FROM duplicates d
		JOIN bugs b ON b.bug_id = d.dupe
		WHERE d.dupe_of IN (` + open + `)
		AND COALESCE(b.cf_listusers, '') <> ''
		ORDER BY d.dupe_of, d.dupe`

	return queryRows(ctx, e.db, "duplicate users", query, args, func(rows *sql.Rows) (models.DuplicateUserRecord, error) {
		var r models.DuplicateUserRecord
		err := rows.Scan(&r.OriginalID, &r.DuplicateID, &r.AffectedUsers)
		return r, err
	})
}

// DuplicateAttachments returns the attachments of bugs marked as duplicates
// of an open bug.
func (e *Extractor) DuplicateAttachments(ctx context.Context) ([]models.DuplicateAttachmentRecord, error) {
	open, args := e.openBugIDs()
	query := `SELECT d.dupe_of, d.dupe, a.filename, COALESCE(a.description, ''), ad.thedata
		FROM duplicates d
		JOIN attachments a ON a.bug_id = d.dupe
		JOIN attach_data ad ON a.attach_id = ad.id
		WHERE d.dupe_of IN (` + open + `)
		ORDER BY d.dupe_of, a.attach_id`

	return queryRows(ctx, e.db, "duplicate attachments", query, args, func(rows *sql.Rows) (models.DuplicateAttachmentRecord, error) {
		var r models.DuplicateAttachmentRecord
		err := rows.Scan(&r.OriginalID, &r.DuplicateID, &r.Filename, &r.Description, &r.Data)
		return r, err
	})
}

// DuplicateComments returns the comments of bugs marked as duplicates of an
// open bug, without the notices Bugzilla writes when marking them.
func (e *Extractor) DuplicateComments(ctx context.Context) ([]models.DuplicateCommentRecord, error) {
	open, args := e.openBugIDs()
	query := `SELECT d.dupe_of, d.dupe, w.login_name, c.bug_when, c.thetext
		FROM duplicates d
		JOIN longdescs c ON c.bug_id = d.dupe
		JOIN profiles w ON c.who = w.userid
		WHERE d.dupe_of IN (` + open + `)
		AND c.thetext <> ''
		ORDER BY c.comment_id`

	comments, err := queryRows(ctx, e.db, "duplicate comments", query, args, func(rows *sql.Rows) (models.DuplicateCommentRecord, error) {
		var r models.DuplicateCommentRecord
		var when timestamp
		err := rows.Scan(&r.OriginalID, &r.DuplicateID, &r.Author, &when, &r.Text)
		r.CreatedAt = when.Time
		return r, err
	})
	if err != nil {
		return nil, err
	}

	// Case-sensitive: "duplicated ..." is a real comment.
	return slices.DeleteFunc(comments, func(c models.DuplicateCommentRecord) bool {
		return strings.HasPrefix(c.Text, duplicateNoticePrefix)
	}), nil
}

func queryRows[T any](ctx context.Context, db Queryer, name, query string, args []any, scan func(*sql.Rows) (T, error)) ([]T, error) {
	logging.Debug("loading records", "query", name)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errs.ErrQuery, name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		record, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: failed to scan row: %w", errs.ErrQuery, name, err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errs.ErrQuery, name, err)
	}
	return out, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
}

// timestamp scans a DATETIME column whether the driver returns it parsed or
// as text.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}
