package bugzilla

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danielolaszy/bz2jira/internal/config"
	"github.com/danielolaszy/bz2jira/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE products (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE components (id INTEGER PRIMARY KEY, name TEXT NOT NULL, product_id INTEGER);
CREATE TABLE profiles (userid INTEGER PRIMARY KEY, login_name TEXT NOT NULL);
CREATE TABLE bugs (
	bug_id INTEGER PRIMARY KEY,
	bug_severity TEXT,
	bug_status TEXT,
	resolution TEXT,
	creation_ts DATETIME,
	short_desc TEXT,
	op_sys TEXT,
	priority TEXT,
	product_id INTEGER,
	rep_platform TEXT,
	version TEXT,
	component_id INTEGER,
	cf_bugtype TEXT,
	cf_listusers TEXT,
	cf_zendesk_ticket_id_text TEXT
);
CREATE TABLE bug_cf_android_version (bug_id INTEGER, value TEXT);
CREATE TABLE attachments (attach_id INTEGER PRIMARY KEY, bug_id INTEGER, filename TEXT, description TEXT);
CREATE TABLE attach_data (id INTEGER PRIMARY KEY, thedata BLOB);
CREATE TABLE longdescs (comment_id INTEGER PRIMARY KEY, bug_id INTEGER, who INTEGER, bug_when DATETIME, thetext TEXT);
CREATE TABLE duplicates (dupe_of INTEGER, dupe INTEGER PRIMARY KEY);
`

// Bug 1 and 2 are open. Bug 3 is released, bug 4 is resolved, bug 5 belongs
// to the Sandbox product, bug 6 and 7 are duplicates of bug 1 and bug 8 is a
// duplicate of the released bug 3.
const testData = `
INSERT INTO products VALUES (1, 'Desktop'), (2, 'Sandbox');
INSERT INTO components VALUES (1, 'player', 1), (2, 'misc', 2);
INSERT INTO profiles VALUES (1, 'bob@example.com'), (2, 'eve@example.com');

INSERT INTO bugs VALUES
	(1, 'major', 'NEW', '', '2019-05-01 12:00:00', 'Crash on start', 'Android', 'High', 1, 'Phone', '2.1', 1, 'Problem', 'alice@example.com', '77'),
	(2, 'minor', 'IN_PROGRESS', '', '2019-05-02 09:30:00', 'Typo', NULL, 'Normal', 1, NULL, '2.1', 1, 'Feature', NULL, NULL),
	(3, 'major', 'RELEASED', '', '2019-05-03 00:00:00', 'Old crash', 'Android', 'High', 1, 'Phone', '2.0', 1, 'Problem', '', ''),
	(4, 'major', 'RESOLVED', 'FIXED', '2019-05-03 00:00:00', 'Fixed crash', 'Android', 'High', 1, 'Phone', '2.0', 1, 'Problem', '', ''),
	(5, 'major', 'NEW', '', '2019-05-04 00:00:00', 'Sandbox bug', 'Android', 'High', 2, 'Phone', '2.0', 2, 'Problem', '', ''),
	(6, 'major', 'RESOLVED', 'DUPLICATE', '2019-05-05 00:00:00', 'Crash again', 'Android', 'High', 1, 'Phone', '2.1', 1, 'Problem', 'eve@example.com', ''),
	(7, 'major', 'RESOLVED', 'DUPLICATE', '2019-05-06 00:00:00', 'Crash as well', 'Android', 'High', 1, 'Phone', '2.1', 1, 'Problem', '', ''),
	(8, 'major', 'RESOLVED', 'DUPLICATE', '2019-05-07 00:00:00', 'Old crash again', 'Android', 'High', 1, 'Phone', '2.0', 1, 'Problem', 'zed@example.com', '');

INSERT INTO bug_cf_android_version VALUES (1, '8.1'), (2, '9.0'), (1, '7.0'), (3, '6.0'), (5, '9.0'), (1, '10.0');

INSERT INTO attachments VALUES (1, 1, 'boot.log', 'logcat'),(2, 5, 'sandbox.txt', NULL), (3, 6, 'dup.png', 'screenshot');
INSERT INTO attach_data VALUES (1, X'0102'), (2, X'03'), (3, X'89504E47');

INSERT INTO longdescs VALUES
	(1, 1, 1, '2019-05-01 12:00:00', 'It crashes'),
	(2, 2, 2, '2019-05-02 09:30:00', 'There is a typo'),
	(3, 1, 2, '2019-05-02 10:00:00', ''),
	(4, 1, 2, '2019-05-02 11:00:00', 'Me too'),
	(5, 5, 1, '2019-05-04 00:00:00', 'Sandbox only'),
	(6, 6, 2, '2019-05-05 00:00:00', 'Crashes here too'),
	(7, 6, 1, '2019-05-05 01:00:00', 'Duplicate of bug 1'),
	(8, 8, 2, '2019-05-07 00:00:00', 'Old one'),
	(9, 6, 1, '2019-05-05 02:00:00', 'duplicated the crash on a Pixel 3'),
	(10, 7, 2, '2019-05-06 00:00:00', 'DUPLICATE steps: open the app twice');

INSERT INTO duplicates VALUES (1, 6), (1, 7), (3, 8);
`

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	_, err = db.ExecContext(ctx, testSchema)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, testData)
	require.NoError(t, err)
	return db
}

func TestLoad(t *testing.T) {
	e := NewExtractor(newTestDB(t), []string{"Sandbox"})

	snap, err := e.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Bugs, 2)
	bug := snap.Bugs[0]
	assert.Equal(t, 1, bug.ID)
	assert.Equal(t, "major", bug.Severity)
	assert.Equal(t, "NEW", bug.Status)
	assert.True(t, bug.CreatedAt.Equal(time.Date(2019, 5, 1, 12, 0, 0, 0, time.UTC)), "got %v", bug.CreatedAt)
	assert.Equal(t, "Crash on start", bug.ShortDesc)
	assert.Equal(t, "Desktop", bug.Product)
	assert.Equal(t, "player", bug.Component)
	assert.Equal(t, "Problem", bug.BugType)
	assert.Equal(t, "alice@example.com", bug.AffectedUsers)
	assert.Equal(t, "77", bug.TicketRef)

	// NULL columns come back empty.
	assert.Equal(t, 2, snap.Bugs[1].ID)
	assert.Empty(t, snap.Bugs[1].OpSys)
	assert.Empty(t, snap.Bugs[1].AffectedUsers)

	var versions []string
	for _, v := range snap.AndroidVersions {
		versions = append(versions, fmt.Sprintf("%d:%s", v.BugID, v.Version))
	}
	assert.Equal(t, []string{"1:8.1", "1:7.0", "1:10.0", "2:9.0"}, versions)

	require.Len(t, snap.Attachments, 1)
	assert.Equal(t, "boot.log", snap.Attachments[0].Filename)
	assert.Equal(t, "logcat", snap.Attachments[0].Description)
	assert.Equal(t, []byte{0x01, 0x02}, snap.Attachments[0].Data)

	require.Len(t, snap.Comments, 3)
	assert.Equal(t, "It crashes", snap.Comments[0].Text)
	assert.Equal(t, "bob@example.com", snap.Comments[0].Author)
	assert.Equal(t, "There is a typo", snap.Comments[1].Text)
	assert.Equal(t, "Me too", snap.Comments[2].Text)

	require.Len(t, snap.DuplicateUsers, 1)
	assert.Equal(t, 1, snap.DuplicateUsers[0].OriginalID)
	assert.Equal(t, 6, snap.DuplicateUsers[0].DuplicateID)
	assert.Equal(t, "eve@example.com", snap.DuplicateUsers[0].AffectedUsers)

	require.Len(t, snap.DuplicateAttachments, 1)
	assert.Equal(t, 1, snap.DuplicateAttachments[0].OriginalID)
	assert.Equal(t, "dup.png", snap.DuplicateAttachments[0].Filename)
	assert.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, snap.DuplicateAttachments[0].Data)

	require.Len(t, snap.DuplicateComments, 3)
	assert.Equal(t, 1, snap.DuplicateComments[0].OriginalID)
	assert.Equal(t, 6, snap.DuplicateComments[0].DuplicateID)
	assert.Equal(t, "Crashes here too", snap.DuplicateComments[0].Text)
	assert.Equal(t, "eve@example.com", snap.DuplicateComments[0].Author)
}

func TestDuplicateCommentsKeepOtherCasing(t *testing.T) {
	e := NewExtractor(newTestDB(t), nil)

	comments, err := e.DuplicateComments(context.Background())
	require.NoError(t, err)

	var texts []string
	for _, c := range comments {
		texts = append(texts, c.Text)
	}
	assert.Equal(t, []string{
		"Crashes here too",
		"duplicated the crash on a Pixel 3",
		"DUPLICATE steps: open the app twice",
	}, texts)
	assert.NotContains(t, texts, "Duplicate of bug 1")
}

func TestLoadWithoutExcludedProducts(t *testing.T) {
	e := NewExtractor(newTestDB(t), nil)

	snap, err := e.Load(context.Background())
	require.NoError(t, err)

	var ids []int
	for _, b := range snap.Bugs {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []int{1, 2, 5}, ids)
	assert.Len(t, snap.AndroidVersions, 5)
	assert.Len(t, snap.Attachments, 2)

	// NULL attachment description
	assert.Equal(t, "sandbox.txt", snap.Attachments[1].Filename)
	assert.Empty(t, snap.Attachments[1].Description)
}

func TestOpenBugIDs(t *testing.T) {
	tests := []struct {
		name     string
		excluded []string
		wantArgs []any
		contains string
	}{
		{name: "no exclusion", excluded: nil, wantArgs: nil},
		{name: "one product", excluded: []string{"Sandbox"}, wantArgs: []any{"Sandbox"}, contains: "NOT IN (?)"},
		{name: "two products", excluded: []string{"A", "B"}, wantArgs: []any{"A", "B"}, contains: "NOT IN (?, ?)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := NewExtractor(nil, tt.excluded).openBugIDs()
			assert.Equal(t, tt.wantArgs, args)
			if tt.contains != "" {
				assert.Contains(t, query, tt.contains)
			} else {
				assert.NotContains(t, query, "op.name")
			}
		})
	}
}

func TestLoadQueryError(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewExtractor(db, nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrQuery))
}

func TestTimestampScan(t *testing.T) {
	want := time.Date(2019, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		src     any
		want    time.Time
		wantErr bool
	}{
		{name: "time", src: want, want: want},
		{name: "bytes", src: []byte("2019-05-01 12:00:00"), want: want},
		{name: "string", src: "2019-05-01T12:00:00Z", want: want},
		{name: "nil", src: nil, want: time.Time{}},
		{name: "garbage", src: "yesterday", wantErr: true},
		{name: "int", src: int64(12), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts timestamp
			err := ts.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.BugzillaConfig{
		Host:     "db.internal",
		Port:     3307,
		User:     "bugs",
		Password: "s3cret",
		Database: "bugzilla",
	})

	assert.Contains(t, dsn, "bugs:s3cret@tcp(db.internal:3307)/bugzilla")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestOpenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db, err := Open(ctx, config.BugzillaConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "root",
		Database: "bugzilla",
	})
	require.Error(t, err)
	assert.Nil(t, db)
	assert.True(t, errors.Is(err, errs.ErrConnection))
}
