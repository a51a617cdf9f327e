// Package store manages all SQLite persistence for potluck.
//
// One WAL-mode database is shared by every server instance. Correctness
// under concurrent callers comes from the statements themselves: invitation
// responses are a single conditional UPDATE, heartbeats are an upsert, and
// activity is a pure insert. No in-process locking is involved.
//
// Timestamps are stored as INTEGER Unix nanoseconds (UTC) so range filters
// compare numerically.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/daviddao/potluck/pkg/model"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrNotPending is returned when a status transition finds the
	// invitation already out of the pending state.
	ErrNotPending = errors.New("store: invitation is not pending")
	// ErrDuplicate is returned when a uniqueness constraint would be
	// violated (user email, collaborator email on a document).
	ErrDuplicate = errors.New("store: duplicate")
)

// Store manages all SQLite operations with WAL mode for concurrent access.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// retryOnContention wraps retryOp with the default config. All store write
// operations go through it.
func retryOnContention(ctx context.Context, fn func() error) error {
	return retryOp(ctx, defaultRetryConfig, fn)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		content     TEXT NOT NULL DEFAULT '',
		author_id   TEXT NOT NULL,
		author_name TEXT NOT NULL,
		is_public   INTEGER NOT NULL DEFAULT 1,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS collaborators (
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		email       TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		name        TEXT NOT NULL,
		role        TEXT NOT NULL,
		added_at    INTEGER NOT NULL,
		added_by    TEXT NOT NULL,
		PRIMARY KEY (document_id, email)
	);

	CREATE TABLE IF NOT EXISTS invitations (
		id            TEXT PRIMARY KEY,
		document_id   TEXT NOT NULL,
		inviter_id    TEXT NOT NULL,
		inviter_name  TEXT NOT NULL,
		invited_email TEXT NOT NULL,
		invited_name  TEXT NOT NULL,
		message       TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		created_at    INTEGER NOT NULL,
		expires_at    INTEGER NOT NULL,
		responded_at  INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_invitations_email ON invitations(invited_email, status, expires_at);
	CREATE INDEX IF NOT EXISTS idx_invitations_document ON invitations(document_id, created_at);

	CREATE TABLE IF NOT EXISTS presence (
		document_id TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		user_name   TEXT NOT NULL,
		last_seen   INTEGER NOT NULL,
		PRIMARY KEY (document_id, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_presence_last_seen ON presence(last_seen);

	CREATE TABLE IF NOT EXISTS activity (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		document_id TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		user_name   TEXT NOT NULL,
		action      TEXT NOT NULL,
		details     TEXT NOT NULL DEFAULT '',
		ts          INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_document ON activity(document_id, ts);
	CREATE INDEX IF NOT EXISTS idx_activity_user ON activity(document_id, user_id, ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// CreateUser registers a user. The email is normalized; ErrDuplicate is
// returned when it is already taken.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = model.NormalizeEmail(u.Email)
	return retryOnContention(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(email) DO NOTHING`,
			u.ID, u.Email, u.Name, toNanos(u.CreatedAt),
		)
		if err != nil {
			return err
		}
		return requireOneRow(res, ErrDuplicate)
	})
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// FindUserByEmail retrieves a user by normalized email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM users WHERE email = ?`, model.NormalizeEmail(email))
	return scanUser(row)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var created int64
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &created); err != nil {
		return nil, notFound(err)
	}
	u.CreatedAt = fromNanos(created)
	return &u, nil
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

// CreateDocument inserts a document with no collaborators.
func (s *Store) CreateDocument(ctx context.Context, d *model.Document) error {
	return retryOnContention(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO documents (id, title, description, content, author_id, author_name, is_public, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Title, d.Description, d.Content, d.AuthorID, d.AuthorName,
			boolToInt(d.IsPublic), toNanos(d.CreatedAt), toNanos(d.UpdatedAt),
		)
		return err
	})
}

// GetDocument loads a document together with its collaborator set.
func (s *Store) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	var public int
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, content, author_id, author_name, is_public, created_at, updated_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Title, &d.Description, &d.Content, &d.AuthorID, &d.AuthorName, &public, &created, &updated)
	if err != nil {
		return nil, notFound(err)
	}
	d.IsPublic = public != 0
	d.CreatedAt = fromNanos(created)
	d.UpdatedAt = fromNanos(updated)

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, email, name, role, added_at, added_by
		 FROM collaborators WHERE document_id = ? ORDER BY added_at ASC, rowid ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list collaborators for %s: %w", id, err)
	}
	defer rows.Close()
	d.Collaborators = []model.Collaborator{}
	for rows.Next() {
		var c model.Collaborator
		var added int64
		if err := rows.Scan(&c.UserID, &c.Email, &c.Name, &c.Role, &added, &c.AddedBy); err != nil {
			return nil, err
		}
		c.AddedAt = fromNanos(added)
		d.Collaborators = append(d.Collaborators, c)
	}
	return &d, rows.Err()
}

// AppendCollaborator adds one membership record to a document. It returns
// ErrNotFound for an unknown document and ErrDuplicate when the email is
// already a collaborator; in both cases nothing is written.
func (s *Store) AppendCollaborator(ctx context.Context, documentID string, c model.Collaborator) error {
	c.Email = model.NormalizeEmail(c.Email)
	return retryOnContention(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		res, err := tx.ExecContext(ctx,
			`UPDATE documents SET updated_at = ? WHERE id = ?`, toNanos(c.AddedAt), documentID)
		if err != nil {
			return err
		}
		if err := requireOneRow(res, ErrNotFound); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO collaborators (document_id, email, user_id, name, role, added_at, added_by)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(document_id, email) DO NOTHING`,
			documentID, c.Email, c.UserID, c.Name, c.Role, toNanos(c.AddedAt), c.AddedBy,
		)
		if err != nil {
			return err
		}
		if err := requireOneRow(res, ErrDuplicate); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit collaborator: %w", err)
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// Invitations
// ---------------------------------------------------------------------------

const invitationColumns = `id, document_id, inviter_id, inviter_name, invited_email, invited_name,
	message, status, created_at, expires_at, responded_at`

// InsertInvitation stores a new invitation record.
func (s *Store) InsertInvitation(ctx context.Context, inv *model.Invitation) error {
	var responded sql.NullInt64
	if inv.RespondedAt != nil {
		responded = sql.NullInt64{Int64: toNanos(*inv.RespondedAt), Valid: true}
	}
	return retryOnContention(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO invitations (`+invitationColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inv.ID, inv.DocumentID, inv.InviterID, inv.InviterName,
			model.NormalizeEmail(inv.InvitedEmail), inv.InvitedName, inv.Message,
			string(inv.Status), toNanos(inv.CreatedAt), toNanos(inv.ExpiresAt), responded,
		)
		return err
	})
}

// GetInvitation retrieves an invitation by ID.
func (s *Store) GetInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id)
	inv, err := scanInvitation(row)
	if err != nil {
		return nil, notFound(err)
	}
	return inv, nil
}

// TransitionInvitation moves a pending invitation to status in a single
// conditional update. When the row exists but is no longer pending (for
// example a concurrent responder won) it returns ErrNotPending; exactly one
// of any number of racing callers succeeds.
func (s *Store) TransitionInvitation(ctx context.Context, id string, status model.InvitationStatus, respondedAt time.Time) error {
	return retryOnContention(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE invitations SET status = ?, responded_at = ?
			 WHERE id = ? AND status = ?`,
			string(status), toNanos(respondedAt), id, string(model.StatusPending),
		)
		if err != nil {
			return err
		}
		return requireOneRow(res, ErrNotPending)
	})
}

// ListPendingInvitations returns pending invitations for email that have
// not expired at now, newest first.
func (s *Store) ListPendingInvitations(ctx context.Context, email string, now time.Time) ([]model.Invitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE invited_email = ? AND status = ? AND expires_at >= ?
		 ORDER BY created_at DESC, rowid DESC`,
		model.NormalizeEmail(email), string(model.StatusPending), toNanos(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvitations(rows)
}

// ListDocumentInvitations returns every invitation for a document regardless
// of status, newest first.
func (s *Store) ListDocumentInvitations(ctx context.Context, documentID string) ([]model.Invitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE document_id = ? ORDER BY created_at DESC, rowid DESC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvitations(rows)
}

// CountInvitations returns the number of invitations stored for a document.
func (s *Store) CountInvitations(ctx context.Context, documentID string) int64 {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invitations WHERE document_id = ?`, documentID).Scan(&n); err != nil {
		return 0
	}
	return n
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*model.Invitation, error) {
	var inv model.Invitation
	var status string
	var created, expires int64
	var responded sql.NullInt64
	if err := row.Scan(&inv.ID, &inv.DocumentID, &inv.InviterID, &inv.InviterName,
		&inv.InvitedEmail, &inv.InvitedName, &inv.Message, &status,
		&created, &expires, &responded); err != nil {
		return nil, err
	}
	inv.Status = model.InvitationStatus(status)
	if !inv.Status.Valid() {
		return nil, fmt.Errorf("invitation %s has unknown status %q", inv.ID, status)
	}
	inv.CreatedAt = fromNanos(created)
	inv.ExpiresAt = fromNanos(expires)
	if responded.Valid {
		t := fromNanos(responded.Int64)
		inv.RespondedAt = &t
	}
	return &inv, nil
}

func scanInvitations(rows *sql.Rows) ([]model.Invitation, error) {
	invs := []model.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, *inv)
	}
	return invs, rows.Err()
}

// ---------------------------------------------------------------------------
// Presence
// ---------------------------------------------------------------------------

// UpsertPresence writes the single record for (document, user). A write
// older than the stored last_seen is ignored, so concurrent heartbeats
// resolve last-write-wins by timestamp.
func (s *Store) UpsertPresence(ctx context.Context, p model.Presence) error {
	return retryOnContention(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO presence (document_id, user_id, user_name, last_seen)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(document_id, user_id) DO UPDATE SET
			   user_name = excluded.user_name,
			   last_seen = excluded.last_seen
			 WHERE excluded.last_seen >= presence.last_seen`,
			p.DocumentID, p.UserID, p.UserName, toNanos(p.LastSeen),
		)
		return err
	})
}

// ListPresence returns records for a document with last_seen >= since,
// ordered by user ID. A non-empty excludeUserID drops that user.
func (s *Store) ListPresence(ctx context.Context, documentID string, since time.Time, excludeUserID string) ([]model.Presence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, user_id, user_name, last_seen FROM presence
		 WHERE document_id = ? AND last_seen >= ? AND (? = '' OR user_id != ?)
		 ORDER BY user_id ASC`,
		documentID, toNanos(since), excludeUserID, excludeUserID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ps := []model.Presence{}
	for rows.Next() {
		var p model.Presence
		var seen int64
		if err := rows.Scan(&p.DocumentID, &p.UserID, &p.UserName, &seen); err != nil {
			return nil, err
		}
		p.LastSeen = fromNanos(seen)
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

// DeletePresenceBefore removes records with last_seen < before and returns
// how many were removed.
func (s *Store) DeletePresenceBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := retryOnContention(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM presence WHERE last_seen < ?`, toNanos(before))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// ---------------------------------------------------------------------------
// Activity
// ---------------------------------------------------------------------------

// InsertActivity appends an event to the log.
func (s *Store) InsertActivity(ctx context.Context, a *model.Activity) error {
	return retryOnContention(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO activity (id, document_id, user_id, user_name, action, details, ts)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.DocumentID, a.UserID, a.UserName, a.Action, a.Details, toNanos(a.Timestamp),
		)
		return err
	})
}

// ListRecentActivity returns up to limit events for a document, newest
// first. Events with equal timestamps come back newest-inserted first.
func (s *Store) ListRecentActivity(ctx context.Context, documentID string, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, user_id, user_name, action, details, ts
		 FROM activity WHERE document_id = ?
		 ORDER BY ts DESC, seq DESC LIMIT ?`,
		documentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		var ts int64
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.UserID, &a.UserName, &a.Action, &a.Details, &ts); err != nil {
			return nil, err
		}
		a.Timestamp = fromNanos(ts)
		events = append(events, a)
	}
	return events, rows.Err()
}

// LatestActivityPerUser returns, for each user with at least one event on
// the document, their newest event. Equal timestamps resolve to the row
// inserted last, so repeated calls on unchanged data agree.
func (s *Store) LatestActivityPerUser(ctx context.Context, documentID string) (map[string]model.LastActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.user_id, a.user_name, a.action, a.ts FROM activity a
		 WHERE a.document_id = ? AND a.seq = (
		   SELECT b.seq FROM activity b
		   WHERE b.document_id = a.document_id AND b.user_id = a.user_id
		   ORDER BY b.ts DESC, b.seq DESC LIMIT 1
		 )`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latest := map[string]model.LastActivity{}
	for rows.Next() {
		var userID string
		var la model.LastActivity
		var ts int64
		if err := rows.Scan(&userID, &la.UserName, &la.Action, &ts); err != nil {
			return nil, err
		}
		la.Timestamp = fromNanos(ts)
		latest[userID] = la
	}
	return latest, rows.Err()
}

// CountActivity returns the total number of events logged for a document.
func (s *Store) CountActivity(ctx context.Context, documentID string) int64 {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity WHERE document_id = ?`, documentID).Scan(&n); err != nil {
		return 0
	}
	return n
}

// DeleteActivityBefore removes events older than before across all
// documents and returns how many were removed.
func (s *Store) DeleteActivityBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := retryOnContention(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM activity WHERE ts < ?`, toNanos(before))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// toNanos maps the zero time to 0 so it can serve as "since the beginning".
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// requireOneRow returns ifNone when the statement touched no rows.
func requireOneRow(res sql.Result, ifNone error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ifNone
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
