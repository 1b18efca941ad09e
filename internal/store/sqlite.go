package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/evaldash/internal/api"
	"github.com/nhle/evaldash/internal/model"
)

const notificationColumns = `
	n.id, n.type, n.school_id, n.school_name, n.student_name,
	n.title, n.description, n.icon, n.read, n.archived, n.created_at`

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateNotification inserts a new notification record and returns its ID.
// A UUID is generated if n.ID is empty.
func (s *SQLiteStore) CreateNotification(
	ctx context.Context,
	n model.Notification,
	recipients ...string,
) (string, error) {
	if !n.Type.Valid() {
		return "", fmt.Errorf("creating notification: %w: %q", model.ErrUnknownType, n.Type)
	}
	if strings.TrimSpace(n.Title) == "" {
		return "", fmt.Errorf("notification title must not be empty")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notifications (
			id, type, school_id, school_name, student_name,
			title, description, icon, read, archived, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Type), n.SchoolID, n.SchoolName, n.StudentName,
		n.Title, n.Description, n.Icon,
		boolToInt(n.Read), boolToInt(n.Archived), n.Timestamp.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("creating notification: %w", err)
	}

	for _, userID := range recipients {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO recipients (notification_id, user_id) VALUES (?, ?)",
			n.ID, userID,
		)
		if err != nil {
			return "", fmt.Errorf("adding recipient %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing notification %s: %w", n.ID, err)
	}
	return n.ID, nil
}

// ListNotifications retrieves notifications matching filter, newest first.
func (s *SQLiteStore) ListNotifications(
	ctx context.Context,
	filter NotificationFilter,
) ([]model.Notification, error) {
	query, args, err := buildNotificationQuery(filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// GetNotification retrieves a single notification by its ID.
func (s *SQLiteStore) GetNotification(
	ctx context.Context,
	id string,
) (*model.Notification, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT"+notificationColumns+" FROM notifications n WHERE n.id = ?", id)

	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting notification %s: %w", id, api.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification %s: %w", id, err)
	}

	return &n, nil
}

// DeleteNotification removes a notification and its recipients.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

// FetchNotifications implements api.NotificationAPI. Archived rows are
// included so callers can keep them for undo and audit.
func (s *SQLiteStore) FetchNotifications(
	ctx context.Context,
	scope api.UserScope,
) ([]api.RawNotification, error) {
	notifications, err := s.ListNotifications(ctx, NotificationFilter{
		UserID:          scope.UserID,
		SchoolIDs:       scope.SchoolIDs,
		IncludeArchived: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]api.RawNotification, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, ToRaw(n))
	}
	return out, nil
}

// MarkRead marks a single notification as read.
func (s *SQLiteStore) MarkRead(ctx context.Context, id string) error {
	return s.setFlag(ctx, "read", true, id)
}

// MarkUnread clears the read flag of a single notification.
func (s *SQLiteStore) MarkUnread(ctx context.Context, id string) error {
	return s.setFlag(ctx, "read", false, id)
}

// Archive flags a single notification as archived.
func (s *SQLiteStore) Archive(ctx context.Context, id string) error {
	return s.setFlag(ctx, "archived", true, id)
}

// MarkAllRead marks every listed notification as read in one transaction.
// If any id is unknown nothing is changed.
func (s *SQLiteStore) MarkAllRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, "UPDATE notifications SET read = 1 WHERE id = ?")
	if err != nil {
		return fmt.Errorf("preparing mark-read statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id)
		if err != nil {
			return fmt.Errorf("marking notification %s as read: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("marking notification %s as read: %w", id, api.ErrNotFound)
		}
	}

	return tx.Commit()
}

// setFlag updates one boolean column. column is never user input.
func (s *SQLiteStore) setFlag(ctx context.Context, column string, value bool, id string) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE notifications SET %s = ? WHERE id = ?", column),
		boolToInt(value), id,
	)
	if err != nil {
		return fmt.Errorf("setting %s on notification %s: %w", column, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("setting %s on notification %s: %w", column, id, api.ErrNotFound)
	}
	return nil
}

// buildNotificationQuery builds the SELECT for filter.
func buildNotificationQuery(filter NotificationFilter) (string, []interface{}, error) {
	var conditions []string
	var args []interface{}

	if !filter.IncludeArchived {
		conditions = append(conditions, "n.archived = 0")
	}

	if filter.UserID != "" {
		conditions = append(conditions, `(
			NOT EXISTS (SELECT 1 FROM recipients r WHERE r.notification_id = n.id)
			OR EXISTS (SELECT 1 FROM recipients r WHERE r.notification_id = n.id AND r.user_id = ?)
		)`)
		args = append(args, filter.UserID)
	}

	if len(filter.SchoolIDs) > 0 {
		clause, inArgs, err := sqlx.In("(n.school_id = '' OR n.school_id IN (?))", filter.SchoolIDs)
		if err != nil {
			return "", nil, fmt.Errorf("expanding school filter: %w", err)
		}
		conditions = append(conditions, clause)
		args = append(args, inArgs...)
	}

	query := "SELECT" + notificationColumns + " FROM notifications n"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY n.created_at DESC, n.id ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	return query, args, nil
}

// scanNotification scans one notification row from rows or a single row.
func scanNotification(row interface{ Scan(dest ...interface{}) error }) (model.Notification, error) {
	var (
		n         model.Notification
		typ       string
		readInt   int
		archInt   int
		createdAt time.Time
	)

	err := row.Scan(
		&n.ID, &typ, &n.SchoolID, &n.SchoolName, &n.StudentName,
		&n.Title, &n.Description, &n.Icon, &readInt, &archInt, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Notification{}, err
	}
	if err != nil {
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	// Stored types are validated on insert, but rows written by other
	// tools are passed through untouched for the caller to judge.
	n.Type = model.Type(typ)
	n.Read = readInt != 0
	n.Archived = archInt != 0
	n.Timestamp = createdAt

	return n, nil
}

// ToRaw converts a stored notification into its wire form.
func ToRaw(n model.Notification) api.RawNotification {
	return api.RawNotification{
		ID:          n.ID,
		Type:        string(n.Type),
		SchoolID:    n.SchoolID,
		SchoolName:  n.SchoolName,
		StudentName: n.StudentName,
		Title:       n.Title,
		Description: n.Description,
		Icon:        n.Icon,
		Timestamp:   n.Timestamp,
		Read:        n.Read,
		Archived:    n.Archived,
	}
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLiteStore)(nil)
