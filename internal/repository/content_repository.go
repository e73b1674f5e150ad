package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/instaflow/internal/models"
)

type ContentRepository interface {
	Create(ctx context.Context, c *models.Content) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Content, error)
	List(ctx context.Context) ([]*models.Content, error)
	ListScheduled(ctx context.Context) ([]*models.Content, error)
	ListOverdue(ctx context.Context, before time.Time) ([]*models.Content, error)
	Update(ctx context.Context, c *models.Content) (bool, error)
	UpdateStatus(ctx context.Context, id int64, u models.StatusUpdate) error
	UpdateStatusIfScheduled(ctx context.Context, id int64, u models.StatusUpdate) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type contentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) ContentRepository {
	return &contentRepository{db: db}
}

const contentColumns = `id, account_id, type, caption, media_url, scheduled_date, status,
	first_comment, location, hide_like_count, tagged_users, remote_id, failure_reason,
	published_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*models.Content, error) {
	var (
		c             models.Content
		kind, status  string
		firstComment  sql.NullString
		location      sql.NullString
		taggedUsers   []byte
		remoteID      sql.NullString
		failureReason sql.NullString
		publishedAt   sql.NullTime
	)
	err := row.Scan(&c.ID, &c.AccountID, &kind, &c.Caption, &c.MediaRef, &c.ScheduledAt, &status,
		&firstComment, &location, &c.HideLikeCount, &taggedUsers, &remoteID, &failureReason,
		&publishedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Kind = models.Kind(kind)
	c.Status = models.Status(status)
	c.FirstComment = firstComment.String
	c.Location = location.String
	c.RemoteID = remoteID.String
	c.FailureReason = failureReason.String
	if publishedAt.Valid {
		t := publishedAt.Time
		c.PublishedAt = &t
	}
	users, err := decodeTaggedUsers(taggedUsers)
	if err != nil {
		return nil, err
	}
	c.TaggedUsers = users
	return &c, nil
}

func encodeTaggedUsers(users []string) (any, error) {
	if len(users) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(users)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeTaggedUsers(raw []byte) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var users []string
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *contentRepository) Create(ctx context.Context, c *models.Content) (int64, error) {
	query := `
		INSERT INTO scheduled_content (account_id, type, caption, media_url, scheduled_date, status,
			first_comment, location, hide_like_count, tagged_users)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	tagged, err := encodeTaggedUsers(c.TaggedUsers)
	if err != nil {
		return 0, err
	}
	status := c.Status
	if status == "" {
		status = models.StatusScheduled
	}

	err = r.db.QueryRowContext(ctx, query, c.AccountID, string(c.Kind), c.Caption, c.MediaRef,
		c.ScheduledAt.UTC(), string(status), nullString(c.FirstComment), nullString(c.Location),
		c.HideLikeCount, tagged).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	c.Status = status
	return c.ID, nil
}

func (r *contentRepository) GetByID(ctx context.Context, id int64) (*models.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM scheduled_content WHERE id = $1`
	c, err := scanContent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return c, nil
}

func (r *contentRepository) List(ctx context.Context) ([]*models.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM scheduled_content ORDER BY scheduled_date DESC`
	return r.query(ctx, query)
}

func (r *contentRepository) ListScheduled(ctx context.Context) ([]*models.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM scheduled_content WHERE status = $1 ORDER BY scheduled_date`
	return r.query(ctx, query, string(models.StatusScheduled))
}

// ListOverdue returns scheduled items whose publish time is before the given instant.
func (r *contentRepository) ListOverdue(ctx context.Context, before time.Time) ([]*models.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM scheduled_content
		WHERE status = $1 AND scheduled_date < $2 ORDER BY scheduled_date`
	return r.query(ctx, query, string(models.StatusScheduled), before.UTC())
}

func (r *contentRepository) query(ctx context.Context, query string, args ...any) ([]*models.Content, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return items, nil
}

// Update edits the mutable fields of an item that is still scheduled. The
// kind is fixed at creation. It reports false when no scheduled row matched.
func (r *contentRepository) Update(ctx context.Context, c *models.Content) (bool, error) {
	query := `
		UPDATE scheduled_content
		SET account_id = $2,
			caption = $3,
			media_url = $4,
			scheduled_date = $5,
			first_comment = $6,
			location = $7,
			hide_like_count = $8,
			tagged_users = $9,
			updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`
	tagged, err := encodeTaggedUsers(c.TaggedUsers)
	if err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx, query, c.ID, c.AccountID, c.Caption, c.MediaRef, c.ScheduledAt.UTC(),
		nullString(c.FirstComment), nullString(c.Location), c.HideLikeCount, tagged)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

const updateStatusQuery = `
	UPDATE scheduled_content
	SET status = $2::text,
		failure_reason = NULLIF($3, ''),
		remote_id = COALESCE(NULLIF($4, ''), remote_id),
		published_at = CASE WHEN $2::text = 'published' THEN $5 ELSE published_at END,
		updated_at = $5
	WHERE id = $1`

// UpdateStatus writes a status and its audit fields. Writing the same update twice is harmless.
func (r *contentRepository) UpdateStatus(ctx context.Context, id int64, u models.StatusUpdate) error {
	_, err := r.db.ExecContext(ctx, updateStatusQuery, id, string(u.Status), u.Reason, u.RemoteID, statusTime(u))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// UpdateStatusIfScheduled applies u only while the row is still scheduled.
func (r *contentRepository) UpdateStatusIfScheduled(ctx context.Context, id int64, u models.StatusUpdate) (bool, error) {
	result, err := r.db.ExecContext(ctx, updateStatusQuery+` AND status = 'scheduled'`,
		id, string(u.Status), u.Reason, u.RemoteID, statusTime(u))
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func statusTime(u models.StatusUpdate) time.Time {
	if u.At.IsZero() {
		return time.Now().UTC()
	}
	return u.At.UTC()
}

func (r *contentRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM scheduled_content WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
