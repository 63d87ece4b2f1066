package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/organizer/sanctuary/internal/apierr"
	"github.com/organizer/sanctuary/internal/models"
)

// LinkRepository provides typed CRUD for Link and LinkClick rows.
type LinkRepository struct {
	db *sql.DB
}

func NewLinkRepository(db *sql.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) Create(ctx context.Context, l *models.Link) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO links (id, broadcast_id, original_url, short_code) VALUES (?, ?, ?, ?)`,
		l.ID, l.BroadcastID, l.OriginalURL, l.ShortCode,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apierr.Conflict("short code %q already allocated", l.ShortCode)
		}
		return apierr.Internal("create link", err)
	}
	return nil
}

func (r *LinkRepository) FindByShortCode(ctx context.Context, code string) (*models.Link, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, broadcast_id, original_url, short_code FROM links WHERE short_code = ?`, code)
	return scanLink(row)
}

// ShortCodeExists reports whether a short code has already been
// allocated, used by LinkTokenizer's bounded collision-retry loop.
func (r *LinkRepository) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links WHERE short_code = ?`, code).Scan(&n)
	if err != nil {
		return false, apierr.Internal("check short code existence", err)
	}
	return n > 0, nil
}

func (r *LinkRepository) ByBroadcast(ctx context.Context, broadcastID string) ([]*models.Link, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, broadcast_id, original_url, short_code FROM links WHERE broadcast_id = ?`, broadcastID)
	if err != nil {
		return nil, apierr.Internal("list links by broadcast", err)
	}
	defer rows.Close()

	var out []*models.Link
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.ID, &l.BroadcastID, &l.OriginalURL, &l.ShortCode); err != nil {
			return nil, apierr.Internal("scan link row", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// RecordClick best-effort-inserts a LinkClick row; failures are the
// caller's concern to swallow.
func (r *LinkRepository) RecordClick(ctx context.Context, linkID string, subscriberID *string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO link_clicks (id, link_id, subscriber_id, clicked_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), linkID, subscriberID, time.Now().UTC(),
	)
	if err != nil {
		return apierr.Internal("record click", err)
	}
	return nil
}

func (r *LinkRepository) ClickCount(ctx context.Context, linkID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM link_clicks WHERE link_id = ?`, linkID).Scan(&n)
	if err != nil {
		return 0, apierr.Internal("count clicks", err)
	}
	return n, nil
}

func scanLink(row *sql.Row) (*models.Link, error) {
	var l models.Link
	err := row.Scan(&l.ID, &l.BroadcastID, &l.OriginalURL, &l.ShortCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.Internal("scan link", err)
	}
	return &l, nil
}
