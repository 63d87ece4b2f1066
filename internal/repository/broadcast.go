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

// BroadcastRepository provides typed CRUD for Broadcast and
// BroadcastTarget rows.
type BroadcastRepository struct {
	db *sql.DB
}

func NewBroadcastRepository(db *sql.DB) *BroadcastRepository {
	return &BroadcastRepository{db: db}
}

func (r *BroadcastRepository) Create(ctx context.Context, b *models.Broadcast) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO broadcasts (id, name, message, sent_count, total_cost, target_all, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Message, b.SentCount, b.TotalCost, boolToInt(b.TargetAll), b.CreatedAt,
	)
	if err != nil {
		return apierr.Internal("create broadcast", err)
	}
	return nil
}

func (r *BroadcastRepository) UpdateSentCount(ctx context.Context, id string, sentCount int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE broadcasts SET sent_count = ? WHERE id = ?`, sentCount, id)
	if err != nil {
		return apierr.Internal("update broadcast sent count", err)
	}
	return nil
}

func (r *BroadcastRepository) FindByID(ctx context.Context, id string) (*models.Broadcast, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, message, sent_count, total_cost, target_all, created_at FROM broadcasts WHERE id = ?`, id)
	return scanBroadcast(row)
}

func (r *BroadcastRepository) Recent(ctx context.Context, limit int) ([]*models.Broadcast, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, message, sent_count, total_cost, target_all, created_at
		FROM broadcasts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apierr.Internal("list broadcasts", err)
	}
	defer rows.Close()

	var out []*models.Broadcast
	for rows.Next() {
		b, err := scanBroadcastRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddTarget records an include/exclude list reference for a broadcast.
func (r *BroadcastRepository) AddTarget(ctx context.Context, t models.BroadcastTarget) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO broadcast_targets (broadcast_id, list_id, type) VALUES (?, ?, ?)`,
		t.BroadcastID, t.ListID, string(t.Type),
	)
	if err != nil {
		return apierr.Internal("add broadcast target", err)
	}
	return nil
}

func (r *BroadcastRepository) TargetsByBroadcast(ctx context.Context, broadcastID string) ([]models.BroadcastTarget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT broadcast_id, list_id, type FROM broadcast_targets WHERE broadcast_id = ?`, broadcastID)
	if err != nil {
		return nil, apierr.Internal("list broadcast targets", err)
	}
	defer rows.Close()

	var out []models.BroadcastTarget
	for rows.Next() {
		var t models.BroadcastTarget
		var typ string
		if err := rows.Scan(&t.BroadcastID, &t.ListID, &typ); err != nil {
			return nil, apierr.Internal("scan broadcast target", err)
		}
		t.Type = models.TargetType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanBroadcast(row *sql.Row) (*models.Broadcast, error) {
	var b models.Broadcast
	var targetAll int
	err := row.Scan(&b.ID, &b.Name, &b.Message, &b.SentCount, &b.TotalCost, &targetAll, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.Internal("scan broadcast", err)
	}
	b.TargetAll = targetAll != 0
	return &b, nil
}

func scanBroadcastRow(rows *sql.Rows) (*models.Broadcast, error) {
	var b models.Broadcast
	var targetAll int
	if err := rows.Scan(&b.ID, &b.Name, &b.Message, &b.SentCount, &b.TotalCost, &targetAll, &b.CreatedAt); err != nil {
		return nil, apierr.Internal("scan broadcast row", err)
	}
	b.TargetAll = targetAll != 0
	return &b, nil
}
