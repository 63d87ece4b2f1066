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

// MessageRepository provides typed CRUD for Message rows. Messages are
// linked to their subscriber by phone number rather than a foreign key;
// uniqueness of providerMessageId is enforced by the column's UNIQUE
// constraint, which Create reports as a Conflict.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.DeliveryStatus == "" {
		m.DeliveryStatus = models.DeliveryPending
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, phone_number, content, direction, created_at, broadcast_id, provider_message_id, delivery_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.PhoneNumber, m.Content, string(m.Direction), m.CreatedAt, m.BroadcastID, m.ProviderMessageID, string(m.DeliveryStatus),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apierr.Conflict("message with provider id %v already recorded", m.ProviderMessageID)
		}
		return apierr.Internal("create message", err)
	}
	return nil
}

func (r *MessageRepository) FindByProviderMessageID(ctx context.Context, providerID string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, phone_number, content, direction, created_at, broadcast_id, provider_message_id, delivery_status
		FROM messages WHERE provider_message_id = ?`, providerID)
	return scanMessage(row)
}

func (r *MessageRepository) UpdateDeliveryStatus(ctx context.Context, id string, status models.DeliveryStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET delivery_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return apierr.Internal("update delivery status", err)
	}
	return nil
}

// ByPhone returns the full conversation for a phone number, oldest first.
func (r *MessageRepository) ByPhone(ctx context.Context, phone string, limit, offset int) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, phone_number, content, direction, created_at, broadcast_id, provider_message_id, delivery_status
		FROM messages WHERE phone_number = ? ORDER BY created_at ASC LIMIT ? OFFSET ?`, phone, limit, offset)
	if err != nil {
		return nil, apierr.Internal("list messages by phone", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MostRecentByPhone returns the single latest message (either direction)
// for a phone number, used as the InboxProjector preview.
func (r *MessageRepository) MostRecentByPhone(ctx context.Context, phone string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, phone_number, content, direction, created_at, broadcast_id, provider_message_id, delivery_status
		FROM messages WHERE phone_number = ? ORDER BY created_at DESC LIMIT 1`, phone)
	return scanMessage(row)
}

// HasUnreadInbound reports whether an inbound message for phone exists
// strictly after the given watermark.
func (r *MessageRepository) HasUnreadInbound(ctx context.Context, phone string, after *time.Time) (bool, error) {
	watermark := time.Unix(0, 0).UTC()
	if after != nil {
		watermark = *after
	}
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE phone_number = ? AND direction = 'INBOUND' AND created_at > ?`,
		phone, watermark).Scan(&n)
	if err != nil {
		return false, apierr.Internal("check unread inbound", err)
	}
	return n > 0, nil
}

// CountByBroadcast returns how many Message rows were recorded
// for a broadcast, used for dashboard/analytics summaries.
func (r *MessageRepository) CountByBroadcast(ctx context.Context, broadcastID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE broadcast_id = ?`, broadcastID).Scan(&n)
	if err != nil {
		return 0, apierr.Internal("count messages by broadcast", err)
	}
	return n, nil
}

// Recent returns the most recent messages across all conversations, for
// the dashboard feed.
func (r *MessageRepository) Recent(ctx context.Context, limit int) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, phone_number, content, direction, created_at, broadcast_id, provider_message_id, delivery_status
		FROM messages ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apierr.Internal("list recent messages", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessage(row *sql.Row) (*models.Message, error) {
	var m models.Message
	var direction, status string
	err := row.Scan(&m.ID, &m.PhoneNumber, &m.Content, &direction, &m.CreatedAt, &m.BroadcastID, &m.ProviderMessageID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.Internal("scan message", err)
	}
	m.Direction = models.Direction(direction)
	m.DeliveryStatus = models.DeliveryStatus(status)
	return &m, nil
}

func scanMessages(rows *sql.Rows) ([]*models.Message, error) {
	var out []*models.Message
	for rows.Next() {
		var m models.Message
		var direction, status string
		if err := rows.Scan(&m.ID, &m.PhoneNumber, &m.Content, &direction, &m.CreatedAt, &m.BroadcastID, &m.ProviderMessageID, &status); err != nil {
			return nil, apierr.Internal("scan message row", err)
		}
		m.Direction = models.Direction(direction)
		m.DeliveryStatus = models.DeliveryStatus(status)
		out = append(out, &m)
	}
	return out, rows.Err()
}
