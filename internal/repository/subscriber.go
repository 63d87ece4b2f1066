package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/organizer/sanctuary/internal/apierr"
	"github.com/organizer/sanctuary/internal/models"
)

// SubscriberRepository provides typed CRUD for Subscriber rows.
type SubscriberRepository struct {
	db *sql.DB
}

func NewSubscriberRepository(db *sql.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func (r *SubscriberRepository) Create(ctx context.Context, s *models.Subscriber) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.JoinedAt.IsZero() {
		s.JoinedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscribers (id, phone_number, is_active, joined_at, last_read_at, joined_via_keyword, notifier_thread_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.PhoneNumber, boolToInt(s.IsActive), s.JoinedAt, s.LastReadAt, s.JoinedViaKeyword, s.NotifierThreadRef,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apierr.Conflict("subscriber with phone number %s already exists", s.PhoneNumber)
		}
		return apierr.Internal("create subscriber", err)
	}
	return nil
}

func (r *SubscriberRepository) FindByPhone(ctx context.Context, phone string) (*models.Subscriber, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, phone_number, is_active, joined_at, last_read_at, joined_via_keyword, notifier_thread_ref
		FROM subscribers WHERE phone_number = ?`, phone)
	return scanSubscriber(row)
}

func (r *SubscriberRepository) FindByID(ctx context.Context, id string) (*models.Subscriber, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, phone_number, is_active, joined_at, last_read_at, joined_via_keyword, notifier_thread_ref
		FROM subscribers WHERE id = ?`, id)
	return scanSubscriber(row)
}

func (r *SubscriberRepository) Update(ctx context.Context, s *models.Subscriber) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscribers
		SET phone_number = ?, is_active = ?, last_read_at = ?, joined_via_keyword = ?, notifier_thread_ref = ?
		WHERE id = ?`,
		s.PhoneNumber, boolToInt(s.IsActive), s.LastReadAt, s.JoinedViaKeyword, s.NotifierThreadRef, s.ID,
	)
	if err != nil {
		return apierr.Internal("update subscriber", err)
	}
	return nil
}

// SetLastReadAt updates only the read watermark, used by InboxProjector
// and the best-effort markReadNow path of InboundProcessor.
func (r *SubscriberRepository) SetLastReadAt(ctx context.Context, id string, at *time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE subscribers SET last_read_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return apierr.Internal("set last_read_at", err)
	}
	return nil
}

func (r *SubscriberRepository) SetAllLastReadAt(ctx context.Context, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE subscribers SET last_read_at = ? WHERE is_active = 1`, at)
	if err != nil {
		return apierr.Internal("set all last_read_at", err)
	}
	return nil
}

// ActiveSubscribers returns every active subscriber ordered by joinedAt
// ascending, the base of BroadcastEngine's audience resolution (§4.4).
func (r *SubscriberRepository) ActiveSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, phone_number, is_active, joined_at, last_read_at, joined_via_keyword, notifier_thread_ref
		FROM subscribers WHERE is_active = 1 ORDER BY joined_at ASC`)
	if err != nil {
		return nil, apierr.Internal("list active subscribers", err)
	}
	defer rows.Close()
	return scanSubscribers(rows)
}

// ActiveSubscribersInLists returns active subscribers who belong to any of
// the given lists, ordered by joinedAt ascending, de-duplicated.
func (r *SubscriberRepository) ActiveSubscribersInLists(ctx context.Context, listIDs []string) ([]*models.Subscriber, error) {
	if len(listIDs) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(listIDs)
	query := fmt.Sprintf(`
		SELECT DISTINCT s.id, s.phone_number, s.is_active, s.joined_at, s.last_read_at, s.joined_via_keyword, s.notifier_thread_ref
		FROM subscribers s
		JOIN list_memberships m ON m.subscriber_id = s.id
		WHERE s.is_active = 1 AND m.list_id IN (%s)
		ORDER BY s.joined_at ASC`, placeholders)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Internal("list active subscribers in lists", err)
	}
	defer rows.Close()
	return scanSubscribers(rows)
}

// SubscriberIDsInLists returns the set of subscriber ids (active or not)
// belonging to any of the given lists, used to build the exclude set.
func (r *SubscriberRepository) SubscriberIDsInLists(ctx context.Context, listIDs []string) (map[string]bool, error) {
	result := map[string]bool{}
	if len(listIDs) == 0 {
		return result, nil
	}
	placeholders, args := inClause(listIDs)
	query := fmt.Sprintf(`SELECT DISTINCT subscriber_id FROM list_memberships WHERE list_id IN (%s)`, placeholders)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Internal("list subscriber ids in lists", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apierr.Internal("scan subscriber id", err)
		}
		result[id] = true
	}
	return result, rows.Err()
}

// List returns active subscribers matching an optional phone
// search substring, for admin listing and InboxProjector.
func (r *SubscriberRepository) List(ctx context.Context, search string, limit, offset int) ([]*models.Subscriber, error) {
	query := `SELECT id, phone_number, is_active, joined_at, last_read_at, joined_via_keyword, notifier_thread_ref
		FROM subscribers WHERE is_active = 1`
	args := []any{}
	if search != "" {
		query += ` AND phone_number LIKE ?`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY joined_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Internal("list subscribers", err)
	}
	defer rows.Close()
	return scanSubscribers(rows)
}

func (r *SubscriberRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers WHERE is_active = 1`).Scan(&n)
	if err != nil {
		return 0, apierr.Internal("count active subscribers", err)
	}
	return n, nil
}

func scanSubscriber(row *sql.Row) (*models.Subscriber, error) {
	var s models.Subscriber
	var isActive int
	err := row.Scan(&s.ID, &s.PhoneNumber, &isActive, &s.JoinedAt, &s.LastReadAt, &s.JoinedViaKeyword, &s.NotifierThreadRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.Internal("scan subscriber", err)
	}
	s.IsActive = isActive != 0
	return &s, nil
}

func scanSubscribers(rows *sql.Rows) ([]*models.Subscriber, error) {
	var out []*models.Subscriber
	for rows.Next() {
		var s models.Subscriber
		var isActive int
		if err := rows.Scan(&s.ID, &s.PhoneNumber, &isActive, &s.JoinedAt, &s.LastReadAt, &s.JoinedViaKeyword, &s.NotifierThreadRef); err != nil {
			return nil, apierr.Internal("scan subscriber row", err)
		}
		s.IsActive = isActive != 0
		out = append(out, &s)
	}
	return out, rows.Err()
}
