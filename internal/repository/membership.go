package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/organizer/sanctuary/internal/apierr"
)

// MembershipRepository manages the (subscriberId, listId) join table.
type MembershipRepository struct {
	db *sql.DB
}

func NewMembershipRepository(db *sql.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Enroll idempotently inserts a membership. Re-enrolling an existing pair
// is a no-op.
func (r *MembershipRepository) Enroll(ctx context.Context, subscriberID, listID, joinedVia string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO list_memberships (subscriber_id, list_id, joined_at, joined_via)
		VALUES (?, ?, ?, ?)`,
		subscriberID, listID, time.Now().UTC(), joinedVia,
	)
	if err != nil {
		return apierr.Internal("enroll membership", err)
	}
	return nil
}

func (r *MembershipRepository) Remove(ctx context.Context, subscriberID, listID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM list_memberships WHERE subscriber_id = ? AND list_id = ?`, subscriberID, listID)
	if err != nil {
		return apierr.Internal("remove membership", err)
	}
	return nil
}

// CountByList returns the number of members of a list.
func (r *MembershipRepository) CountByList(ctx context.Context, listID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM list_memberships WHERE list_id = ?`, listID).Scan(&n)
	if err != nil {
		return 0, apierr.Internal("count memberships", err)
	}
	return n, nil
}

// PhonesByList returns the phone numbers of every member of a list, for
// admin member listing.
func (r *MembershipRepository) PhonesByList(ctx context.Context, listID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.phone_number FROM list_memberships m
		JOIN subscribers s ON s.id = m.subscriber_id
		WHERE m.list_id = ? ORDER BY m.joined_at ASC`, listID)
	if err != nil {
		return nil, apierr.Internal("list membership phones", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, apierr.Internal("scan membership phone", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
