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

// ListRepository provides typed CRUD for SubscriberList rows.
type ListRepository struct {
	db *sql.DB
}

func NewListRepository(db *sql.DB) *ListRepository {
	return &ListRepository{db: db}
}

func (r *ListRepository) Create(ctx context.Context, l *models.SubscriberList) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Name == "" {
		return apierr.InvalidInput("list name must not be empty")
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriber_lists (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		l.ID, l.Name, l.Description, l.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apierr.Conflict("list %q already exists", l.Name)
		}
		return apierr.Internal("create list", err)
	}
	return nil
}

func (r *ListRepository) FindByID(ctx context.Context, id string) (*models.SubscriberList, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, description, created_at FROM subscriber_lists WHERE id = ?`, id)
	return scanList(row)
}

func (r *ListRepository) FindByName(ctx context.Context, name string) (*models.SubscriberList, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, description, created_at FROM subscriber_lists WHERE name = ?`, name)
	return scanList(row)
}

func (r *ListRepository) Update(ctx context.Context, l *models.SubscriberList) error {
	_, err := r.db.ExecContext(ctx, `UPDATE subscriber_lists SET name = ?, description = ? WHERE id = ?`, l.Name, l.Description, l.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apierr.Conflict("list %q already exists", l.Name)
		}
		return apierr.Internal("update list", err)
	}
	return nil
}

// Delete removes a list. Callers must first verify no SignupKeyword
// references it; referential integrity is enforced code-side since the
// store does not cascade keyword.list_id.
func (r *ListRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscriber_lists WHERE id = ?`, id)
	if err != nil {
		return apierr.Internal("delete list", err)
	}
	return nil
}

func (r *ListRepository) All(ctx context.Context) ([]*models.SubscriberList, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM subscriber_lists ORDER BY name ASC`)
	if err != nil {
		return nil, apierr.Internal("list lists", err)
	}
	defer rows.Close()

	var out []*models.SubscriberList
	for rows.Next() {
		var l models.SubscriberList
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt); err != nil {
			return nil, apierr.Internal("scan list row", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func scanList(row *sql.Row) (*models.SubscriberList, error) {
	var l models.SubscriberList
	err := row.Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.Internal("scan list", err)
	}
	return &l, nil
}
