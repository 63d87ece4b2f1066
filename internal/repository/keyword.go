package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/organizer/sanctuary/internal/apierr"
	"github.com/organizer/sanctuary/internal/models"
)

// KeywordRepository provides typed CRUD for SignupKeyword rows.
type KeywordRepository struct {
	db *sql.DB
}

func NewKeywordRepository(db *sql.DB) *KeywordRepository {
	return &KeywordRepository{db: db}
}

// Create normalizes the keyword to uppercase and rejects duplicates and
// empty auto-responses.
func (r *KeywordRepository) Create(ctx context.Context, k *models.SignupKeyword) error {
	k.Keyword = strings.ToUpper(strings.TrimSpace(k.Keyword))
	if k.Keyword == "" {
		return apierr.InvalidInput("keyword must not be empty")
	}
	if strings.TrimSpace(k.AutoResponse) == "" {
		return apierr.InvalidInput("autoResponse must not be empty")
	}
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signup_keywords (id, keyword, auto_response, is_active, list_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		k.ID, k.Keyword, k.AutoResponse, boolToInt(k.IsActive), k.ListID, k.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apierr.Conflict("keyword %q already exists", k.Keyword)
		}
		return apierr.Internal("create keyword", err)
	}
	return nil
}

// Update applies the same normalization as Create; a uniqueness collision
// only triggers against OTHER rows.
func (r *KeywordRepository) Update(ctx context.Context, k *models.SignupKeyword) error {
	k.Keyword = strings.ToUpper(strings.TrimSpace(k.Keyword))
	if k.Keyword == "" {
		return apierr.InvalidInput("keyword must not be empty")
	}
	if strings.TrimSpace(k.AutoResponse) == "" {
		return apierr.InvalidInput("autoResponse must not be empty")
	}

	existing, err := r.FindByKeyword(ctx, k.Keyword)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != k.ID {
		return apierr.Conflict("keyword %q already exists", k.Keyword)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE signup_keywords SET keyword = ?, auto_response = ?, is_active = ?, list_id = ? WHERE id = ?`,
		k.Keyword, k.AutoResponse, boolToInt(k.IsActive), k.ListID, k.ID,
	)
	if err != nil {
		return apierr.Internal("update keyword", err)
	}
	return nil
}

func (r *KeywordRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM signup_keywords WHERE id = ?`, id)
	if err != nil {
		return apierr.Internal("delete keyword", err)
	}
	return nil
}

func (r *KeywordRepository) FindByID(ctx context.Context, id string) (*models.SignupKeyword, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, keyword, auto_response, is_active, list_id, created_at FROM signup_keywords WHERE id = ?`, id)
	return scanKeyword(row)
}

// FindByKeyword looks up a keyword by its normalized (uppercase, trimmed)
// text. Callers pass the already-normalized form (KeywordRouter does the
// normalization once and reuses it).
func (r *KeywordRepository) FindByKeyword(ctx context.Context, keyword string) (*models.SignupKeyword, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, keyword, auto_response, is_active, list_id, created_at
		FROM signup_keywords WHERE keyword = ?`, strings.ToUpper(strings.TrimSpace(keyword)))
	return scanKeyword(row)
}

func (r *KeywordRepository) All(ctx context.Context) ([]*models.SignupKeyword, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, keyword, auto_response, is_active, list_id, created_at FROM signup_keywords ORDER BY keyword ASC`)
	if err != nil {
		return nil, apierr.Internal("list keywords", err)
	}
	defer rows.Close()

	var out []*models.SignupKeyword
	for rows.Next() {
		var k models.SignupKeyword
		var isActive int
		if err := rows.Scan(&k.ID, &k.Keyword, &k.AutoResponse, &isActive, &k.ListID, &k.CreatedAt); err != nil {
			return nil, apierr.Internal("scan keyword row", err)
		}
		k.IsActive = isActive != 0
		out = append(out, &k)
	}
	return out, rows.Err()
}

// ActiveKeywords returns every active keyword, used to compose the
// "Text X or Y to rejoin/subscribe" auto-reply text.
func (r *KeywordRepository) ActiveKeywords(ctx context.Context) ([]*models.SignupKeyword, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	var active []*models.SignupKeyword
	for _, k := range all {
		if k.IsActive {
			active = append(active, k)
		}
	}
	return active, nil
}

// ReferencesList reports whether any keyword references the given list,
// used to enforce list-delete referential integrity.
func (r *KeywordRepository) ReferencesList(ctx context.Context, listID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signup_keywords WHERE list_id = ?`, listID).Scan(&n)
	if err != nil {
		return false, apierr.Internal("check keyword list reference", err)
	}
	return n > 0, nil
}

func scanKeyword(row *sql.Row) (*models.SignupKeyword, error) {
	var k models.SignupKeyword
	var isActive int
	err := row.Scan(&k.ID, &k.Keyword, &k.AutoResponse, &isActive, &k.ListID, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.Internal("scan keyword", err)
	}
	k.IsActive = isActive != 0
	return &k, nil
}
