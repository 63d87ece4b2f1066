package repository

import (
	"context"
	"database/sql"

	"github.com/organizer/sanctuary/internal/apierr"
	"github.com/organizer/sanctuary/internal/models"
)

// ConfigRepository manages the AppConfig singleton row.
type ConfigRepository struct {
	db *sql.DB
}

func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

func (r *ConfigRepository) Get(ctx context.Context) (*models.AppConfig, error) {
	var c models.AppConfig
	err := r.db.QueryRowContext(ctx, `
		SELECT default_welcome_message, legacy_opt_in_keyword, legacy_opt_in_response, legacy_opt_out_response, legacy_unknown_response
		FROM app_config WHERE id = 1`).Scan(
		&c.DefaultWelcomeMessage, &c.LegacyOptInKeyword, &c.LegacyOptInResponse, &c.LegacyOptOutResponse, &c.LegacyUnknownResponse,
	)
	if err != nil {
		return nil, apierr.Internal("get app config", err)
	}
	return &c, nil
}

func (r *ConfigRepository) Update(ctx context.Context, c *models.AppConfig) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE app_config SET default_welcome_message = ?, legacy_opt_in_keyword = ?, legacy_opt_in_response = ?, legacy_opt_out_response = ?, legacy_unknown_response = ?
		WHERE id = 1`,
		c.DefaultWelcomeMessage, c.LegacyOptInKeyword, c.LegacyOptInResponse, c.LegacyOptOutResponse, c.LegacyUnknownResponse,
	)
	if err != nil {
		return apierr.Internal("update app config", err)
	}
	return nil
}
