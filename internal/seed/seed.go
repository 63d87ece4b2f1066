// Package seed loads the starter AppConfig and SignupKeyword set applied
// by `sanctuaryd migrate`, the one piece of this system's configuration
// that is naturally a checked-in file rather than an environment
// variable.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/organizer/sanctuary/internal/models"
	"github.com/organizer/sanctuary/internal/repository"
)

//go:embed default.yaml
var defaultYAML []byte

// Data is the checked-in shape of a seed file: the singleton AppConfig
// plus a starter set of signup keywords.
type Data struct {
	AppConfig struct {
		DefaultWelcomeMessage string `yaml:"default_welcome_message"`
		LegacyOptInKeyword    string `yaml:"legacy_opt_in_keyword"`
		LegacyOptInResponse   string `yaml:"legacy_opt_in_response"`
		LegacyOptOutResponse  string `yaml:"legacy_opt_out_response"`
		LegacyUnknownResponse string `yaml:"legacy_unknown_response"`
	} `yaml:"app_config"`
	Keywords []struct {
		Keyword      string `yaml:"keyword"`
		AutoResponse string `yaml:"auto_response"`
	} `yaml:"keywords"`
}

// Default returns the seed data embedded in the binary.
func Default() (*Data, error) {
	return Parse(defaultYAML)
}

// Parse decodes seed data from raw YAML, as loaded from an operator-
// supplied override file.
func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("seed: parse: %w", err)
	}
	return &d, nil
}

// Apply writes the seed's AppConfig row and creates any keyword not
// already present, by normalized keyword text. Existing keywords are left
// untouched so operator edits made through the admin API survive repeat
// `migrate` runs.
func Apply(ctx context.Context, store *repository.Store, logger *slog.Logger, d *Data) error {
	cfg := &models.AppConfig{
		DefaultWelcomeMessage: d.AppConfig.DefaultWelcomeMessage,
		LegacyOptInKeyword:    d.AppConfig.LegacyOptInKeyword,
		LegacyOptInResponse:   d.AppConfig.LegacyOptInResponse,
		LegacyOptOutResponse:  d.AppConfig.LegacyOptOutResponse,
		LegacyUnknownResponse: d.AppConfig.LegacyUnknownResponse,
	}
	if err := store.Config.Update(ctx, cfg); err != nil {
		return fmt.Errorf("seed: apply app config: %w", err)
	}

	for _, k := range d.Keywords {
		existing, err := store.Keywords.FindByKeyword(ctx, k.Keyword)
		if err != nil {
			return fmt.Errorf("seed: lookup keyword %q: %w", k.Keyword, err)
		}
		if existing != nil {
			continue
		}
		if err := store.Keywords.Create(ctx, &models.SignupKeyword{
			Keyword:      k.Keyword,
			AutoResponse: k.AutoResponse,
			IsActive:     true,
		}); err != nil {
			return fmt.Errorf("seed: create keyword %q: %w", k.Keyword, err)
		}
		logger.Info("seeded keyword", "keyword", k.Keyword)
	}

	return nil
}
