// Package admin implements keyword/list administration and bulk
// subscriber import, on top of the typed repository layer's own
// normalization and uniqueness checks.
package admin

import (
	"context"
	"log/slog"

	"github.com/organizer/sanctuary/internal/apierr"
	"github.com/organizer/sanctuary/internal/inbound"
	"github.com/organizer/sanctuary/internal/models"
	"github.com/organizer/sanctuary/internal/repository"
)

const maxBulkImport = 5000

// Outcome is the per-entry result of a bulk subscriber import.
type Outcome string

const (
	OutcomeAdded                 Outcome = "added"
	OutcomeSkippedDuplicate      Outcome = "skipped-duplicate"
	OutcomeRejectedInvalidFormat Outcome = "rejected-invalid-format"
)

// ImportResult is one row of a bulk import's report.
type ImportResult struct {
	Phone   string
	Outcome Outcome
}

// Admin wraps the repository layer with referential-integrity checks and
// batch-processing rules for keyword/list/subscriber administration.
type Admin struct {
	store  *repository.Store
	logger *slog.Logger
}

func New(store *repository.Store, logger *slog.Logger) *Admin {
	return &Admin{store: store, logger: logger}
}

// CreateKeyword validates an optional bound listId before delegating
// normalization, empty-autoResponse rejection, and duplicate detection to
// the repository layer.
func (a *Admin) CreateKeyword(ctx context.Context, kw *models.SignupKeyword) error {
	if err := a.validateListID(ctx, kw.ListID); err != nil {
		return err
	}
	return a.store.Keywords.Create(ctx, kw)
}

// UpdateKeyword is CreateKeyword's update counterpart; the repository
// layer restricts the uniqueness collision to other rows.
func (a *Admin) UpdateKeyword(ctx context.Context, kw *models.SignupKeyword) error {
	if err := a.validateListID(ctx, kw.ListID); err != nil {
		return err
	}
	return a.store.Keywords.Update(ctx, kw)
}

func (a *Admin) validateListID(ctx context.Context, listID *string) error {
	if listID == nil {
		return nil
	}
	list, err := a.store.Lists.FindByID(ctx, *listID)
	if err != nil {
		return err
	}
	if list == nil {
		return apierr.InvalidInput("list %s does not exist", *listID)
	}
	return nil
}

// DeleteList rejects the delete if any SignupKeyword still references the
// list, since the store does not cascade signup_keywords.list_id (spec
// §4.8).
func (a *Admin) DeleteList(ctx context.Context, listID string) error {
	referenced, err := a.store.Keywords.ReferencesList(ctx, listID)
	if err != nil {
		return err
	}
	if referenced {
		return apierr.Conflict("list %s is still referenced by one or more keywords", listID)
	}
	return a.store.Lists.Delete(ctx, listID)
}

// BulkImportSubscribers processes up to maxBulkImport candidate phone
// numbers, reporting a per-entry outcome. When listID is set, every added
// or pre-existing subscriber is enrolled into it with
// joinedVia="bulk-import"; rejected entries are never enrolled.
func (a *Admin) BulkImportSubscribers(ctx context.Context, phones []string, listID *string) ([]ImportResult, error) {
	if len(phones) > maxBulkImport {
		return nil, apierr.InvalidInput("bulk import accepts at most %d entries", maxBulkImport)
	}

	results := make([]ImportResult, 0, len(phones))
	for _, phone := range phones {
		if !inbound.ValidPhone(phone) {
			results = append(results, ImportResult{Phone: phone, Outcome: OutcomeRejectedInvalidFormat})
			continue
		}

		existing, err := a.store.Subscribers.FindByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}

		outcome := OutcomeAdded
		subscriberID := ""
		if existing != nil {
			outcome = OutcomeSkippedDuplicate
			subscriberID = existing.ID
		} else {
			sub := &models.Subscriber{PhoneNumber: phone, IsActive: true}
			if err := a.store.Subscribers.Create(ctx, sub); err != nil {
				return nil, err
			}
			subscriberID = sub.ID
		}

		if listID != nil {
			if err := a.store.Memberships.Enroll(ctx, subscriberID, *listID, "bulk-import"); err != nil {
				a.logger.Warn("bulk import enrollment failed", "phone", phone, "list_id", *listID, "error", err)
			}
		}

		results = append(results, ImportResult{Phone: phone, Outcome: outcome})
	}

	return results, nil
}
