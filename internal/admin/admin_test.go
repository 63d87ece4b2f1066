package admin

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/organizer/sanctuary/internal/db"
	"github.com/organizer/sanctuary/internal/models"
	"github.com/organizer/sanctuary/internal/repository"
)

func newTestAdmin(t *testing.T) (*Admin, *repository.Store) {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatal(err)
	}
	store := repository.New(database.DB)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, logger), store
}

func TestCreateKeywordRejectsUnknownListID(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdmin(t)
	bogus := "nonexistent"
	kw := &models.SignupKeyword{Keyword: "tribe", AutoResponse: "hi", IsActive: true, ListID: &bogus}
	if err := a.CreateKeyword(ctx, kw); err == nil {
		t.Fatal("expected error for unknown listId")
	}
}

func TestCreateKeywordBindsValidListID(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAdmin(t)
	list := &models.SubscriberList{Name: "Tribe"}
	if err := store.Lists.Create(ctx, list); err != nil {
		t.Fatal(err)
	}
	kw := &models.SignupKeyword{Keyword: "tribe", AutoResponse: "hi", IsActive: true, ListID: &list.ID}
	if err := a.CreateKeyword(ctx, kw); err != nil {
		t.Fatal(err)
	}
	if kw.Keyword != "TRIBE" {
		t.Errorf("Keyword = %q, want normalized TRIBE", kw.Keyword)
	}
}

func TestDeleteListRejectedWhenKeywordReferences(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAdmin(t)
	list := &models.SubscriberList{Name: "Tribe"}
	store.Lists.Create(ctx, list)
	kw := &models.SignupKeyword{Keyword: "TRIBE", AutoResponse: "hi", IsActive: true, ListID: &list.ID}
	store.Keywords.Create(ctx, kw)

	if err := a.DeleteList(ctx, list.ID); err == nil {
		t.Fatal("expected delete to be rejected")
	}
}

func TestDeleteListSucceedsWhenUnreferenced(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAdmin(t)
	list := &models.SubscriberList{Name: "Tribe"}
	store.Lists.Create(ctx, list)

	if err := a.DeleteList(ctx, list.ID); err != nil {
		t.Fatal(err)
	}
	got, err := store.Lists.FindByID(ctx, list.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected list to be deleted")
	}
}

func TestBulkImportRejectsOverLimit(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdmin(t)
	phones := make([]string, maxBulkImport+1)
	for i := range phones {
		phones[i] = "+15550000000"
	}
	if _, err := a.BulkImportSubscribers(ctx, phones, nil); err == nil {
		t.Fatal("expected rejection over the 5000-entry limit")
	}
}

func TestBulkImportClassifiesEachEntry(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAdmin(t)

	existing := &models.Subscriber{PhoneNumber: "+15550000002", IsActive: true}
	if err := store.Subscribers.Create(ctx, existing); err != nil {
		t.Fatal(err)
	}

	results, err := a.BulkImportSubscribers(ctx, []string{
		"+15550000001",
		"+15550000002",
		"not-a-phone",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Outcome != OutcomeAdded {
		t.Errorf("results[0] = %+v, want added", results[0])
	}
	if results[1].Outcome != OutcomeSkippedDuplicate {
		t.Errorf("results[1] = %+v, want skipped-duplicate", results[1])
	}
	if results[2].Outcome != OutcomeRejectedInvalidFormat {
		t.Errorf("results[2] = %+v, want rejected-invalid-format", results[2])
	}
}

func TestBulkImportEnrollsAddedAndPreexistingIntoList(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAdmin(t)
	list := &models.SubscriberList{Name: "Newsletter"}
	if err := store.Lists.Create(ctx, list); err != nil {
		t.Fatal(err)
	}
	existing := &models.Subscriber{PhoneNumber: "+15550000012", IsActive: true}
	if err := store.Subscribers.Create(ctx, existing); err != nil {
		t.Fatal(err)
	}

	_, err := a.BulkImportSubscribers(ctx, []string{"+15550000011", "+15550000012"}, &list.ID)
	if err != nil {
		t.Fatal(err)
	}

	n, err := store.Memberships.CountByList(ctx, list.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountByList = %d, want 2", n)
	}
}

func TestBulkImportNeverEnrollsRejectedEntries(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAdmin(t)
	list := &models.SubscriberList{Name: "Newsletter"}
	if err := store.Lists.Create(ctx, list); err != nil {
		t.Fatal(err)
	}

	_, err := a.BulkImportSubscribers(ctx, []string{"garbage"}, &list.ID)
	if err != nil {
		t.Fatal(err)
	}
	n, err := store.Memberships.CountByList(ctx, list.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("CountByList = %d, want 0", n)
	}
}
