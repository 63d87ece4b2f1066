package redirect

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/organizer/sanctuary/internal/db"
	"github.com/organizer/sanctuary/internal/models"
	"github.com/organizer/sanctuary/internal/repository"
)

func newTestRedirector(t *testing.T) (*Redirector, *repository.Store) {
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
	return New(store.Links, logger), store
}

func TestResolveFoundRecordsClick(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRedirector(t)

	broadcast := &models.Broadcast{Message: "draft"}
	if err := store.Broadcasts.Create(ctx, broadcast); err != nil {
		t.Fatal(err)
	}
	link := &models.Link{BroadcastID: broadcast.ID, OriginalURL: "https://example.com/x", ShortCode: "ABCD1234"}
	if err := store.Links.Create(ctx, link); err != nil {
		t.Fatal(err)
	}

	sid := "sub-1"
	outcome, err := r.Resolve(ctx, "ABCD1234", &sid)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Found || outcome.OriginalURL != "https://example.com/x" {
		t.Fatalf("outcome = %+v", outcome)
	}

	n, err := store.Links.ClickCount(ctx, link.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("ClickCount = %d, want 1", n)
	}
}

func TestResolveFoundWithoutSubscriberID(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRedirector(t)

	broadcast := &models.Broadcast{Message: "draft"}
	if err := store.Broadcasts.Create(ctx, broadcast); err != nil {
		t.Fatal(err)
	}
	link := &models.Link{BroadcastID: broadcast.ID, OriginalURL: "https://example.com/y", ShortCode: "WXYZ9999"}
	if err := store.Links.Create(ctx, link); err != nil {
		t.Fatal(err)
	}

	outcome, err := r.Resolve(ctx, "WXYZ9999", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Found {
		t.Fatal("expected found")
	}
	n, _ := store.Links.ClickCount(ctx, link.ID)
	if n != 1 {
		t.Errorf("ClickCount = %d, want 1", n)
	}
}

func TestResolveNotFound(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRedirector(t)

	outcome, err := r.Resolve(ctx, "NOPE0000", nil)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Found {
		t.Fatal("expected not found")
	}
}
