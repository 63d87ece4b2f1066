package inbox

import (
	"context"
	"testing"
	"time"

	"github.com/organizer/sanctuary/internal/db"
	"github.com/organizer/sanctuary/internal/models"
	"github.com/organizer/sanctuary/internal/repository"
)

func newTestProjector(t *testing.T) (*Projector, *repository.Store) {
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
	return New(store), store
}

func mustActiveSubscriber(t *testing.T, store *repository.Store, phone string, lastReadAt *time.Time) *models.Subscriber {
	t.Helper()
	sub := &models.Subscriber{PhoneNumber: phone, IsActive: true, LastReadAt: lastReadAt}
	if err := store.Subscribers.Create(context.Background(), sub); err != nil {
		t.Fatal(err)
	}
	return sub
}

func TestUnreadCountCountsSubscribersWithInboundAfterWatermark(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProjector(t)

	unread := mustActiveSubscriber(t, store, "+15550000001", nil)
	past := time.Now().UTC().Add(time.Hour)
	read := mustActiveSubscriber(t, store, "+15550000002", &past)

	if err := store.Messages.Create(ctx, &models.Message{PhoneNumber: unread.PhoneNumber, Content: "hi", Direction: models.DirectionInbound}); err != nil {
		t.Fatal(err)
	}
	if err := store.Messages.Create(ctx, &models.Message{PhoneNumber: read.PhoneNumber, Content: "hi", Direction: models.DirectionInbound}); err != nil {
		t.Fatal(err)
	}

	count, err := p.UnreadCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("UnreadCount = %d, want 1", count)
	}
}

func TestListFiltersByReadState(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProjector(t)

	unreadSub := mustActiveSubscriber(t, store, "+15550000010", nil)
	readSub := mustActiveSubscriber(t, store, "+15550000011", nil)

	if err := store.Messages.Create(ctx, &models.Message{PhoneNumber: unreadSub.PhoneNumber, Content: "hi", Direction: models.DirectionInbound}); err != nil {
		t.Fatal(err)
	}
	if err := store.Messages.Create(ctx, &models.Message{PhoneNumber: readSub.PhoneNumber, Content: "old", Direction: models.DirectionInbound}); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	if err := store.Subscribers.SetLastReadAt(ctx, readSub.ID, &now); err != nil {
		t.Fatal(err)
	}
	time.Sleep(0)

	unreadEntries, err := p.List(ctx, FilterUnread, "", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(unreadEntries) != 1 || unreadEntries[0].Subscriber.ID != unreadSub.ID {
		t.Fatalf("unread entries = %+v", unreadEntries)
	}

	allEntries, err := p.List(ctx, FilterAll, "", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(allEntries) != 2 {
		t.Fatalf("all entries = %+v, want 2", allEntries)
	}
}

func TestListIncludesPreviewAndFormattedPhone(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProjector(t)
	sub := mustActiveSubscriber(t, store, "+15551234567", nil)
	if err := store.Messages.Create(ctx, &models.Message{PhoneNumber: sub.PhoneNumber, Content: "latest", Direction: models.DirectionInbound}); err != nil {
		t.Fatal(err)
	}

	entries, err := p.List(ctx, FilterAll, "", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].FormattedPhone != "(555) 123-4567" {
		t.Errorf("FormattedPhone = %q", entries[0].FormattedPhone)
	}
	if entries[0].Preview == nil || entries[0].Preview.Content != "latest" {
		t.Errorf("Preview = %+v", entries[0].Preview)
	}
}

func TestMarkReadAndMarkUnread(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProjector(t)
	sub := mustActiveSubscriber(t, store, "+15550000020", nil)

	if err := p.MarkRead(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}
	got, err := store.Subscribers.FindByID(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastReadAt == nil {
		t.Fatal("expected lastReadAt set after MarkRead")
	}

	if err := p.MarkUnread(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}
	got2, err := store.Subscribers.FindByID(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got2.LastReadAt != nil {
		t.Fatal("expected lastReadAt cleared after MarkUnread")
	}
}

func TestMarkAllRead(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProjector(t)
	s1 := mustActiveSubscriber(t, store, "+15550000030", nil)
	s2 := mustActiveSubscriber(t, store, "+15550000031", nil)

	if err := p.MarkAllRead(ctx); err != nil {
		t.Fatal(err)
	}
	got1, _ := store.Subscribers.FindByID(ctx, s1.ID)
	got2, _ := store.Subscribers.FindByID(ctx, s2.ID)
	if got1.LastReadAt == nil || got2.LastReadAt == nil {
		t.Fatal("expected all subscribers marked read")
	}
}

func TestMarkReadUnknownSubscriberReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProjector(t)
	if err := p.MarkRead(ctx, "nonexistent"); err == nil {
		t.Fatal("expected not-found error")
	}
}
