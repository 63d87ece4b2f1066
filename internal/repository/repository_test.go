package repository

import (
	"context"
	"testing"
	"time"

	"github.com/organizer/sanctuary/internal/db"
	"github.com/organizer/sanctuary/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("db.Migrate: %v", err)
	}
	return New(database.DB)
}

func TestSubscriberCreateFindUpdate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	s := &models.Subscriber{PhoneNumber: "+15551234567", IsActive: true}
	if err := store.Subscribers.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == "" {
		t.Fatal("expected generated ID")
	}

	found, err := store.Subscribers.FindByPhone(ctx, "+15551234567")
	if err != nil {
		t.Fatalf("FindByPhone: %v", err)
	}
	if found == nil || found.ID != s.ID {
		t.Fatalf("FindByPhone returned %+v", found)
	}

	if err := store.Subscribers.Create(ctx, &models.Subscriber{PhoneNumber: "+15551234567"}); err == nil {
		t.Fatal("expected conflict on duplicate phone number")
	}

	s.IsActive = false
	if err := store.Subscribers.Update(ctx, s); err != nil {
		t.Fatalf("Update: %v", err)
	}
	found, _ = store.Subscribers.FindByPhone(ctx, "+15551234567")
	if found.IsActive {
		t.Fatal("expected IsActive=false after update")
	}
}

func TestMembershipIdempotentEnroll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	s := &models.Subscriber{PhoneNumber: "+15551234567", IsActive: true}
	if err := store.Subscribers.Create(ctx, s); err != nil {
		t.Fatal(err)
	}
	l := &models.SubscriberList{Name: "tribe"}
	if err := store.Lists.Create(ctx, l); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := store.Memberships.Enroll(ctx, s.ID, l.ID, "keyword:TRIBE"); err != nil {
			t.Fatalf("Enroll iteration %d: %v", i, err)
		}
	}

	n, err := store.Memberships.CountByList(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountByList = %d, want 1 (enroll must be idempotent)", n)
	}
}

func TestKeywordUppercaseNormalization(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	k := &models.SignupKeyword{Keyword: "  tribe  ", AutoResponse: "Welcome!", IsActive: true}
	if err := store.Keywords.Create(ctx, k); err != nil {
		t.Fatal(err)
	}
	if k.Keyword != "TRIBE" {
		t.Errorf("Keyword = %q, want TRIBE", k.Keyword)
	}

	found, err := store.Keywords.FindByKeyword(ctx, "tribe")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.ID != k.ID {
		t.Fatalf("FindByKeyword lowercase lookup failed: %+v", found)
	}
}

func TestKeywordReferencesListDetected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	l := &models.SubscriberList{Name: "tribe"}
	if err := store.Lists.Create(ctx, l); err != nil {
		t.Fatal(err)
	}
	k := &models.SignupKeyword{Keyword: "TRIBE", AutoResponse: "Welcome!", IsActive: true, ListID: &l.ID}
	if err := store.Keywords.Create(ctx, k); err != nil {
		t.Fatal(err)
	}

	referenced, err := store.Keywords.ReferencesList(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !referenced {
		t.Fatal("expected list to be reported as referenced")
	}
}

func TestActiveSubscribersInListsExcludesInactive(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	l := &models.SubscriberList{Name: "L1"}
	store.Lists.Create(ctx, l)

	active := &models.Subscriber{PhoneNumber: "+15550000001", IsActive: true}
	inactive := &models.Subscriber{PhoneNumber: "+15550000002", IsActive: false}
	store.Subscribers.Create(ctx, active)
	store.Subscribers.Create(ctx, inactive)
	store.Memberships.Enroll(ctx, active.ID, l.ID, "manual")
	store.Memberships.Enroll(ctx, inactive.ID, l.ID, "manual")

	result, err := store.Subscribers.ActiveSubscribersInLists(ctx, []string{l.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 1 || result[0].ID != active.ID {
		t.Fatalf("ActiveSubscribersInLists = %+v, want only the active subscriber", result)
	}
}

func TestMessageUniqueProviderID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	providerID := "SM1"
	m1 := &models.Message{PhoneNumber: "+15551234567", Content: "hi", Direction: models.DirectionOutbound, ProviderMessageID: &providerID, DeliveryStatus: models.DeliverySent}
	if err := store.Messages.Create(ctx, m1); err != nil {
		t.Fatal(err)
	}
	m2 := &models.Message{PhoneNumber: "+15557654321", Content: "hi", Direction: models.DirectionOutbound, ProviderMessageID: &providerID, DeliveryStatus: models.DeliverySent}
	if err := store.Messages.Create(ctx, m2); err == nil {
		t.Fatal("expected conflict on duplicate provider message id")
	}
}

func TestHasUnreadInboundPredicate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	phone := "+15551234567"
	has, err := store.Messages.HasUnreadInbound(ctx, phone, nil)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Fatal("expected no unread with no messages")
	}

	msg := &models.Message{PhoneNumber: phone, Content: "hello", Direction: models.DirectionInbound}
	if err := store.Messages.Create(ctx, msg); err != nil {
		t.Fatal(err)
	}

	has, err = store.Messages.HasUnreadInbound(ctx, phone, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Fatal("expected unread after inbound message with nil watermark")
	}

	now := time.Now().UTC().Add(time.Minute)
	has, err = store.Messages.HasUnreadInbound(ctx, phone, &now)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Fatal("expected no unread when watermark is after the message")
	}
}
