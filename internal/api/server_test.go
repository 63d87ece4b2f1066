package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/organizer/sanctuary/internal/admin"
	"github.com/organizer/sanctuary/internal/broadcast"
	"github.com/organizer/sanctuary/internal/db"
	"github.com/organizer/sanctuary/internal/delivery"
	"github.com/organizer/sanctuary/internal/gateway"
	"github.com/organizer/sanctuary/internal/inbound"
	"github.com/organizer/sanctuary/internal/inbox"
	"github.com/organizer/sanctuary/internal/linktok"
	"github.com/organizer/sanctuary/internal/models"
	"github.com/organizer/sanctuary/internal/notifier"
	"github.com/organizer/sanctuary/internal/redirect"
	"github.com/organizer/sanctuary/internal/repository"
)

const testAdminPhone = "+15557778888"

type testServer struct {
	*Server
	store *repository.Store
	gw    *gateway.Fake
	notif *notifier.Fake
}

func newTestServer(t *testing.T, apiKey string) *testServer {
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
	gw := gateway.NewFake()
	notif := notifier.NewFake()
	tokenizer := linktok.New(store.Links, "https://sanctuary.example", logger)
	broadcaster := broadcast.New(store, gw, tokenizer, logger)
	processor := inbound.New(store, logger)
	redirector := redirect.New(store.Links, logger)
	reconciler := delivery.New(store.Messages, logger)
	projector := inbox.New(store)
	adm := admin.New(store, logger)

	s := NewServer("", apiKey, Deps{
		Store:            store,
		Processor:        processor,
		Broadcaster:      broadcaster,
		Redirector:       redirector,
		Reconciler:       reconciler,
		Inbox:            projector,
		Admin:            adm,
		Notifier:         notif,
		AdminPhoneNumber: testAdminPhone,
		AdminSMSEnabled:  true,
		BaseURL:          "https://sanctuary.example",
	}, logger)

	return &testServer{Server: s, store: store, gw: gw, notif: notif}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthMiddlewareRejectsMissingKey(t *testing.T) {
	ts := newTestServer(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/api/inbox", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareAcceptsBearerKey(t *testing.T) {
	ts := newTestServer(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/api/inbox", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthMiddlewareDisabledWithoutConfiguredKey(t *testing.T) {
	ts := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/inbox", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestWebhookSignatureRequiredAndEnforced(t *testing.T) {
	ts := newTestServer(t, "")
	ts.requireWebhookSignature = true
	ts.webhookSigningSecret = "whsec"

	form := url.Values{"From": {"+15551234567"}, "To": {"+15550000000"}, "Body": {"JOIN"}}
	body := []byte(form.Encode())

	t.Run("missing signature rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/sms", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("valid signature accepted", func(t *testing.T) {
		mac := hmac.New(sha256.New, []byte("whsec"))
		mac.Write(body)
		sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/sms", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Webhook-Signature", sig)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})
}

func TestHandleInboundSMSMissingFields(t *testing.T) {
	ts := newTestServer(t, "")
	form := url.Values{"From": {"+15551234567"}}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleInboundSMSJoinRepliesWithTwiML(t *testing.T) {
	ts := newTestServer(t, "")
	form := url.Values{"From": {"+15551234567"}, "To": {"+15550000000"}, "Body": {"JOIN"}}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "<Response>") {
		t.Errorf("body = %q, want TwiML <Response>", rec.Body.String())
	}
}

func TestHandleInboundSMSConversationalNotifiesAdmin(t *testing.T) {
	ts := newTestServer(t, "")
	sub := &models.Subscriber{PhoneNumber: "+15551234567", IsActive: true}
	if err := ts.store.Subscribers.Create(context.Background(), sub); err != nil {
		t.Fatal(err)
	}

	form := url.Values{"From": {sub.PhoneNumber}, "To": {"+15550000000"}, "Body": {"is there a meeting tonight?"}}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(ts.gw.Sent) != 1 || ts.gw.Sent[0].To != testAdminPhone {
		t.Fatalf("gateway sends = %+v, want one courtesy SMS to %s", ts.gw.Sent, testAdminPhone)
	}
	wantLink := "https://sanctuary.example/admin/conversations/" + sub.ID
	if !strings.Contains(ts.gw.Sent[0].Body, wantLink) {
		t.Errorf("courtesy SMS body = %q, want it to contain %q", ts.gw.Sent[0].Body, wantLink)
	}
}

func TestHandleInboundSMSConversationalSkipsAdminSMSWhenDisabled(t *testing.T) {
	ts := newTestServer(t, "")
	ts.adminSMSEnabled = false
	sub := &models.Subscriber{PhoneNumber: "+15551234567", IsActive: true}
	if err := ts.store.Subscribers.Create(context.Background(), sub); err != nil {
		t.Fatal(err)
	}

	form := url.Values{"From": {sub.PhoneNumber}, "To": {"+15550000000"}, "Body": {"is there a meeting tonight?"}}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(ts.gw.Sent) != 0 {
		t.Fatalf("gateway sends = %+v, want none", ts.gw.Sent)
	}
}

func TestHandleBroadcastTestRequiresPhone(t *testing.T) {
	ts := newTestServer(t, "")
	payload := map[string]any{"message": "hello", "campaignName": "Test"}
	raw, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/broadcast/test", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleBroadcastTestSendsToSinglePhone(t *testing.T) {
	ts := newTestServer(t, "")
	payload := map[string]any{"message": "hello", "campaignName": "Test", "phone": "+15559998888"}
	raw, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/broadcast/test", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if len(ts.gw.Sent) != 1 || ts.gw.Sent[0].To != "+15559998888" {
		t.Fatalf("gateway sends = %+v, want one send to +15559998888", ts.gw.Sent)
	}
}

func TestHandleCreateAndListKeywords(t *testing.T) {
	ts := newTestServer(t, "")
	payload := map[string]any{"keyword": "tribe", "autoResponse": "Welcome to the tribe!", "isActive": true}
	raw, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/keywords/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK && rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/keywords/", nil)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var resp struct {
		Keywords []map[string]any `json:"keywords"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Keywords) != 1 {
		t.Fatalf("len(keywords) = %d, want 1", len(resp.Keywords))
	}
}

func TestHandleRedirectNotFound(t *testing.T) {
	ts := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/sanctuary/nosuchcode", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
