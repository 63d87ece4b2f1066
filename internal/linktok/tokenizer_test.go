package linktok

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/organizer/sanctuary/internal/db"
	"github.com/organizer/sanctuary/internal/models"
	"github.com/organizer/sanctuary/internal/repository"
)

func newTestTokenizer(t *testing.T) (*Tokenizer, *repository.Store, string) {
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

	broadcast := &models.Broadcast{Message: "draft"}
	if err := store.Broadcasts.Create(context.Background(), broadcast); err != nil {
		t.Fatal(err)
	}

	return New(store.Links, "https://example.org", logger), store, broadcast.ID
}

func TestTokenizeApprovedURLRewritten(t *testing.T) {
	ctx := context.Background()
	tok, _, broadcastID := newTestTokenizer(t)

	draft := "See https://example.com/x for details"
	result := tok.Tokenize(ctx, draft, broadcastID, map[string]bool{"https://example.com/x": true})

	matched, err := regexp.MatchString(`See https://example\.org/sanctuary/[A-Za-z0-9]{8} for details`, result.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !matched {
		t.Errorf("body = %q did not match expected pattern", result.Body)
	}
	if len(result.Links) != 1 || result.Links[0].OriginalURL != "https://example.com/x" {
		t.Fatalf("Links = %+v", result.Links)
	}
}

func TestTokenizeUnapprovedURLLeftVerbatim(t *testing.T) {
	ctx := context.Background()
	tok, _, broadcastID := newTestTokenizer(t)

	draft := "See https://example.com/x for details"
	result := tok.Tokenize(ctx, draft, broadcastID, map[string]bool{})

	if result.Body != draft {
		t.Errorf("body = %q, want unchanged draft", result.Body)
	}
	if len(result.Links) != 0 {
		t.Errorf("Links = %+v, want none", result.Links)
	}
}

func TestTokenizeNilApprovedMeansAllApproved(t *testing.T) {
	ctx := context.Background()
	tok, _, broadcastID := newTestTokenizer(t)

	draft := "See https://example.com/x"
	result := tok.Tokenize(ctx, draft, broadcastID, nil)
	matched, err := regexp.MatchString(`^See https://example\.org/sanctuary/[A-Za-z0-9]{8}$`, result.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !matched {
		t.Errorf("body = %q, want the URL shortened when approvedURLs is nil", result.Body)
	}
}

func TestTokenizeDuplicateURLSameShortCode(t *testing.T) {
	ctx := context.Background()
	tok, _, broadcastID := newTestTokenizer(t)

	draft := "https://example.com/x and again https://example.com/x"
	result := tok.Tokenize(ctx, draft, broadcastID, map[string]bool{"https://example.com/x": true})

	if len(result.Links) != 1 {
		t.Fatalf("Links = %+v, want exactly one link for a repeated URL", result.Links)
	}
	re := regexp.MustCompile(`sanctuary/([A-Za-z0-9]{8})`)
	codes := re.FindAllStringSubmatch(result.Body, -1)
	if len(codes) != 2 {
		t.Fatalf("expected two rewritten occurrences, got %d", len(codes))
	}
	if codes[0][1] != codes[1][1] {
		t.Errorf("occurrences got different codes: %s vs %s", codes[0][1], codes[1][1])
	}
}

func TestExtractURLsDeduplicatesPreservingOrder(t *testing.T) {
	urls := extractURLs("a https://a.com b https://b.com c https://a.com")
	if len(urls) != 2 || urls[0] != "https://a.com" || urls[1] != "https://b.com" {
		t.Errorf("extractURLs = %v", urls)
	}
}
