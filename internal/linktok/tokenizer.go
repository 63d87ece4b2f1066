// Package linktok implements the link-shortening subsystem: extract URLs
// from a draft, mint short codes for approved ones, rewrite the draft, and
// persist Link rows tied to a broadcast.
package linktok

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/organizer/sanctuary/internal/models"
	"github.com/organizer/sanctuary/internal/repository"
)

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

const (
	shortCodeLength = 8
	shortCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxCollisionRetries = 10
)

// Tokenizer mints short links for a broadcast draft.
type Tokenizer struct {
	links   *repository.LinkRepository
	baseURL string
	logger  *slog.Logger
}

func New(links *repository.LinkRepository, baseURL string, logger *slog.Logger) *Tokenizer {
	return &Tokenizer{links: links, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Result is the outcome of Tokenize.
type Result struct {
	Body  string
	Links []*models.Link
}

// Tokenize extracts URLs from draft, mints a short code for each one
// approved by approvedURLs, and rewrites every occurrence of an approved
// URL to <baseURL>/sanctuary/<shortCode>. A nil approvedURLs approves every
// URL; a non-nil set (even an empty one) approves only its members, and
// any other URL is left verbatim, untracked.
//
// If link persistence fails partway through, Tokenize falls back to the
// original, unmodified draft and reports zero links: link tracking is an
// analytics feature, never a send blocker.
func (t *Tokenizer) Tokenize(ctx context.Context, draft, broadcastID string, approvedURLs map[string]bool) Result {
	urls := extractURLs(draft)
	if len(urls) == 0 {
		return Result{Body: draft}
	}

	body := draft
	var created []*models.Link
	for _, u := range urls {
		if approvedURLs != nil && !approvedURLs[u] {
			continue
		}

		code, err := t.allocateShortCode(ctx)
		if err != nil {
			t.logger.Warn("short code allocation failed, falling back to original body", "error", err)
			return Result{Body: draft}
		}

		link := &models.Link{BroadcastID: broadcastID, OriginalURL: u, ShortCode: code}
		if err := t.links.Create(ctx, link); err != nil {
			t.logger.Warn("link persistence failed, falling back to original body", "error", err)
			return Result{Body: draft}
		}

		created = append(created, link)
		body = strings.ReplaceAll(body, u, fmt.Sprintf("%s/sanctuary/%s", t.baseURL, code))
	}

	return Result{Body: body, Links: created}
}

// extractURLs returns the URLs in s in first-appearance order, deduplicated.
func extractURLs(s string) []string {
	matches := urlPattern.FindAllString(s, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func (t *Tokenizer) allocateShortCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCollisionRetries; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		exists, err := t.links.ShortCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("linktok: exhausted %d collision retries", maxCollisionRetries)
}

func randomCode() (string, error) {
	buf := make([]byte, shortCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("linktok: read random bytes: %w", err)
	}
	out := make([]byte, shortCodeLength)
	for i, b := range buf {
		out[i] = shortCodeAlphabet[int(b)%len(shortCodeAlphabet)]
	}
	return string(out), nil
}
