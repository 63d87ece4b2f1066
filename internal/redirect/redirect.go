// Package redirect implements ClickRedirector: resolve a short code to
// its original URL, best-effort record the click, and issue a permanent
// redirect.
package redirect

import (
	"context"
	"log/slog"

	"github.com/organizer/sanctuary/internal/repository"
)

// Redirector resolves short codes minted by internal/linktok.
type Redirector struct {
	links  *repository.LinkRepository
	logger *slog.Logger
}

func New(links *repository.LinkRepository, logger *slog.Logger) *Redirector {
	return &Redirector{links: links, logger: logger}
}

// Outcome tells the HTTP handler what to render.
type Outcome struct {
	Found       bool
	OriginalURL string
}

// Resolve looks up shortCode and, if found, best-effort records a click
// attributed to subscriberID (nil if the redirect carried no ?sid).
// Click-insert failures never prevent the redirect.
func (r *Redirector) Resolve(ctx context.Context, shortCode string, subscriberID *string) (Outcome, error) {
	link, err := r.links.FindByShortCode(ctx, shortCode)
	if err != nil {
		return Outcome{}, err
	}
	if link == nil {
		return Outcome{Found: false}, nil
	}

	if err := r.links.RecordClick(ctx, link.ID, subscriberID); err != nil {
		r.logger.Warn("click record failed", "short_code", shortCode, "error", err)
	}

	return Outcome{Found: true, OriginalURL: link.OriginalURL}, nil
}
