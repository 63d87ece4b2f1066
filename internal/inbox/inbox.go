// Package inbox implements InboxProjector: a read-state view over active
// subscribers driven by the watermark on each subscriber's lastReadAt
// column.
package inbox

import (
	"context"
	"time"

	"github.com/organizer/sanctuary/internal/apierr"
	"github.com/organizer/sanctuary/internal/inbound"
	"github.com/organizer/sanctuary/internal/models"
	"github.com/organizer/sanctuary/internal/repository"
)

// Filter narrows List to subscribers with a given read state.
type Filter string

const (
	FilterAll    Filter = "all"
	FilterUnread Filter = "unread"
	FilterRead   Filter = "read"
)

// unboundedScan is used internally to pull every active subscriber before
// applying the unread predicate and pagination in memory: the predicate
// spans two tables and is cheapest to evaluate per-subscriber here rather
// than with a correlated subquery duplicated across call sites.
const unboundedScan = 1_000_000

// Entry is one row of a projected inbox listing.
type Entry struct {
	Subscriber     *models.Subscriber
	FormattedPhone string
	HasUnread      bool
	Preview        *models.Message
}

// Projector computes inbox read-state views over the subscriber store.
type Projector struct {
	store *repository.Store
}

func New(store *repository.Store) *Projector {
	return &Projector{store: store}
}

// UnreadCount returns the number of active subscribers with at least one
// inbound message after their lastReadAt watermark.
func (p *Projector) UnreadCount(ctx context.Context) (int, error) {
	subs, err := p.store.Subscribers.ActiveSubscribers(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, s := range subs {
		unread, err := p.store.Messages.HasUnreadInbound(ctx, s.PhoneNumber, s.LastReadAt)
		if err != nil {
			return 0, err
		}
		if unread {
			count++
		}
	}
	return count, nil
}

// List returns a page of inbox entries matching filter and search,
// ordered most-recently-joined first.
func (p *Projector) List(ctx context.Context, filter Filter, search string, limit, offset int) ([]Entry, error) {
	subs, err := p.store.Subscribers.List(ctx, search, unboundedScan, 0)
	if err != nil {
		return nil, err
	}

	var matched []Entry
	for _, s := range subs {
		unread, err := p.store.Messages.HasUnreadInbound(ctx, s.PhoneNumber, s.LastReadAt)
		if err != nil {
			return nil, err
		}
		if filter == FilterUnread && !unread {
			continue
		}
		if filter == FilterRead && unread {
			continue
		}

		preview, err := p.store.Messages.MostRecentByPhone(ctx, s.PhoneNumber)
		if err != nil {
			return nil, err
		}

		matched = append(matched, Entry{
			Subscriber:     s,
			FormattedPhone: inbound.FormatPhone(s.PhoneNumber),
			HasUnread:      unread,
			Preview:        preview,
		})
	}

	return paginate(matched, limit, offset), nil
}

func paginate(entries []Entry, limit, offset int) []Entry {
	if offset >= len(entries) {
		return []Entry{}
	}
	end := offset + limit
	if limit <= 0 || end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end]
}

// MarkRead sets subscriberID's lastReadAt to now.
func (p *Projector) MarkRead(ctx context.Context, subscriberID string) error {
	sub, err := p.store.Subscribers.FindByID(ctx, subscriberID)
	if err != nil {
		return err
	}
	if sub == nil {
		return apierr.NotFound("subscriber %s not found", subscriberID)
	}
	now := time.Now().UTC()
	return p.store.Subscribers.SetLastReadAt(ctx, subscriberID, &now)
}

// MarkUnread clears subscriberID's lastReadAt watermark.
func (p *Projector) MarkUnread(ctx context.Context, subscriberID string) error {
	sub, err := p.store.Subscribers.FindByID(ctx, subscriberID)
	if err != nil {
		return err
	}
	if sub == nil {
		return apierr.NotFound("subscriber %s not found", subscriberID)
	}
	return p.store.Subscribers.SetLastReadAt(ctx, subscriberID, nil)
}

// MarkAllRead sets every active subscriber's lastReadAt to now.
func (p *Projector) MarkAllRead(ctx context.Context) error {
	return p.store.Subscribers.SetAllLastReadAt(ctx, time.Now().UTC())
}
