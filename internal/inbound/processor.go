// Package inbound implements the inbound-message state machine: given a
// (fromPhone, body) pair it produces a Decision describing the
// auto-reply, notifier post, and read-watermark update for the webhook
// handler to effect. The processor is pure with respect to HTTP: it
// depends only on a repository and the keyword classifier, so this logic
// is testable without an HTTP runtime.
package inbound

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/organizer/sanctuary/internal/apierr"
	"github.com/organizer/sanctuary/internal/keyword"
	"github.com/organizer/sanctuary/internal/models"
	"github.com/organizer/sanctuary/internal/repository"
)

const (
	replyAlreadySubscribed = "You're already subscribed."
	replyNotSubscribed     = "You're not currently subscribed."
)

// Notification is the notifier-post side effect of a Decision. ThreadRef
// is the thread to post into if the subscriber already has one;
// SubscriberID, when non-empty, tells the caller to persist the
// notifier's returned thread reference back onto that subscriber the
// first time one is minted (first-write-wins).
type Notification struct {
	Text         string
	ThreadRef    string
	SubscriberID string
}

// Decision is the effect set the webhook handler must apply.
type Decision struct {
	AutoReply      string
	HasAutoReply   bool
	Notify         *Notification
	MarkReadNow    bool
	SubscriberID   string
	PersistInbound bool

	// NotifyAdminSMS flags a conversational reply from an active
	// subscriber as warranting a courtesy SMS to the operator, on top of
	// the chat notifier post. Only set when SubscriberID identifies a
	// real conversation to link to.
	NotifyAdminSMS bool
}

// Processor executes the inbound-message state machine.
type Processor struct {
	store  *repository.Store
	locks  *PhoneLocks
	logger *slog.Logger
}

func New(store *repository.Store, logger *slog.Logger) *Processor {
	return &Processor{
		store:  store,
		locks:  NewPhoneLocks(),
		logger: logger,
	}
}

// Process runs the full state machine for one inbound webhook delivery.
// Every path that returns without error persists the inbound Message row
// first. An invalid phone, or a subscriber lookup/write failure, aborts
// and returns an error before the row is written; notifier/gateway failures are the
// caller's concern (Decision only ever carries text to attempt).
func (p *Processor) Process(ctx context.Context, fromPhone, body string) (Decision, error) {
	if !ValidPhone(fromPhone) {
		return Decision{}, apierr.InvalidInput("invalid phone number: %s", fromPhone)
	}

	unlock := p.locks.Lock(fromPhone)
	defer unlock()

	intent, err := keyword.Classify(ctx, body, func(ctx context.Context, normalized string) (*models.SignupKeyword, error) {
		return p.store.Keywords.FindByKeyword(ctx, normalized)
	})
	if err != nil {
		return Decision{}, apierr.Internal("classify inbound body", err)
	}

	var decision Decision
	switch intent.Kind {
	case keyword.IntentOptIn:
		decision, err = p.handleOptIn(ctx, fromPhone, intent.Keyword)
	case keyword.IntentOptOut:
		decision, err = p.handleOptOut(ctx, fromPhone)
	default:
		decision, err = p.handleConversational(ctx, fromPhone, intent.Body)
	}
	if err != nil {
		return Decision{}, err
	}

	decision.PersistInbound = true
	if err := p.store.Messages.Create(ctx, &models.Message{
		PhoneNumber: fromPhone,
		Content:     body,
		Direction:   models.DirectionInbound,
	}); err != nil {
		return Decision{}, apierr.Internal("persist inbound message", err)
	}

	return decision, nil
}

func (p *Processor) handleOptIn(ctx context.Context, phone string, kw *models.SignupKeyword) (Decision, error) {
	sub, err := p.store.Subscribers.FindByPhone(ctx, phone)
	if err != nil {
		return Decision{}, err
	}

	var decision Decision
	switch {
	case sub == nil:
		autoReply := kw.AutoResponse
		if strings.TrimSpace(autoReply) == "" {
			cfg, err := p.store.Config.Get(ctx)
			if err != nil {
				return Decision{}, err
			}
			autoReply = cfg.DefaultWelcomeMessage
		}
		sub = &models.Subscriber{
			PhoneNumber:      phone,
			IsActive:         true,
			JoinedAt:         time.Now().UTC(),
			JoinedViaKeyword: &kw.Keyword,
		}
		if err := p.store.Subscribers.Create(ctx, sub); err != nil {
			return Decision{}, err
		}
		decision = Decision{
			AutoReply:    autoReply,
			HasAutoReply: true,
			Notify:       &Notification{Text: fmt.Sprintf("new subscriber joined via %s", kw.Keyword)},
			MarkReadNow:  true,
			SubscriberID: sub.ID,
		}

	case sub.IsActive:
		decision = Decision{
			AutoReply:    replyAlreadySubscribed,
			HasAutoReply: true,
			MarkReadNow:  true,
			SubscriberID: sub.ID,
		}

	default:
		autoReply := kw.AutoResponse
		if strings.TrimSpace(autoReply) == "" {
			cfg, err := p.store.Config.Get(ctx)
			if err != nil {
				return Decision{}, err
			}
			autoReply = cfg.DefaultWelcomeMessage
		}
		sub.IsActive = true
		sub.JoinedViaKeyword = &kw.Keyword
		if err := p.store.Subscribers.Update(ctx, sub); err != nil {
			return Decision{}, err
		}
		decision = Decision{
			AutoReply:    autoReply,
			HasAutoReply: true,
			Notify:       &Notification{Text: fmt.Sprintf("reactivated via %s", kw.Keyword)},
			MarkReadNow:  true,
			SubscriberID: sub.ID,
		}
	}

	if kw.ListID != nil {
		if err := p.store.Memberships.Enroll(ctx, sub.ID, *kw.ListID, "keyword:"+kw.Keyword); err != nil {
			p.logger.Warn("list auto-enrollment failed", "subscriber_id", sub.ID, "list_id", *kw.ListID, "error", err)
		}
	}

	return decision, nil
}

func (p *Processor) handleOptOut(ctx context.Context, phone string) (Decision, error) {
	sub, err := p.store.Subscribers.FindByPhone(ctx, phone)
	if err != nil {
		return Decision{}, err
	}

	if sub == nil || !sub.IsActive {
		return Decision{AutoReply: replyNotSubscribed, HasAutoReply: true}, nil
	}

	sub.IsActive = false
	if err := p.store.Subscribers.Update(ctx, sub); err != nil {
		return Decision{}, err
	}

	rejoinText, err := p.rejoinKeywordList(ctx)
	if err != nil {
		return Decision{}, err
	}

	return Decision{
		AutoReply:    fmt.Sprintf("You've been unsubscribed. Text %s to rejoin.", rejoinText),
		HasAutoReply: true,
		Notify:       &Notification{Text: "subscriber unsubscribed"},
		SubscriberID: sub.ID,
	}, nil
}

func (p *Processor) handleConversational(ctx context.Context, phone, body string) (Decision, error) {
	sub, err := p.store.Subscribers.FindByPhone(ctx, phone)
	if err != nil {
		return Decision{}, err
	}

	if sub != nil && sub.IsActive {
		notify := &Notification{
			Text:         fmt.Sprintf("message from %s: %s", FormatPhone(phone), body),
			SubscriberID: sub.ID,
		}
		if sub.NotifierThreadRef != nil {
			notify.ThreadRef = *sub.NotifierThreadRef
		}
		return Decision{SubscriberID: sub.ID, Notify: notify, NotifyAdminSMS: true}, nil
	}

	rejoinText, err := p.rejoinKeywordList(ctx)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		AutoReply:    fmt.Sprintf("Text %s to subscribe.", rejoinText),
		HasAutoReply: true,
	}, nil
}

// RecordNotifierThreadRef persists the notifier's returned thread ref the
// first time one is minted for a subscriber (first-write-wins). Safe to
// call unconditionally after a conversational notify; it is a no-op if
// the subscriber already has a thread ref.
func (p *Processor) RecordNotifierThreadRef(ctx context.Context, subscriberID, threadRef string) error {
	sub, err := p.store.Subscribers.FindByID(ctx, subscriberID)
	if err != nil {
		return err
	}
	if sub == nil || sub.NotifierThreadRef != nil {
		return nil
	}
	sub.NotifierThreadRef = &threadRef
	return p.store.Subscribers.Update(ctx, sub)
}

// MarkReadNow applies the best-effort read-watermark update requested by
// a Decision. Failures here must never poison the main webhook response.
func (p *Processor) MarkReadNow(ctx context.Context, subscriberID string) error {
	now := time.Now().UTC()
	return p.store.Subscribers.SetLastReadAt(ctx, subscriberID, &now)
}

func (p *Processor) rejoinKeywordList(ctx context.Context) (string, error) {
	keywords, err := p.store.Keywords.ActiveKeywords(ctx)
	if err != nil {
		return "", err
	}
	if len(keywords) == 0 {
		return "JOIN", nil
	}
	names := make([]string, len(keywords))
	for i, k := range keywords {
		names[i] = k.Keyword
	}
	return strings.Join(names, " or "), nil
}
