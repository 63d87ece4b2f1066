// Package broadcast implements the fan-out pipeline: resolve an audience
// by include/exclude list algebra, tokenize links, and send to every
// recipient via the telephony gateway, recording a per-recipient Message
// row for each attempt.
package broadcast

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/organizer/sanctuary/internal/apierr"
	"github.com/organizer/sanctuary/internal/gateway"
	"github.com/organizer/sanctuary/internal/linktok"
	"github.com/organizer/sanctuary/internal/metrics"
	"github.com/organizer/sanctuary/internal/models"
	"github.com/organizer/sanctuary/internal/repository"
)

// costPerSegment is the fixed carrier rate used to estimate a broadcast's
// total cost.
const costPerSegment = 0.0083

// maxRecipientConcurrency bounds the BroadcastEngine's worker pool so a
// large audience cannot exhaust the database connection pool.
const maxRecipientConcurrency = 8

const maxDraftLength = 1600

// Request describes one broadcast send. TestPhone, when set, routes the
// send to a single explicit number instead of resolving the list-based
// audience, for a one-off test send to a single recipient.
type Request struct {
	DraftMessage   string
	CampaignName   string
	ApprovedURLs   []string
	TargetAll      bool
	TargetListIDs  []string
	ExcludeListIDs []string
	TestPhone      string
}

// RecipientResult records the outcome of one send attempt.
type RecipientResult struct {
	Phone             string
	Success           bool
	ProviderMessageID string
	Error             string
}

// Summary is the pipeline's result.
type Summary struct {
	BroadcastID        string
	CampaignName       string
	SentTo             int
	Failed             int
	TotalCost          float64
	SegmentCount       int
	LinksTracked       int
	TargetAll          bool
	TargetedListCount  int
	Results            []RecipientResult
	Errors             []string
}

// Engine runs the broadcast pipeline.
type Engine struct {
	store     *repository.Store
	gateway   gateway.SMSGateway
	tokenizer *linktok.Tokenizer
	logger    *slog.Logger
}

func New(store *repository.Store, gw gateway.SMSGateway, tokenizer *linktok.Tokenizer, logger *slog.Logger) *Engine {
	return &Engine{store: store, gateway: gw, tokenizer: tokenizer, logger: logger}
}

// Send validates the request, resolves the audience, tokenizes links, and
// fans out the send across a bounded worker pool.
func (e *Engine) Send(ctx context.Context, req Request) (Summary, error) {
	if err := validate(req); err != nil {
		return Summary{}, err
	}

	audience, err := e.resolveAudience(ctx, req)
	if err != nil {
		return Summary{}, err
	}
	if len(audience) == 0 {
		return Summary{}, apierr.InvalidInput("broadcast audience is empty")
	}

	segments := segmentCount(req.DraftMessage)
	totalCost := float64(segments) * float64(len(audience)) * costPerSegment

	campaignName := req.CampaignName
	if req.TestPhone != "" {
		campaignName = "[TEST] " + campaignName
	}
	var name *string
	if campaignName != "" {
		name = &campaignName
	}
	b := &models.Broadcast{
		Name:      name,
		Message:   req.DraftMessage,
		TargetAll: req.TargetAll,
		TotalCost: totalCost,
	}

	broadcastID := ""
	if err := e.store.Broadcasts.Create(ctx, b); err != nil {
		e.logger.Warn("broadcast header insert failed, continuing without analytics tracking", "error", err)
	} else {
		broadcastID = b.ID
		e.recordTargets(ctx, broadcastID, req)
	}

	body := req.DraftMessage
	linksTracked := 0
	if broadcastID != "" {
		result := e.tokenizer.Tokenize(ctx, req.DraftMessage, broadcastID, toSet(req.ApprovedURLs))
		body = result.Body
		linksTracked = len(result.Links)
	}

	metrics.IncBroadcastSent()
	results, sentTo, failed := e.sendToAudience(ctx, audience, body, broadcastID)

	if broadcastID != "" {
		if err := e.store.Broadcasts.UpdateSentCount(ctx, broadcastID, sentTo); err != nil {
			e.logger.Warn("broadcast sent_count update failed", "broadcast_id", broadcastID, "error", err)
		}
	}

	var errs []string
	for _, r := range results {
		if !r.Success {
			errs = append(errs, r.Phone+": "+r.Error)
		}
	}

	return Summary{
		BroadcastID:       broadcastID,
		CampaignName:      campaignName,
		SentTo:            sentTo,
		Failed:            failed,
		TotalCost:         totalCost,
		SegmentCount:      segments,
		LinksTracked:      linksTracked,
		TargetAll:         req.TargetAll,
		TargetedListCount: len(req.TargetListIDs),
		Results:           results,
		Errors:            errs,
	}, nil
}

func validate(req Request) error {
	if req.DraftMessage == "" {
		return apierr.InvalidInput("message must not be empty")
	}
	if len(req.DraftMessage) > maxDraftLength {
		return apierr.InvalidInput("message exceeds %d characters", maxDraftLength)
	}
	if req.TestPhone != "" {
		return nil
	}
	if !req.TargetAll && len(req.TargetListIDs) == 0 && len(req.ExcludeListIDs) == 0 {
		return apierr.InvalidInput("specify targetAll, targetListIds, or excludeListIds")
	}
	return nil
}

// resolveAudience computes INCLUDE \ EXCLUDE over active subscribers,
// stable-ordered by joinedAt ascending. A TestPhone request bypasses list
// resolution entirely.
func (e *Engine) resolveAudience(ctx context.Context, req Request) ([]*models.Subscriber, error) {
	if req.TestPhone != "" {
		return []*models.Subscriber{{PhoneNumber: req.TestPhone}}, nil
	}

	var include []*models.Subscriber
	var err error
	if req.TargetAll || len(req.TargetListIDs) == 0 {
		include, err = e.store.Subscribers.ActiveSubscribers(ctx)
	} else {
		include, err = e.store.Subscribers.ActiveSubscribersInLists(ctx, req.TargetListIDs)
	}
	if err != nil {
		return nil, apierr.Internal("resolve audience", err)
	}

	exclude, err := e.store.Subscribers.SubscriberIDsInLists(ctx, req.ExcludeListIDs)
	if err != nil {
		return nil, apierr.Internal("resolve exclude set", err)
	}
	if len(exclude) == 0 {
		return include, nil
	}

	audience := include[:0:0]
	for _, s := range include {
		if !exclude[s.ID] {
			audience = append(audience, s)
		}
	}
	return audience, nil
}

func (e *Engine) recordTargets(ctx context.Context, broadcastID string, req Request) {
	for _, listID := range req.TargetListIDs {
		if err := e.store.Broadcasts.AddTarget(ctx, models.BroadcastTarget{BroadcastID: broadcastID, ListID: listID, Type: models.TargetInclude}); err != nil {
			e.logger.Warn("broadcast target insert failed", "list_id", listID, "error", err)
		}
	}
	for _, listID := range req.ExcludeListIDs {
		if err := e.store.Broadcasts.AddTarget(ctx, models.BroadcastTarget{BroadcastID: broadcastID, ListID: listID, Type: models.TargetExclude}); err != nil {
			e.logger.Warn("broadcast target insert failed", "list_id", listID, "error", err)
		}
	}
}

// sendToAudience fans out the send across a bounded worker pool. Message
// insert order need not match send order; results are collected under a
// mutex and returned in audience order for a deterministic summary.
func (e *Engine) sendToAudience(ctx context.Context, audience []*models.Subscriber, body, broadcastID string) ([]RecipientResult, int, int) {
	results := make([]RecipientResult, len(audience))

	var mu sync.Mutex
	sentTo, failed := 0, 0

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxRecipientConcurrency)

	for i, sub := range audience {
		i, sub := i, sub
		group.Go(func() error {
			result := e.sendOne(gctx, sub.PhoneNumber, body, broadcastID)
			mu.Lock()
			results[i] = result
			if result.Success {
				sentTo++
			} else {
				failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	return results, sentTo, failed
}

// SendDirect sends body to a single phone number outside the broadcast
// pipeline, logging a single outbound Message row without minting a
// Broadcast header.
func (e *Engine) SendDirect(ctx context.Context, phone, body string) RecipientResult {
	return e.sendOne(ctx, phone, body, "")
}

func (e *Engine) sendOne(ctx context.Context, phone, body, broadcastID string) RecipientResult {
	var broadcastRef *string
	if broadcastID != "" {
		broadcastRef = &broadcastID
	}

	providerID, status, err := e.gateway.Send(ctx, phone, body)
	msg := &models.Message{
		PhoneNumber: phone,
		Content:     body,
		Direction:   models.DirectionOutbound,
		BroadcastID: broadcastRef,
	}
	if err != nil {
		msg.DeliveryStatus = models.DeliveryFailed
		if writeErr := e.store.Messages.Create(ctx, msg); writeErr != nil {
			e.logger.Warn("per-recipient message log failed", "phone", phone, "error", writeErr)
		}
		metrics.IncBroadcastRecipient("failed")
		return RecipientResult{Phone: phone, Success: false, Error: err.Error()}
	}

	msg.ProviderMessageID = &providerID
	msg.DeliveryStatus = initialDeliveryStatus(status)
	if writeErr := e.store.Messages.Create(ctx, msg); writeErr != nil {
		e.logger.Warn("per-recipient message log failed", "phone", phone, "error", writeErr)
	}
	metrics.IncBroadcastRecipient("sent")
	return RecipientResult{Phone: phone, Success: true, ProviderMessageID: providerID}
}

func initialDeliveryStatus(providerStatus string) models.DeliveryStatus {
	switch providerStatus {
	case "delivered":
		return models.DeliveryDelivered
	case "failed":
		return models.DeliveryFailed
	case "undelivered":
		return models.DeliveryUndelivered
	default:
		return models.DeliverySent
	}
}

// segmentCount counts SMS segments: an empty body still counts as one
// segment, otherwise ceil(len/160).
func segmentCount(body string) int {
	if len(body) == 0 {
		return 1
	}
	return int(math.Ceil(float64(len(body)) / 160))
}

func toSet(values []string) map[string]bool {
	if values == nil {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
