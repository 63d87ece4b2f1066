package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/organizer/sanctuary/internal/delivery"
	"github.com/organizer/sanctuary/internal/metrics"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

// handleInboundSMS processes a provider inbound-SMS webhook. Every error
// past the strict schema check is swallowed into an empty 200 XML
// response to avoid provider-side retry storms.
func (s *Server) handleInboundSMS(w http.ResponseWriter, r *http.Request) {
	metrics.IncWebhookReceived("sms")

	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	from := r.FormValue("From")
	to := r.FormValue("To")
	body := r.FormValue("Body")
	if from == "" || to == "" || body == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	ctx := r.Context()
	decision, err := s.processor.Process(ctx, from, body)
	if err != nil {
		s.logger.Warn("inbound processing failed", "from", from, "error", err)
		writeEmptyTwiML(w)
		return
	}

	if decision.Notify != nil {
		newThreadRef, err := s.notifier.Post(ctx, decision.Notify.Text, decision.Notify.ThreadRef)
		if err != nil {
			s.logger.Warn("notifier post failed", "error", err)
		} else if decision.Notify.SubscriberID != "" {
			if err := s.processor.RecordNotifierThreadRef(ctx, decision.Notify.SubscriberID, newThreadRef); err != nil {
				s.logger.Warn("persist notifier thread ref failed", "subscriber_id", decision.Notify.SubscriberID, "error", err)
			}
		}
	}

	if decision.MarkReadNow && decision.SubscriberID != "" {
		if err := s.processor.MarkReadNow(ctx, decision.SubscriberID); err != nil {
			s.logger.Warn("mark-read-now failed", "subscriber_id", decision.SubscriberID, "error", err)
		}
	}

	if decision.NotifyAdminSMS && decision.SubscriberID != "" {
		s.sendAdminCourtesySMS(ctx, decision.SubscriberID)
	}

	if decision.HasAutoReply {
		writeTwiMLMessage(w, decision.AutoReply)
		return
	}
	writeEmptyTwiML(w)
}

// handleDeliveryStatus processes a provider delivery-status callback.
// Always responds 200 JSON regardless of internal outcome.
func (s *Server) handleDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncWebhookReceived("delivery-status")

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}

	update := delivery.Update{
		ProviderMessageID: r.FormValue("MessageSid"),
		ProviderStatus:    r.FormValue("MessageStatus"),
		ErrorCode:         r.FormValue("ErrorCode"),
		ErrorMessage:      r.FormValue("ErrorMessage"),
	}

	if err := s.reconciler.Reconcile(r.Context(), update); err != nil {
		s.logger.Warn("delivery reconciliation failed", "provider_message_id", update.ProviderMessageID, "error", err)
		writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}

	metrics.IncDeliveryCallback(update.ProviderStatus)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleRedirect resolves a minted short code and issues a permanent
// redirect, or a 404 page if the code is unknown.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var subscriberID *string
	if sid := r.URL.Query().Get("sid"); sid != "" {
		subscriberID = &sid
	}

	outcome, err := s.redirector.Resolve(r.Context(), code, subscriberID)
	if err != nil {
		s.logger.Error("redirect resolution failed", "code", code, "error", err)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if !outcome.Found {
		metrics.IncLinkRedirect("not_found")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "<html><body><h1>Link not found</h1></body></html>")
		return
	}

	metrics.IncLinkRedirect("found")
	http.Redirect(w, r, outcome.OriginalURL, http.StatusPermanentRedirect)
}

// sendAdminCourtesySMS texts the operator a deep link into the
// conversation. A no-op unless both an admin phone number is configured
// and notifications haven't been disabled.
func (s *Server) sendAdminCourtesySMS(ctx context.Context, subscriberID string) {
	if s.adminPhoneNumber == "" || !s.adminSMSEnabled {
		return
	}
	link := fmt.Sprintf("%s/admin/conversations/%s", strings.TrimRight(s.baseURL, "/"), subscriberID)
	result := s.broadcaster.SendDirect(ctx, s.adminPhoneNumber, "New reply needs your attention: "+link)
	if !result.Success {
		s.logger.Warn("admin courtesy SMS failed", "subscriber_id", subscriberID, "error", result.Error)
	}
}

func writeTwiMLMessage(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%s<Response><Message>%s</Message></Response>", xmlHeader, escapeXML(text))
}

func writeEmptyTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%s<Response></Response>", xmlHeader)
}

func escapeXML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(s)
}
