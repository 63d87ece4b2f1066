package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/organizer/sanctuary/internal/apierr"
	"github.com/organizer/sanctuary/internal/models"
)

// --- keywords ---

func (s *Server) handleListKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := s.store.Keywords.All(r.Context())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keywords": keywords})
}

func (s *Server) handleCreateKeyword(w http.ResponseWriter, r *http.Request) {
	var kw models.SignupKeyword
	if err := json.NewDecoder(r.Body).Decode(&kw); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.admin.CreateKeyword(r.Context(), &kw); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, kw)
}

func (s *Server) handleUpdateKeyword(w http.ResponseWriter, r *http.Request) {
	var kw models.SignupKeyword
	if err := json.NewDecoder(r.Body).Decode(&kw); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kw.ID = chi.URLParam(r, "id")
	if err := s.admin.UpdateKeyword(r.Context(), &kw); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, kw)
}

func (s *Server) handleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Keywords.Delete(r.Context(), id); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- lists ---

func (s *Server) handleListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.store.Lists.All(r.Context())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lists": lists})
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var list models.SubscriberList
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.store.Lists.Create(r.Context(), &list); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

func (s *Server) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	var list models.SubscriberList
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	list.ID = chi.URLParam(r, "id")
	if err := s.store.Lists.Update(r.Context(), &list); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.admin.DeleteList(r.Context(), id); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "id")
	phones, err := s.store.Memberships.PhonesByList(r.Context(), listID)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": phones})
}

type addMemberRequest struct {
	SubscriberID string `json:"subscriberId"`
}

func (s *Server) handleAddListMember(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "id")
	var body addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SubscriberID == "" {
		writeJSONError(w, http.StatusBadRequest, "subscriberId is required")
		return
	}
	if err := s.store.Memberships.Enroll(r.Context(), body.SubscriberID, listID, "manual"); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleRemoveListMember(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "id")
	subscriberID := chi.URLParam(r, "subscriberId")
	if err := s.store.Memberships.Remove(r.Context(), subscriberID, listID); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- subscribers ---

func (s *Server) handleListSubscribers(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	subs, err := s.store.Subscribers.List(r.Context(), search, limit, offset)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscribers": subs})
}

func (s *Server) handleCreateSubscriber(w http.ResponseWriter, r *http.Request) {
	var sub models.Subscriber
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sub.IsActive = true
	if err := s.store.Subscribers.Create(r.Context(), &sub); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type bulkImportRequest struct {
	Phones []string `json:"phones"`
	ListID *string  `json:"listId"`
}

func (s *Server) handleBulkImportSubscribers(w http.ResponseWriter, r *http.Request) {
	var body bulkImportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	results, err := s.admin.BulkImportSubscribers(r.Context(), body.Phones, body.ListID)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleGetSubscriber(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.store.Subscribers.FindByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	if sub == nil {
		writeDomainError(w, s.logger, apierr.NotFound("subscriber %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleUpdateSubscriber(w http.ResponseWriter, r *http.Request) {
	var sub models.Subscriber
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sub.ID = chi.URLParam(r, "id")
	if err := s.store.Subscribers.Update(r.Context(), &sub); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleSubscriberMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.store.Subscribers.FindByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	if sub == nil {
		writeDomainError(w, s.logger, apierr.NotFound("subscriber %s not found", id))
		return
	}

	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	messages, err := s.store.Messages.ByPhone(r.Context(), sub.PhoneNumber, limit, offset)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type subscriberReplyRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSubscriberReply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.store.Subscribers.FindByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	if sub == nil {
		writeDomainError(w, s.logger, apierr.NotFound("subscriber %s not found", id))
		return
	}

	var body subscriberReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	result := s.broadcaster.SendDirect(r.Context(), sub.PhoneNumber, body.Message)
	if !result.Success {
		writeDomainError(w, s.logger, apierr.Dependency("reply send failed: %s", result.Error))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "providerMessageId": result.ProviderMessageID})
}

// --- settings ---

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Config.Get(r.Context())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var cfg models.AppConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.store.Config.Update(r.Context(), &cfg); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// --- analytics / dashboard ---

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	broadcasts, err := s.store.Broadcasts.Recent(r.Context(), 20)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	type broadcastStats struct {
		*models.Broadcast
		ClickCount int `json:"clickCount"`
	}
	stats := make([]broadcastStats, 0, len(broadcasts))
	for _, b := range broadcasts {
		links, err := s.store.Links.ByBroadcast(r.Context(), b.ID)
		if err != nil {
			writeDomainError(w, s.logger, err)
			return
		}
		clicks := 0
		for _, l := range links {
			n, err := s.store.Links.ClickCount(r.Context(), l.ID)
			if err != nil {
				writeDomainError(w, s.logger, err)
				return
			}
			clicks += n
		}
		stats = append(stats, broadcastStats{Broadcast: b, ClickCount: clicks})
	}

	writeJSON(w, http.StatusOK, map[string]any{"broadcasts": stats})
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	activeSubscribers, err := s.store.Subscribers.CountActive(r.Context())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	lists, err := s.store.Lists.All(r.Context())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	unreadCount, err := s.inbox.UnreadCount(r.Context())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	recentBroadcasts, err := s.store.Broadcasts.Recent(r.Context(), 5)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activeSubscribers": activeSubscribers,
		"totalLists":        len(lists),
		"unreadCount":       unreadCount,
		"recentBroadcasts":  recentBroadcasts,
	})
}

func (s *Server) handleDashboardMessages(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	messages, err := s.store.Messages.Recent(r.Context(), limit)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}
