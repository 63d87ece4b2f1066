package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/organizer/sanctuary/internal/inbox"
)

func (s *Server) handleInboxList(w http.ResponseWriter, r *http.Request) {
	filter := inbox.Filter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = inbox.FilterAll
	}
	search := r.URL.Query().Get("search")
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	entries, err := s.inbox.List(r.Context(), filter, search, limit, offset)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversations": entries})
}

func (s *Server) handleInboxStats(w http.ResponseWriter, r *http.Request) {
	unreadCount, err := s.inbox.UnreadCount(r.Context())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	total, err := s.store.Subscribers.CountActive(r.Context())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unreadCount": unreadCount, "totalConversations": total})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.inbox.MarkRead(r.Context(), id); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMarkUnread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.inbox.MarkUnread(r.Context(), id); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := s.inbox.MarkAllRead(r.Context()); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
