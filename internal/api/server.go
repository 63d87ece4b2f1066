// Package api wires the HTTP surface onto the domain components: inbound
// webhook handling, short-link redirects, broadcast sends, inbox
// projection, and keyword/list/subscriber administration.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/organizer/sanctuary/internal/admin"
	"github.com/organizer/sanctuary/internal/broadcast"
	"github.com/organizer/sanctuary/internal/delivery"
	"github.com/organizer/sanctuary/internal/inbound"
	"github.com/organizer/sanctuary/internal/inbox"
	"github.com/organizer/sanctuary/internal/metrics"
	"github.com/organizer/sanctuary/internal/redirect"
	"github.com/organizer/sanctuary/internal/repository"
)

// Server is the HTTP API server mounting every endpoint of this service.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	addr       string
	apiKey     string
	logger     *slog.Logger
	startTime  time.Time

	store       *repository.Store
	processor   *inbound.Processor
	broadcaster *broadcast.Engine
	redirector  *redirect.Redirector
	reconciler  *delivery.Reconciler
	inbox       *inbox.Projector
	admin       *admin.Admin
	notifier    notifierPoster

	requireWebhookSignature bool
	webhookSigningSecret    string

	adminPhoneNumber string
	adminSMSEnabled  bool
	baseURL          string
}

// notifierPoster is the subset of notifier.Notifier the webhook handler
// needs, kept local so Server doesn't import a concrete implementation.
type notifierPoster interface {
	Post(ctx context.Context, text string, threadRef string) (newThreadRef string, err error)
}

// Deps bundles the components Server fans inbound HTTP requests out to.
type Deps struct {
	Store       *repository.Store
	Processor   *inbound.Processor
	Broadcaster *broadcast.Engine
	Redirector  *redirect.Redirector
	Reconciler  *delivery.Reconciler
	Inbox       *inbox.Projector
	Admin       *admin.Admin
	Notifier    notifierPoster

	// RequireWebhookSignature gates the inbound SMS and delivery-status
	// webhooks behind a signature check, defaulting to enabled in
	// production. WebhookSigningSecret is the shared secret used to verify it; a
	// signature check with an empty secret always fails closed.
	RequireWebhookSignature bool
	WebhookSigningSecret    string

	// AdminPhoneNumber, when non-empty and AdminSMSEnabled, receives a
	// courtesy SMS with a deep link for every conversational inbound
	// message from an active subscriber. BaseURL prefixes that link.
	AdminPhoneNumber string
	AdminSMSEnabled  bool
	BaseURL          string
}

// NewServer builds the router and wraps it in an HTTP server listening on
// addr. apiKey, when non-empty, gates every administrative route behind
// bearer auth; an empty apiKey disables auth for local development.
func NewServer(addr, apiKey string, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		addr:                    addr,
		apiKey:                  apiKey,
		logger:                  logger,
		startTime:               time.Now(),
		store:                   deps.Store,
		processor:               deps.Processor,
		broadcaster:             deps.Broadcaster,
		redirector:              deps.Redirector,
		reconciler:              deps.Reconciler,
		inbox:                   deps.Inbox,
		admin:                   deps.Admin,
		notifier:                deps.Notifier,
		requireWebhookSignature: deps.RequireWebhookSignature,
		webhookSigningSecret:    deps.WebhookSigningSecret,
		adminPhoneNumber:        deps.AdminPhoneNumber,
		adminSMSEnabled:         deps.AdminSMSEnabled,
		baseURL:                 deps.BaseURL,
	}
	s.router = chi.NewRouter()
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.HTTPMiddleware)

	s.router.Get("/health", s.handleHealth)

	s.router.With(s.webhookSignatureMiddleware).Post("/api/webhooks/sms", s.handleInboundSMS)
	s.router.With(s.webhookSignatureMiddleware).Post("/api/webhooks/delivery-status", s.handleDeliveryStatus)
	s.router.Get("/sanctuary/{code}", s.handleRedirect)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/broadcast", s.handleBroadcastSend)
		r.Post("/broadcast/test", s.handleBroadcastTest)

		r.Get("/inbox", s.handleInboxList)
		r.Get("/inbox/stats", s.handleInboxStats)
		r.Post("/conversations/{id}/mark-read", s.handleMarkRead)
		r.Post("/conversations/{id}/mark-unread", s.handleMarkUnread)
		r.Post("/conversations/mark-all-read", s.handleMarkAllRead)

		r.Route("/keywords", func(r chi.Router) {
			r.Get("/", s.handleListKeywords)
			r.Post("/", s.handleCreateKeyword)
			r.Put("/{id}", s.handleUpdateKeyword)
			r.Delete("/{id}", s.handleDeleteKeyword)
		})

		r.Route("/lists", func(r chi.Router) {
			r.Get("/", s.handleListLists)
			r.Post("/", s.handleCreateList)
			r.Put("/{id}", s.handleUpdateList)
			r.Delete("/{id}", s.handleDeleteList)
			r.Get("/{id}/members", s.handleListMembers)
			r.Post("/{id}/members", s.handleAddListMember)
			r.Delete("/{id}/members/{subscriberId}", s.handleRemoveListMember)
		})

		r.Route("/subscribers", func(r chi.Router) {
			r.Get("/", s.handleListSubscribers)
			r.Post("/", s.handleCreateSubscriber)
			r.Post("/bulk", s.handleBulkImportSubscribers)
			r.Get("/{id}", s.handleGetSubscriber)
			r.Put("/{id}", s.handleUpdateSubscriber)
			r.Get("/{id}/messages", s.handleSubscriberMessages)
			r.Post("/{id}/reply", s.handleSubscriberReply)
		})

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)

		r.Get("/analytics", s.handleAnalytics)
		r.Get("/dashboard/stats", s.handleDashboardStats)
		r.Get("/dashboard/messages", s.handleDashboardMessages)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info("starting HTTP API server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
