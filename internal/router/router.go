package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Kwabena/Talaria/internal/audit"
	"github.com/Kwabena/Talaria/internal/escrow"
	"github.com/Kwabena/Talaria/internal/ledger"
	"github.com/Kwabena/Talaria/internal/middleware"
	"github.com/Kwabena/Talaria/internal/payout"
	"github.com/Kwabena/Talaria/internal/server"
	"github.com/Kwabena/Talaria/internal/webhook"
)

type Handlers struct {
	Escrow  *escrow.EscrowHandler
	Payout  *payout.PayoutHandler
	Ledger  *ledger.LedgerHandler
	Audit   *audit.AuditHandler
	Webhook *webhook.WebhookHandler
}

func NewRouter(s *server.Server, h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	mw := middleware.NewMiddlewares(s)

	// Apply middleware in order
	r.Use(middleware.RequestID)
	r.Use(mw.Tracing.NewRelicMiddleware())
	r.Use(mw.Tracing.EnhanceTracing)
	r.Use(mw.ContextEnhancer.EnhanceContext)
	r.Use(mw.Global.RequestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.Db.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Gateway deliveries authenticate by signature, not actor headers.
	r.Post("/webhooks/{gateway}", h.Webhook.HandleWebhook)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor)
		r.Use(mw.RateLimit.Limit)

		r.Route("/escrows", func(r chi.Router) {
			r.Post("/", h.Escrow.CreateEscrow)
			r.Get("/{escrowID}", h.Escrow.GetEscrow)
			r.Post("/{escrowID}/fund", h.Escrow.ConfirmFunding)
			r.Post("/{escrowID}/release", h.Escrow.Release)
			r.Post("/{escrowID}/refund", h.Escrow.Refund)
			r.Post("/{escrowID}/dispute", h.Escrow.Dispute)
			r.Post("/{escrowID}/resolve", h.Escrow.ResolveDispute)
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Post("/", h.Payout.RequestPayout)
			r.Get("/batch", h.Payout.GetBatch)
			r.Get("/{payoutID}", h.Payout.GetPayout)
			r.Post("/{payoutID}/ready", h.Payout.MarkReady)
			r.Post("/{payoutID}/confirm", h.Payout.Confirm)
			r.Post("/{payoutID}/fail", h.Payout.Fail)
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/{userID}", h.Ledger.GetWallet)
			r.Get("/{userID}/transactions", h.Ledger.ListTransactions)
		})

		r.Get("/audit", h.Audit.Search)
	})

	return r
}
