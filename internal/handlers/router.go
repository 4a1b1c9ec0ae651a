package handlers

import (
	"net/http"
	"strings"

	"merit/internal/config"
	"merit/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Handler struct {
	cfg         config.Config
	votes       Voter
	withdrawals Withdrawer
	investments Investments
	ledger      LedgerReader
	wallets     WalletReader
	quota       QuotaReader
	members     MembershipChecker
	audit       AuditReader
	stream      BalanceStream
	log         zerolog.Logger
}

func New(cfg config.Config, votes Voter, withdrawals Withdrawer, investments Investments, ledger LedgerReader, wallets WalletReader, quota QuotaReader, members MembershipChecker, audit AuditReader, stream BalanceStream, log zerolog.Logger) *Handler {
	return &Handler{
		cfg:         cfg,
		votes:       votes,
		withdrawals: withdrawals,
		investments: investments,
		ledger:      ledger,
		wallets:     wallets,
		quota:       quota,
		members:     members,
		audit:       audit,
		stream:      stream,
		log:         log,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   AllowedOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	authed := middleware.Auth(h.cfg.JWTSecret, false)

	router.With(authed).Get("/transaction", h.ListLegacyTransactions)
	router.With(authed).Post("/transaction", h.CreateLegacyTransaction)
	router.With(authed).Post("/votes", h.CreateVote)
	router.With(authed).Get("/wallets", h.ListWallets)
	router.With(authed).Get("/me/earnings", h.ListEarnings)
	router.With(authed, middleware.RequireCommunityMember(h.members, "communityId")).
		Get("/communities/{communityId}/wallet", h.GetCommunityWallet)
	router.With(authed).Post("/transactions/{uid}/withdrawals", h.WithdrawFromTransaction)
	router.With(authed).Get("/ledger/self-check", h.SelfCheck)

	router.Route("/publications/{slug}", func(r chi.Router) {
		r.Get("/investments", h.GetInvestments)
		r.Get("/pool/history", h.PoolHistory)
		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Post("/withdrawals", h.WithdrawFromPublication)
			r.Post("/investments", h.Invest)
			r.Post("/pool", h.EnablePool)
			r.Post("/pool/close", h.ClosePool)
			r.Post("/pool/return", h.ReturnPool)
		})
	})

	router.With(middleware.Auth(h.cfg.JWTSecret, true)).Get("/ws/balances", h.WSBalances)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

// AllowedOrigins splits the comma separated ALLOWED_ORIGINS setting.
func AllowedOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
