package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"merit/internal/config"
	"merit/internal/db"
	"merit/internal/handlers"
	"merit/internal/logger"
	"merit/internal/quota"
	"merit/internal/services"
	"merit/internal/store"
	"merit/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "production")
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.AppEnv)

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	defer database.Close()

	wallets := store.NewWalletStore(database)
	ledger := store.NewLedgerStore(database)
	locks := store.NewLockStore()
	communities := store.NewCommunityCache(store.NewCommunityStore(database), cfg.CommunityCacheTTL)
	members := store.NewMembershipStore(database)
	publications := store.NewPublicationStore(database)
	pools := store.NewInvestmentStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()
	quotas := quota.NewManager(communities, ledger, cfg.Location())

	votes := services.NewVoteService(txRunner, wallets, locks, ledger, quotas, communities, publications, members, hub, log)
	investments := services.NewInvestmentService(txRunner, pools, wallets, locks, ledger, communities, publications, members, audit, hub, log)
	withdrawals := services.NewWithdrawalService(txRunner, wallets, locks, ledger, communities, publications, investments, audit, hub, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resumed, err := investments.ResumeAll(ctx)
	if err != nil {
		log.Error().Err(err).Int("distributions", resumed).Msg("some pool payouts are still pending")
	} else if resumed > 0 {
		log.Info().Int("distributions", resumed).Msg("resumed interrupted pool payouts")
	}

	origins := handlers.AllowedOrigins(cfg.AllowedOrigins)
	wsOrigins := origins
	if slices.Contains(origins, "*") {
		wsOrigins = nil
	}
	stream := websocket.NewServer(hub, wsOrigins, log)

	handler := handlers.New(cfg, votes, withdrawals, investments, ledger, wallets, quotas, members, audit, stream, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("quota_timezone", cfg.QuotaTimezone).Msg("merit API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
		os.Exit(1)
	}
}
