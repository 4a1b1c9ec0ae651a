package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"merit/internal/config"
	"merit/internal/db"
	"merit/internal/logger"
	"merit/internal/migration"
	"merit/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openApp, os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openApp connects to the database and builds both migrations on the real stores.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.LogLevel, cfg.AppEnv)

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, err
	}

	txRunner := db.NewTxRunner(database)
	wallets := store.NewWalletStore(database)
	communities := store.NewCommunityStore(database)
	audit := store.NewAuditStore(database)

	return &app{
		cfg:                cfg,
		log:                log,
		globalMerit:        migration.NewGlobalMerit(txRunner, wallets, communities, store.NewLockStore(), audit, log),
		votingRestrictions: migration.NewVotingRestrictions(txRunner, communities, nil, audit, log),
		close:              database.Close,
	}, nil
}
