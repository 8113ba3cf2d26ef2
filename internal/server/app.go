// Package server initializes and runs the chat relay server. It opens the
// database, runs migrations, wires the services and starts the TLS endpoint
// and the UDP discovery responder, handling graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/chatrelay/internal/logging"
	"github.com/dmitrijs2005/chatrelay/internal/server/config"
	"github.com/dmitrijs2005/chatrelay/internal/server/registry"
	"github.com/dmitrijs2005/chatrelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chatrelay/internal/server/services"
	"github.com/dmitrijs2005/chatrelay/internal/server/transport"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	server    *transport.Server
	discovery *transport.Discovery
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slog)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	reg := registry.New()

	us := services.NewUserService(db, m, cfg)
	ms := services.NewMessageService(db, m, reg, logger, cfg)
	gs := services.NewGroupService(db, m)

	srv, err := transport.NewServer(cfg, logger, us, ms, gs, reg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("server init error: %w", err)
	}

	disc := transport.NewDiscovery(cfg, logger)

	return &App{
		config:    cfg,
		logger:    logger,
		db:        db,
		server:    srv,
		discovery: disc,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.discovery.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}

	app.logger.Info(ctx, "App stopped")
}
