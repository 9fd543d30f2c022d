package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Niranjjith/Department-portal/internal/auth"
	"github.com/Niranjjith/Department-portal/internal/config"
	"github.com/Niranjjith/Department-portal/internal/database"
	"github.com/Niranjjith/Department-portal/internal/handler"
	"github.com/Niranjjith/Department-portal/internal/repository"
	"github.com/Niranjjith/Department-portal/internal/session"
	"github.com/Niranjjith/Department-portal/internal/templates"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

type stores struct {
	users   repository.UserStore
	notes   repository.NoteStore
	notices repository.NoticeStore
	db      *sql.DB
}

func openStores(cfg config.DatabaseConfig, logger *slog.Logger) (stores, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("using in-memory stores; data is lost on restart")
		docs := repository.NewMemoryDocumentRepository()
		return stores{users: repository.NewMemoryUserRepository(), notes: docs, notices: docs}, nil
	}

	if err := database.Migrate(cfg); err != nil {
		return stores{}, err
	}
	db, err := database.InitDB(cfg)
	if err != nil {
		return stores{}, err
	}
	docs := repository.NewDocumentRepository(db)
	return stores{users: repository.NewUserRepository(db), notes: docs, notices: docs, db: db}, nil
}

// announceSetup logs a one-time setup link while the portal has no admin.
func announceSetup(ctx context.Context, svc *auth.Service, addr string, logger *slog.Logger) {
	token, err := svc.IssueSetupToken(ctx)
	if errors.Is(err, auth.ErrSetupCompleted) {
		return
	}
	if err != nil {
		logger.Error("issue setup token", "error", err)
		return
	}
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	logger.Warn("no admin account yet; open the setup link to create one",
		"url", "http://"+host+"/setup?token="+url.QueryEscape(token))
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer database.CloseDB(st.db)

	var rdb *redis.Client
	if cfg.Session.Backend == config.BackendRedis {
		rdb, err = database.InitRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("redis close", "error", err)
			}
		}()
	}

	store, err := session.NewStore(cfg.Session, cfg.Server.Secure, st.db, rdb, logger)
	if err != nil {
		return err
	}
	if cfg.Session.Backend == config.BackendPostgres {
		go session.NewPostgresBackend(st.db).Sweep(ctx, 15*time.Minute, logger)
	}

	svc := auth.NewService(st.users, cfg.Auth, logger)
	announceSetup(ctx, svc, cfg.Server.Addr, logger)

	tmpl, err := templates.Parse()
	if err != nil {
		return err
	}

	deps := handler.Deps{
		Auth:      svc,
		Users:     st.users,
		Notes:     st.notes,
		Notices:   st.notices,
		Sessions:  session.NewManager(store, cfg.Session.Name),
		Templates: tmpl,
		Logger:    logger,
		CSRF:      cfg.CSRF,
		Secure:    cfg.Server.Secure,
	}
	if st.db != nil {
		deps.DB = st.db
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
