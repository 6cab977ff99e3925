package main

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"groups/grouper"
)

//go:embed schema.sql
var schema string

type config struct {
	pgConn           string
	clientID         string
	clientSecret     string
	admins           []string
	listenAddr       string
	defaultGroupSize int
	logDev           bool
}

func loadConfig(getenv func(string) string) (config, error) {
	for _, key := range []string{"PGCONN", "CLIENT_ID", "CLIENT_SECRET", "ADMINS"} {
		if getenv(key) == "" {
			return config{}, fmt.Errorf("%s environment variable is required", key)
		}
	}
	cfg := config{
		pgConn:           getenv("PGCONN"),
		clientID:         getenv("CLIENT_ID"),
		clientSecret:     getenv("CLIENT_SECRET"),
		listenAddr:       ":8080",
		defaultGroupSize: 3,
		logDev:           getenv("LOG_DEV") == "1",
	}
	for _, a := range strings.Split(getenv("ADMINS"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			cfg.admins = append(cfg.admins, a)
		}
	}
	if v := getenv("LISTEN_ADDR"); v != "" {
		cfg.listenAddr = v
	}
	if v := getenv("DEFAULT_GROUP_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return config{}, fmt.Errorf("DEFAULT_GROUP_SIZE: %w", err)
		}
		if n < grouper.MinGroupSize || n > grouper.MaxGroupSize {
			return config{}, fmt.Errorf("DEFAULT_GROUP_SIZE: %w", grouper.ErrGroupSize)
		}
		cfg.defaultGroupSize = n
	}
	return cfg, nil
}

func newLogger(cfg config) (*zap.Logger, error) {
	if cfg.logDev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newMux(cfg config, db *sql.DB, rs roster, rw *rosterWatcher, logger *zap.Logger) *http.ServeMux {
	a := newAuthenticator(cfg)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/google/callback", handleGoogleCallback(a, logger))
	mux.HandleFunc("GET /api/admin/check", handleAdminCheck(a))
	mux.HandleFunc("GET /api/students", handleListStudents(rs))
	mux.HandleFunc("POST /api/students", handleCreateStudent(rs, a, logger))
	mux.HandleFunc("DELETE /api/students", handleClearStudents(rs, a, logger))
	mux.HandleFunc("DELETE /api/students/{studentID}", handleDeleteStudent(rs, a))
	mux.HandleFunc("GET /api/cases", handleListCases(rs))
	mux.HandleFunc("POST /api/cases", handleCreateCase(rs, a))
	mux.HandleFunc("DELETE /api/cases/{name}", handleDeleteCase(rs, a))
	mux.HandleFunc("POST /api/groups", handleBuildGroups(rs, cfg.defaultGroupSize, logger))
	mux.HandleFunc("GET /api/groups/export", handleExportGroups(rs, cfg.defaultGroupSize, logger))
	mux.HandleFunc("GET /api/events", handleEvents(rw))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "db unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		fmt.Fprintln(w, "ok")
	})
	return mux
}

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := sql.Open("postgres", cfg.pgConn)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	logger.Info("connected to database")

	if _, err := db.Exec(schema); err != nil {
		logger.Fatal("failed to apply schema", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rw := newRosterWatcher(logger)
	listener, err := listenRoster(ctx, cfg.pgConn, logger)
	if err != nil {
		logger.Fatal("failed to listen for roster changes", zap.Error(err))
	}
	defer listener.Close()
	go rw.forward(ctx, listener.Notify)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           newMux(cfg, db, newRosterStore(db), rw, logger),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.listenAddr), zap.Int("default_group_size", cfg.defaultGroupSize))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("shut down")
}
