// Command sitetrackd is the sitetrack server daemon.
// It loads the project seed, opens the activity log and serves the REST API
// and the SSE event stream until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCodeAlone/sitetrack/activity"
	"github.com/GoCodeAlone/sitetrack/config"
	"github.com/GoCodeAlone/sitetrack/events"
	"github.com/GoCodeAlone/sitetrack/internal/version"
	"github.com/GoCodeAlone/sitetrack/project"
	"github.com/GoCodeAlone/sitetrack/provider"
	"github.com/GoCodeAlone/sitetrack/server"
	"github.com/GoCodeAlone/sitetrack/suggest"
)

var configPath = flag.String("config", "sitetrack.yaml", "path to YAML config file (optional)")

func main() {
	flag.Parse()

	cfg, err := config.Resolve(*configPath, false)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	logger.Info("starting sitetrackd",
		"version", version.Version,
		"commit", version.Commit,
	)

	d, err := newDaemon(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	go func() {
		if err := d.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	fmt.Printf("sitetrack server running on %s\n", cfg.Server.Addr)
	fmt.Println(version.String("sitetrackd"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.close(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	fmt.Println("Shutdown complete")
}

// daemon owns the long-lived components wired together by newDaemon.
type daemon struct {
	srv      *server.Server
	store    *project.MemoryStore
	activity *activity.SQLiteLog
	detach   func()
}

// newDaemon builds the store, event bus, activity log, suggester and HTTP
// server from cfg. The server is not started.
func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	seed, err := loadSeed(cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	bus := events.NewInMemoryBus()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	actLog, err := activity.NewSQLiteLog(cfg.ActivityDBPath())
	if err != nil {
		return nil, err
	}
	detach := activity.Attach(bus, actLog)

	store, err := project.NewMemoryStore(seed, project.WithBus(bus), project.WithLogger(logger))
	if err != nil {
		detach()
		_ = actLog.Close()
		return nil, fmt.Errorf("load projects: %w", err)
	}

	p, err := suggest.NewProvider(cfg.Suggest.Provider, provider.Config{
		APIKey:  cfg.Suggest.APIKey,
		Model:   cfg.Suggest.Model,
		BaseURL: cfg.Suggest.BaseURL,
	})
	if err != nil {
		detach()
		_ = actLog.Close()
		return nil, fmt.Errorf("suggest provider: %w", err)
	}
	sg := suggest.NewService(p,
		suggest.WithMax(cfg.Suggest.MaxSuggestions),
		suggest.WithTimeout(cfg.Suggest.Timeout),
		suggest.WithLogger(logger),
	)

	srv := server.New(*cfg, version.Version, logger)
	srv.SetStore(store)
	srv.SetBus(bus)
	srv.SetActivityLog(actLog)
	srv.SetSuggester(sg)
	if dir := cfg.Server.StaticDir; dir != "" {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			detach()
			_ = actLog.Close()
			return nil, fmt.Errorf("static dir %s: not a directory", dir)
		}
		srv.SetStaticFS(os.DirFS(dir))
	}

	logger.Info("daemon ready",
		slog.Int("projects", len(store.ListProjects())),
		slog.String("provider", p.Name()),
		slog.String("activity_db", cfg.ActivityDBPath()),
	)
	return &daemon{srv: srv, store: store, activity: actLog, detach: detach}, nil
}

// close stops the server, then detaches and closes the activity log.
func (d *daemon) close(ctx context.Context) error {
	err := d.srv.Stop(ctx)
	d.detach()
	return errors.Join(err, d.activity.Close())
}

func loadSeed(path string) ([]project.Project, error) {
	if path == "" {
		return project.DefaultSeed(time.Now()), nil
	}
	seed, err := project.LoadSeedFile(path, time.Now())
	if err != nil {
		return nil, fmt.Errorf("load seed %s: %w", path, err)
	}
	return seed, nil
}
