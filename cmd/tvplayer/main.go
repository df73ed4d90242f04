package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/voyagen/tvplayer/internal/cache"
	"github.com/voyagen/tvplayer/internal/channelstore"
	"github.com/voyagen/tvplayer/internal/config"
	"github.com/voyagen/tvplayer/internal/logo"
	"github.com/voyagen/tvplayer/internal/models"
	"github.com/voyagen/tvplayer/internal/notify"
	"github.com/voyagen/tvplayer/internal/playback"
	"github.com/voyagen/tvplayer/internal/player"
	"github.com/voyagen/tvplayer/internal/presenter"
	"github.com/voyagen/tvplayer/internal/server"
	"github.com/voyagen/tvplayer/internal/service"
	"github.com/voyagen/tvplayer/internal/store"
	"github.com/voyagen/tvplayer/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use environment variables")
	useTUI := flag.Bool("tui", false, "Run the terminal UI instead of the HTTP API")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := newLogger(cfg, *useTUI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *useTUI); err != nil {
		log.WithError(err).Error("exiting")
		closeLog()
		os.Exit(1)
	}
}

// newLogger builds the process logger. The TUI owns the terminal, so its logs
// go to a file in the data directory.
func newLogger(cfg *config.Config, toFile bool) (*logrus.Logger, func(), error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	log.SetLevel(level)
	if !toFile {
		return log, func() {}, nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(cfg.DataDir, "tvplayer.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	log.SetOutput(f)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return log, func() { _ = f.Close() }, nil
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger, useTUI bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rds, err := connectRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	if rds != nil {
		defer rds.Close()
	}

	kv, closeStore, err := openStore(ctx, cfg, rds, log)
	if err != nil {
		return err
	}
	defer closeStore()

	notes := notify.NewCenter(notify.DefaultCapacity, log)
	channels := channelstore.New(kv, log.WithField("component", "channelstore"))

	loader, err := logo.NewLoader(logo.Config{
		Workers:   cfg.LogoWorkers,
		Rate:      cfg.LogoRate,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	}, log.WithField("component", "logo"))
	if err != nil {
		return err
	}
	defer loader.Close()

	// The selector and presenter post async work to the controller, which is built after them.
	var ctrl *service.Controller
	post := func(fn func()) { ctrl.Post(fn) }

	selector := playback.NewSelector(
		player.Builder(player.Config{Command: cfg.PlayerCommand, Args: cfg.PlayerArgs, HLSArgs: cfg.PlayerHLSArgs}, log),
		notes,
		log.WithField("component", "playback"),
		playback.WithDispatcher(post),
	)
	opts := []service.Option{
		service.WithAutoplay(cfg.Autoplay),
		service.WithImportOptions(service.ImportOptions{UserAgent: cfg.UserAgent, Timeout: cfg.Timeout}),
	}
	if rds != nil {
		opts = append(opts, service.WithImportLocks(rds))
	}
	ctrl = service.NewController(channels, selector, notes, log.WithField("component", "controller"), opts...)

	rows := presenter.New(loader, presenter.WithDispatcher(post))
	rows.Bind(ctx, channels)

	loopDone := make(chan error, 1)
	go func() { loopDone <- ctrl.Run(ctx) }()

	if rds != nil && !useTUI {
		go runImportWorker(ctx, rds, ctrl, log)
	}

	var hostErr error
	if useTUI {
		hostErr = tui.Run(ctx, ctrl, rows, notes)
	} else {
		srv := server.New(cfg, server.Deps{
			Controller: ctrl,
			Rows:       rows,
			Logos:      loader,
			Notes:      notes,
			Jobs:       rds,
			Log:        log.WithField("component", "http"),
		})
		hostErr = srv.ListenAndServe(ctx)
	}

	// Quitting the TUI winds down the same way a signal does.
	cancel()
	if hostErr != nil {
		return hostErr
	}
	select {
	case err := <-loopDone:
		return err
	case <-time.After(10 * time.Second):
		return errors.New("controller did not stop in time")
	}
}

func connectRedis(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*cache.Redis, error) {
	if cfg.RedisURL == "" {
		log.Info("redis disabled (REDIS_URL not set)")
		return nil, nil
	}
	rds, err := cache.New(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	if err := rds.Ping(ctx); err != nil {
		_ = rds.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("redis connected")
	return rds, nil
}

// openStore opens the namespaced key/value backend chosen by cfg.
func openStore(ctx context.Context, cfg *config.Config, rds *cache.Redis, log logrus.FieldLogger) (store.Store, func(), error) {
	ns := models.StorageNamespace
	switch cfg.Backend {
	case config.BackendFile:
		fs := store.NewFile(cfg.DataDir, ns)
		log.WithField("path", fs.Path()).Info("storage: file")
		return fs, func() {}, nil

	case config.BackendRedis:
		log.Info("storage: redis")
		return store.NewRedis(rds, ns), func() {}, nil

	case config.BackendPostgres:
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, ns)
		if err != nil {
			return nil, nil, fmt.Errorf("db: %w", err)
		}
		if cfg.Cached() && rds != nil {
			log.Info("storage: postgres (redis cache)")
			return store.NewCachedStore(pg, rds, store.DefaultCacheTTL, log), pg.Close, nil
		}
		log.Info("storage: postgres")
		return pg, pg.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Backend)
}

// runImportWorker dequeues playlist import jobs from Redis and runs them on
// the controller. It stops when ctx is cancelled.
func runImportWorker(ctx context.Context, rds *cache.Redis, ctrl *service.Controller, log logrus.FieldLogger) {
	log = log.WithField("component", "import-worker")
	log.Info("import worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info("import worker stopping")
			return
		default:
		}

		job, err := cache.Dequeue(ctx, rds, cache.ImportQueue, 5*time.Second)
		if err != nil {
			log.WithError(err).Warn("dequeue")
			time.Sleep(2 * time.Second)
			continue
		}
		if job == nil {
			continue // timeout, loop back to check ctx
		}

		entry := log.WithField("url", job.URL)
		out, err := ctrl.Dispatch(ctx, service.ImportPlaylist{URL: job.URL, UseTvgID: job.UseTvgID})
		switch {
		case errors.Is(err, cache.ErrLocked):
			entry.Info("import already running elsewhere, skipped")
		case err != nil:
			entry.WithError(err).Warn("import failed")
		case out.Import != nil:
			entry.WithFields(logrus.Fields{"added": out.Import.Added, "skipped": out.Import.Skipped}).Info("import done")
		}
	}
}
