package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barbearia/internal/clients"
	"barbearia/internal/config"
	"barbearia/internal/engine"
	"barbearia/internal/events"
	"barbearia/internal/ledger"
	"barbearia/internal/metrics"
	"barbearia/internal/model"
	"barbearia/internal/report"
	"barbearia/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load(".env")

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("AGENDA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		logger = logger.Level(lvl)
	}

	grid, err := cfg.BuildGrid()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid grid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage error")
	}
	defer store.Close()

	backup := storage.NewBackupService(cfg.Backup, &logger)
	repo := storage.NewRepository(store, backup, &logger)

	bus := events.NewEventBus()
	journal := logger.With().Str("component", "journal").Logger()
	bus.SubscribeAll(func(ev events.Event) error {
		journal.Info().
			Str("type", ev.Type).
			Str("date", ev.Date).
			Str("slot", ev.Slot).
			Str("client", ev.Client).
			Str("booking_id", ev.BookingID.String()).
			Msg("Agenda changed")
		return nil
	})

	eng := engine.New(grid, nil, engine.Options{
		Persister:   repo,
		Publisher:   bus,
		AutoPersist: cfg.Engine.AutoPersist,
	}, &logger)

	watcher := config.NewCatalogWatcher(cfg.CatalogPath, 30*time.Second, &logger, func(c *config.Catalog) error {
		if err := c.CheckGrid(grid); err != nil {
			return err
		}
		eng.SetCatalog(c)
		return nil
	})
	err = watcher.Start(ctx)
	catalog := watcher.Current()
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Str("path", cfg.CatalogPath).Msg("Catalog not found, using defaults")
		catalog, err = config.DefaultCatalogConfig().Build()
		if err == nil {
			err = catalog.CheckGrid(grid)
		}
		eng.SetCatalog(catalog)
	}
	if err != nil || catalog == nil {
		logger.Fatal().Err(err).Msg("load catalog error")
	}
	logger.Info().Str("catalog", catalog.String()).Msg("Catalog loaded")

	agenda, err := repo.LoadAgenda(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load agenda error")
	}
	eng.Load(agenda)

	registry := clients.NewRegistry()
	clientDoc, err := repo.LoadClients(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load clients error")
	}
	registry.Load(clientDoc)

	sales := ledger.NewSales()
	salesDoc, err := repo.LoadSales(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load sales error")
	}
	sales.Load(salesDoc)

	scheduler := cron.New()
	if err := backup.Schedule(scheduler); err != nil {
		logger.Fatal().Err(err).Msg("schedule backups error")
	}
	exporter := report.NewExporter(cfg.Reports, eng, sales, nil, &logger)
	if err := exporter.Schedule(scheduler); err != nil {
		logger.Fatal().Err(err).Msg("schedule export error")
	}
	if _, err := scheduler.AddFunc(cfg.Reports.BirthdaySchedule, func() {
		birthdays(registry, model.Today(), &logger)
	}); err != nil {
		logger.Fatal().Err(err).Msg("schedule birthdays error")
	}
	scheduler.Start()

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, store, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	today := model.Today()
	summary := ledger.Summarize(eng, sales, ledger.DayDates(today))
	logger.Info().
		Int("dates", len(eng.Dates())).
		Int("clients", len(registry.All())).
		Int("today_attendance", summary.Attendance).
		Msg("Agenda started")

	<-ctx.Done()
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eng.Persist(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("persist agenda on shutdown")
	}
	if err := repo.SaveClients(shutdownCtx, registry.Document()); err != nil {
		logger.Error().Err(err).Msg("persist clients on shutdown")
	}
	if err := repo.SaveSales(shutdownCtx, sales.Document()); err != nil {
		logger.Error().Err(err).Msg("persist sales on shutdown")
	}
	logger.Info().Msg("Agenda stopped")
}

func openStore(cfg *config.Config, logger *zerolog.Logger) (storage.DocumentStore, error) {
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		r := cfg.Storage.Redis
		rdb := redis.NewClient(&redis.Options{Addr: r.Address, Password: r.Password, DB: r.DB})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return storage.NewRedisStore(rdb, r.KeyPrefix, logger), nil
	default:
		return storage.NewSQLiteStore(cfg.Storage.SQLite.Path, logger)
	}
}

func birthdays(registry *clients.Registry, day model.Date, logger *zerolog.Logger) {
	for _, c := range registry.BirthdaysOn(day) {
		logger.Info().Str("client", c.Name).Str("phone", c.Phone).Msg("Birthday today")
	}
}

func startHealthServer(ctx context.Context, port int, store storage.DocumentStore, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := store.Ping(ctxPing); err != nil {
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
