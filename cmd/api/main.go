package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"playcourt/internal/api"
	"playcourt/internal/clock"
	"playcourt/internal/config"
	"playcourt/internal/database"
	"playcourt/internal/domain"
	"playcourt/internal/events"
	"playcourt/internal/export"
	"playcourt/internal/logging"
	"playcourt/internal/metrics"
	"playcourt/internal/pricing"
	"playcourt/internal/repository"
	"playcourt/internal/service"
	"playcourt/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	lockStore, lockCloser := initLockStore(cfg, &logger)
	if lockCloser != nil {
		defer lockCloser.Close()
	}

	clk := clock.Real{}
	bus := events.NewEventBus()
	locker := service.NewSlotLockCoordinator(lockStore, &logger)
	pricer := pricing.NewEngine(db, lockStore, clk, &logger)

	bookings := service.NewBookingService(db, locker, pricer, bus, clk, &logger)
	wallets := service.NewWalletService(db, bus, clk, &logger)
	games := service.NewGameService(db, bus, clk, &logger)
	venues := service.NewVenueService(db, clk, &logger)

	server := api.NewServer(cfg.API, api.Deps{
		Bookings: bookings,
		Wallets:  wallets,
		Games:    games,
		Venues:   venues,
		Pricer:   pricer,
		Exporter: export.NewExcel(db, cfg.Exports.Path, &logger),
	}, &logger)

	sweeper := worker.NewSweeper(db, bookings, games, venues, worker.SweeperConfig{
		ExpiryInterval:      cfg.Sweeps.ExpiryInterval.Std(),
		GameCancelInterval:  cfg.Sweeps.GameCancelInterval.Std(),
		CourtRefundInterval: cfg.Sweeps.CourtRefundInterval.Std(),
		DiscountInterval:    cfg.Sweeps.DiscountInterval.Std(),
	}, clk, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)
	sweeper.Start(ctx)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	logger.Info().Int("http_port", cfg.API.Port).Msg("server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = server.Shutdown(shutdownCtx)
	sweeper.Wait()

	logger.Info().Msg("server stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initLockStore wires the slot mutex backend: Redis fronted by the
// in-process fallback when configured, plain in-process otherwise.
func initLockStore(cfg *config.Config, logger *zerolog.Logger) (domain.LockStore, io.Closer) {
	memory := repository.NewMemoryLockStore()
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		logger.Info().Msg("using in-process lock store")
		return memory, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), client); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable at startup, failover will keep probing")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	primary := repository.NewRedisLockStore(client)
	return repository.NewFailoverLockStore(primary, memory, logger), client
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
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
