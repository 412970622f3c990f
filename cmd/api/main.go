// Command api serves the PayQuest backend: wallets, ledgers, contacts,
// achievement stats, transfers and phone verification.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payquest/config"
	apidocs "payquest/docs/api"
	httpHandler "payquest/internal/adapter/http/handler"
	pgStorage "payquest/internal/adapter/storage/postgres"
	redisStorage "payquest/internal/adapter/storage/redis"
	"payquest/internal/core/ports"
	"payquest/internal/service"
	"payquest/pkg/clock"
	"payquest/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if err := cfg.ValidateServer(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("api stopped")
		os.Exit(1)
	}
}

// serve wires the backend and blocks until ctx is cancelled or the listener
// fails.
func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pgStorage.Migrate(ctx, pool, log); err != nil {
		return err
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer rdb.Close()

	clk := clock.NewReal()
	transactor := pgStorage.NewTransactor(pool)

	ledger := service.NewLedgerService(
		pgStorage.NewWalletRepo(pool),
		pgStorage.NewTransactionRepo(pool),
		pgStorage.NewContactRepo(pool),
		transactor, clk, log,
	)
	achievements := service.NewAchievementService(pgStorage.NewAchievementRepo(pool), clk, log)
	otp := service.NewOTPService(
		pgStorage.NewOTPRepo(pool),
		pgStorage.NewProfileRepo(pool),
		redisStorage.NewOTPThrottle(rdb),
		smsSender(cfg.OTP, log),
		transactor, cfg.OTP, clk, log,
	)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:      ledger,
		AchievementSvc: achievements,
		OTPSvc:         otp,
		TokenSvc:       service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer),
		RateLimiter:    redisStorage.NewRateLimitStore(rdb),
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		APIDocument:    apidocs.OpenAPI,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	listenErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("mode", gin.Mode()).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Dur("grace", cfg.Server.ShutdownTimeout).Msg("draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("api stopped cleanly")
	return nil
}

// smsSender posts codes to the configured gateway, or logs them when none is
// set.
func smsSender(cfg config.OTPConfig, log zerolog.Logger) ports.SMSSender {
	if cfg.SMSGatewayURL == "" {
		log.Warn().Msg("otp.sms_gateway_url not set, codes will be logged instead of sent")
		return service.NewLogSMSSender(log)
	}
	return service.NewGatewaySMSSender(cfg, &http.Client{Timeout: 10 * time.Second}, log)
}
