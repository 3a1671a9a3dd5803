// Command server runs the failover orchestration API.
//
// Startup order:
//  1. Load .env (optional) and configuration
//  2. Configure zerolog and Gin mode
//  3. Open SQLite, migrate, seed the flag catalogue
//  4. Set up OTel tracing (no-op unless enabled)
//  5. Register routes and serve, with graceful shutdown on SIGINT/SIGTERM
//
// A background ticker sweeps expired idempotency claims for the lifetime of
// the process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/callwise/go-failover-backend/internal/config"
	"github.com/callwise/go-failover-backend/internal/domain"
	httpapi "github.com/callwise/go-failover-backend/internal/http"
	"github.com/callwise/go-failover-backend/internal/observability"
	"github.com/callwise/go-failover-backend/internal/repo"
	"github.com/callwise/go-failover-backend/internal/services"
	"github.com/callwise/go-failover-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional; real deployments configure via the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}
	if err := seedFlags(rootCtx, db); err != nil {
		log.Fatal().Err(err).Msg("flag seeding failed")
	}

	shutdownOTel, err := observability.SetupOTel(rootCtx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg)

	// Expired idempotency claims are swept for the process lifetime.
	go sweepIdempotency(rootCtx, db, cfg.Resilience.SweepInterval, cfg.Resilience.IdempotencyTTL)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown failed")
	}
}

// seedFlags provisions the flag catalogue. Existing rows are left untouched,
// so redeploys never flip an operator's switches.
func seedFlags(ctx context.Context, db *gorm.DB) error {
	preferred := string(domain.ProviderOpenAI)
	seeds := []domain.Flag{
		{Key: services.FlagAIEnabled, Enabled: true, Scope: domain.FlagScopeGlobal, Notes: "master switch for all AI completions"},
		{Key: services.FlagAIPreferred, Enabled: true, Value: &preferred, Scope: domain.FlagScopeGlobal, Notes: "provider tried first"},
		{Key: services.FlagOpenAIEnabled, Enabled: true, Scope: domain.FlagScopeGlobal},
		{Key: services.FlagAnthropicEnabled, Enabled: true, Scope: domain.FlagScopeGlobal},
		{Key: services.FlagCallsEnabled, Enabled: true, Scope: domain.FlagScopeGlobal},
		{Key: services.FlagMessagingEnabled, Enabled: true, Scope: domain.FlagScopeGlobal},
		{Key: services.FlagVoiceEnabled, Enabled: false, Scope: domain.FlagScopeGlobal, Notes: "voice pipeline rollout"},
		{Key: services.FlagHealthChecksOn, Enabled: true, Scope: domain.FlagScopeGlobal},
	}
	for _, f := range seeds {
		f.UpdatedBy = "seed"
		if err := repo.SeedFlag(ctx, db, f); err != nil {
			return err
		}
	}
	return nil
}

// sweepIdempotency deletes expired dedup claims on a fixed cadence until ctx
// is canceled.
func sweepIdempotency(ctx context.Context, db *gorm.DB, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	svc := services.NewIdempotencyService(db, ttl)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := svc.CleanupExpired(ctx); err != nil {
				log.Warn().Err(err).Msg("idempotency sweep failed")
			} else if n > 0 {
				log.Debug().Int64("removed", n).Msg("idempotency sweep")
			}
		}
	}
}
