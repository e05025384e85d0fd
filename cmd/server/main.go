// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"consentgate/internal/directory"
	"consentgate/internal/guard"
	"consentgate/internal/ledger"
	"consentgate/internal/notify"
	"consentgate/internal/platform/config"
	"consentgate/internal/platform/httpserver"
	"consentgate/internal/platform/logger"
	"consentgate/internal/platform/postgres"
	platformredis "consentgate/internal/platform/redis"
	"consentgate/internal/session"
	"consentgate/internal/settings"
	"consentgate/internal/terms"
	"consentgate/internal/terms/metrics"
	"consentgate/internal/terms/service"
	httptransport "consentgate/internal/transport/http"
	"consentgate/pkg/platform/middleware/auth"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}

	// Every store has a memory fallback so the service runs standalone in
	// development.
	var (
		termStore     terms.Store
		ledgerStore   ledger.Store
		settingsStore settings.Store
		dir           directory.Directory
		perms         service.PermissionChecker
		passwords     httptransport.PasswordVerifier
	)
	if db != nil {
		termStore = terms.NewPostgres(db)
		ledgerStore = ledger.NewPostgres(db)
		settingsStore = settings.NewPostgres(db)
		dir = directory.NewPostgres(db)
		perms = directory.NewPostgresPermissions(db)
		passwords = directory.NewPostgresPasswordVerifier(db)
	} else {
		log.Warn("no postgres configured, using in-memory stores")
		termStore = terms.NewInMemoryStore()
		ledgerStore = ledger.NewInMemoryStore()
		settingsStore = settings.NewInMemoryStore()
		dir = directory.NewInMemoryDirectory()
		perms = directory.NewStaticPermissions()
		passwords = directory.NewStaticPasswordVerifier(nil)
	}

	var cache interface {
		session.CheckCache
		session.TokenRevocationList
	}
	if redisClient != nil {
		cache = session.NewRedisCache(redisClient.Client)
	} else {
		log.Warn("no redis configured, using in-memory check cache")
		cache = session.NewInMemoryCache()
	}

	bus := notify.NewBus(log)
	manager := service.NewManager(
		termStore, ledgerStore, settingsStore, cache, perms, dir, bus, log,
		service.WithConfig(cfg.Consent),
		service.WithMetrics(metrics.New()),
	)

	mailer := notify.NewSMTPMailer(cfg.SMTP, log)
	notifier := notify.NewEmailNotifier(settingsStore, manager, mailer, cfg.SiteTitle, cfg.ManageTOSURL, log)
	bus.Subscribe(notifier.HandleAgreementsRevoked)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Handler:    httptransport.NewHandler(manager, termStore, ledgerStore, passwords),
		Admin:      httptransport.NewAdminHandler(manager, termStore, ledgerStore, settingsStore, guard.NewRegistry(guard.NewFolderGuard(settingsStore))),
		Manager:    manager,
		Validator:  auth.NewJWTValidator(cfg.JWTSigningKey),
		TRL:        cache,
		Cache:      cache,
		AdminToken: cfg.AdminToken,
		LandingURL: "/",
		Logger:     log,
	})

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting consentgate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
