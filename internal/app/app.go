package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/langerlad/bulk-ip-app/internal/app/server"
	"github.com/langerlad/bulk-ip-app/internal/app/version"
	"github.com/langerlad/bulk-ip-app/internal/config"
	"github.com/langerlad/bulk-ip-app/internal/draft"
	"github.com/langerlad/bulk-ip-app/internal/geolite"
	"github.com/langerlad/bulk-ip-app/internal/jobs/maintenance"
	"github.com/langerlad/bulk-ip-app/internal/metrics"
	"github.com/langerlad/bulk-ip-app/internal/reputation"
	"github.com/langerlad/bulk-ip-app/internal/session"
	"github.com/langerlad/bulk-ip-app/internal/workflow"
)

const shutdownGrace = 10 * time.Second

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	portFlag := flag.Int("port", 0, "Port for the web client")
	productionFlag := flag.Bool("production", false, "Run in production mode")
	debugFlag := flag.Bool("debug", false, "Enable debug logging and template reloading")
	flag.Parse()

	cfg := config.Load()
	cfg.Port = resolvePort("PORT", "FRONTEND_PORT", cfg.Port)
	if *portFlag != 0 {
		cfg.Port = *portFlag
	}
	if *productionFlag {
		cfg.Production = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	config.SetProductionMode(cfg.Production)
	if *debugFlag || !cfg.Production {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	config.SetConfig(cfg)

	info := version.Get()
	log.Info("Starting bulk IP checker", "version", info.Label(), "go", info.GoVersion, "port", cfg.Port, "api_url", cfg.Backend.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()

	client, err := reputation.NewClient(reputation.Options{
		BaseURL:  cfg.Backend.BaseURL,
		APIKey:   cfg.Backend.APIKey,
		Timeout:  cfg.Backend.Timeout,
		Proxy:    cfg.Backend.Proxy,
		Observer: collector,
	})
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	drafts, err := draft.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := drafts.Close(); err != nil {
			log.Warn("error closing draft store", "error", err)
		}
	}()

	sessions, err := session.New(cfg.Session.Secret, cfg.Session.TTL, cfg.Production)
	if err != nil {
		return err
	}

	if _, err := geolite.EnsureCountryDB(ctx, cfg.GeoLite.LicenseKey, cfg.GeoLite.CountryDB); err != nil && !errors.Is(err, geolite.ErrNoLicenseKey) {
		log.Warn("GeoLite country database refresh failed", "error", err)
	}

	locator, err := geolite.Open(cfg.GeoLite.CountryDB)
	if err != nil {
		log.Warn("GeoLite country database unavailable", "path", cfg.GeoLite.CountryDB, "error", err)
		locator, _ = geolite.Open("")
	}
	defer func() {
		if err := locator.Close(); err != nil {
			log.Warn("error closing GeoLite database", "error", err)
		}
	}()

	manager := workflow.NewManager(client, drafts, draft.Key, cfg.Session.TTL, collector)
	collector.RegisterGauge("active_sessions", "Browser sessions with a live workflow controller.", func() float64 {
		return float64(manager.Len())
	})

	web, err := server.New(server.Dependencies{
		Manager:  manager,
		Sessions: sessions,
		Locator:  locator,
		Metrics:  collector,
		Location: cfg.DisplayLocation(),
		Debug:    *debugFlag,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           web.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Backend.Timeout + 30*time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("Serving web client on port :%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down web client")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return errors.Join(httpServer.Shutdown(shutdownCtx), web.Shutdown(shutdownCtx))
	})

	if sqlStore, ok := draft.SQLBacked(drafts); ok {
		g.Go(func() error {
			maintenance.StartDraftPurgeRoutine(gctx, sqlStore, cfg.Session.TTL)
			return nil
		})
	}

	return g.Wait()
}

func resolvePort(primaryEnv, legacyEnv string, fallback int) int {
	if port := readPort(primaryEnv); port != 0 {
		return port
	}
	if port := readPort(legacyEnv); port != 0 {
		return port
	}
	return fallback
}

func readPort(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return 0
	}
	return port
}
