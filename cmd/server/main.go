// Command server runs the SourceWiki authentication service: wiki login
// over OAuth 1.0a plus local session issuance.
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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Tiisu/SourceWiki-sub001/internal/cache"
	memcache "github.com/Tiisu/SourceWiki-sub001/internal/cache/memory"
	redcache "github.com/Tiisu/SourceWiki-sub001/internal/cache/redis"
	"github.com/Tiisu/SourceWiki-sub001/internal/config"
	sessionctrl "github.com/Tiisu/SourceWiki-sub001/internal/http/controllers/session"
	wikictrl "github.com/Tiisu/SourceWiki-sub001/internal/http/controllers/wikiauth"
	"github.com/Tiisu/SourceWiki-sub001/internal/http/router"
	wikisvc "github.com/Tiisu/SourceWiki-sub001/internal/http/services/wikiauth"
	"github.com/Tiisu/SourceWiki-sub001/internal/jwt"
	"github.com/Tiisu/SourceWiki-sub001/internal/oauth/mediawiki"
	"github.com/Tiisu/SourceWiki-sub001/internal/oauth/tokenstore"
	"github.com/Tiisu/SourceWiki-sub001/internal/observability/logger"
	"github.com/Tiisu/SourceWiki-sub001/internal/store/core"
	memstore "github.com/Tiisu/SourceWiki-sub001/internal/store/memory"
	"github.com/Tiisu/SourceWiki-sub001/internal/store/pg"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:     "server",
		Short:   "SourceWiki authentication service",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to the yaml config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// .env is optional; system environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       os.Getenv("LOG_LEVEL"),
		ServiceName: "sourcewiki-auth",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage.
	var repo core.Repository
	var closeStore func()
	switch cfg.Storage.Driver {
	case "postgres":
		st, err := pg.New(ctx, cfg.Storage.DSN, cfg.Storage.Postgres.MaxConns)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return err
		}
		repo = st
		closeStore = st.Close
		log.Info("storage ready", logger.String("driver", "postgres"))
	case "memory":
		repo = memstore.New()
		closeStore = func() {}
		log.Info("storage ready", logger.String("driver", "memory"))
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	defer closeStore()

	// Cache and pending-handshake store share the backend choice: redis
	// lets multiple instances serve initiate and callback interchangeably.
	var sessionCache cache.Cache
	var pending tokenstore.Store
	switch cfg.Cache.Kind {
	case "redis":
		sessionCache = redcache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB)
		pending = tokenstore.NewRedis(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix, cfg.HandshakeTTL())
		log.Info("cache ready", logger.String("kind", "redis"))
	case "memory":
		sessionCache = memcache.New(cfg.CacheDefaultTTL())
		pending = tokenstore.NewMemory(cfg.HandshakeTTL())
		log.Info("cache ready", logger.String("kind", "memory"))
	default:
		return fmt.Errorf("unknown cache kind %q", cfg.Cache.Kind)
	}
	defer pending.Close()

	// Sessions.
	issuer, err := jwt.NewIssuer(cfg.JWT.Issuer, cfg.JWT.Ed25519Seed, cfg.AccessTTL())
	if err != nil {
		return fmt.Errorf("building jwt issuer: %w", err)
	}
	sessions := jwt.NewSessions(issuer, sessionCache, cfg.RefreshTTL())

	// Wiki provider client.
	provider := mediawiki.New(mediawiki.Config{
		BaseURL:        cfg.Wiki.BaseURL,
		ConsumerKey:    cfg.Wiki.ConsumerKey,
		ConsumerSecret: cfg.Wiki.ConsumerSecret,
		Timeout:        cfg.WikiHTTPTimeout(),
	})

	services := wikisvc.New(wikisvc.Deps{
		Provider: provider,
		Store:    pending,
		Repo:     repo,
		Sessions: sessions,
	})

	handler := router.New(router.Deps{
		WikiAuth: wikictrl.NewController(services, issuer, cfg.Wiki.SuccessRedirect, cfg.Wiki.ErrorRedirect),
		Session:  sessionctrl.NewController(sessions),
		Repo:     repo,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return tokenstore.RunSweeper(gctx, pending, cfg.SweepInterval())
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stopped")
	return nil
}
