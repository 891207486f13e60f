package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/globetrotter/internal/auth"
	"github.com/robalobadob/globetrotter/internal/cache"
	"github.com/robalobadob/globetrotter/internal/catalog"
	"github.com/robalobadob/globetrotter/internal/challenge"
	"github.com/robalobadob/globetrotter/internal/config"
	"github.com/robalobadob/globetrotter/internal/database"
	"github.com/robalobadob/globetrotter/internal/game"
	"github.com/robalobadob/globetrotter/internal/httpserver"
	"github.com/robalobadob/globetrotter/internal/metrics"
	"github.com/robalobadob/globetrotter/internal/migrations"
	"github.com/robalobadob/globetrotter/internal/store"
	"github.com/robalobadob/globetrotter/internal/users"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg)
	if cfg.InsecureSecret() {
		log.Warn().Msg("JWT_SECRET not set, using the development secret")
	}

	checks := map[string]httpserver.Checker{}

	// --- Storage ---
	var st store.Store
	switch cfg.Store {
	case "memory":
		st = store.NewMemory()
		log.Info().Msg("using in-memory store")
	default:
		db, err := database.Open(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("connecting to sqlite: %w", err)
		}
		defer db.Close()
		if err := migrations.Run(db.DB); err != nil {
			return err
		}
		st = store.NewSQLite(db)
		checks["sqlite"] = dbChecker{db}
		log.Info().Str("path", cfg.DBPath).Msg("connected to sqlite")
	}

	// --- Redis (optional invite cache) ---
	var invites challenge.Cache
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		invites = cache.NewInvites(rdb)
		checks["redis"] = cache.Checker{Client: rdb}
		log.Info().Msg("connected to redis")
	}

	// --- Services ---
	m := metrics.New()
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL())
	us := users.NewService(st, issuer)
	games := game.NewEngine(st, game.Config{MaxWrongAnswers: cfg.MaxWrongAnswers, Metrics: m})
	cat := catalog.NewService(st, m).WithDailySalt(cfg.DailySalt)
	challenges := challenge.NewEngine(st, games, us, challenge.Config{
		InviteTTL:  cfg.InviteTTL,
		CodeLength: cfg.InviteCodeLength,
		LinkBase:   cfg.InviteBaseURL,
		Cache:      invites,
		Metrics:    m,
	})

	if cfg.SeedOnStart {
		inputs, err := catalog.LoadSeed(cfg.DestinationsFile)
		if err != nil {
			return fmt.Errorf("loading seed destinations: %w", err)
		}
		if _, err := cat.Seed(ctx, inputs); err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
	}

	// --- HTTP Server ---
	srv := httpserver.New(httpserver.Config{
		Addr:           cfg.HTTPAddr,
		ClientOrigin:   cfg.ClientOrigin,
		CookieName:     cfg.CookieName,
		CookieSecure:   cfg.CookieSecure,
		RequestTimeout: cfg.RequestTimeout,
	}, httpserver.Deps{
		Catalog:    cat,
		Users:      us,
		Games:      games,
		Challenges: challenges,
		Verifier:   auth.NewVerifier(issuer, st.Users()),
		Metrics:    m,
		Checks:     checks,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting http server")
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func setupLogging(cfg *config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if strings.EqualFold(cfg.LogFormat, "console") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// dbChecker adapts *sqlx.DB to httpserver.Checker.
type dbChecker struct{ db *sqlx.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }
