// Package main is the entry point for the Bingo bot.
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"bingo-bot/internal/bot"
	"bingo-bot/internal/config"
	"bingo-bot/internal/game"
	"bingo-bot/internal/game/bingo"
	"bingo-bot/internal/gateway"
	"bingo-bot/internal/metrics"
	"bingo-bot/internal/pkg/db"
	"bingo-bot/internal/repository"
	"bingo-bot/internal/service"
)

// shutdownTimeout bounds abandoning live sessions and closing servers.
const shutdownTimeout = 10 * time.Second

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Bot exited with error")
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "bot",
		Short:         "Turn-based multiplayer bingo for Telegram and Discord",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config", "directory containing config.yaml")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			pool, err := db.NewPool(cmd.Context(), &cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := repository.Migrate(cmd.Context(), pool.Pool); err != nil {
				return err
			}
			log.Info().Msg("All migrations completed successfully")
			return nil
		},
	}

	root.AddCommand(serveCmd, migrateCmd)
	// serve is the default
	root.RunE = serveCmd.RunE
	return root
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log)
	log.Info().Str("platform", cfg.Bot.Platform).Msg("Configuration loaded successfully")
	return cfg, nil
}

// setupLogging applies the configured level and optional rotating file.
func setupLogging(cfg config.LogConfig) {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.File != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	log.Logger = log.Output(out)

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// platform is a chat bot before the engine is attached.
type platform interface {
	bot.Runner
	Attach(deps *bot.Dependencies)
}

func newPlatform(cfg *config.Config) (platform, bingo.Gateway, error) {
	if cfg.Bot.Platform == config.PlatformDiscord {
		d, err := bot.NewDiscordBot(cfg)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Gateway(), nil
	}
	t, err := bot.NewTelegramBot(cfg)
	if err != nil {
		return nil, nil, err
	}
	return t, t.Gateway(), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	var (
		pool  *db.Pool
		stats *service.StatsService
	)
	if cfg.Database.Enabled {
		var err error
		pool, err = db.NewPool(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := repository.Migrate(ctx, pool.Pool); err != nil {
			return err
		}
		stats = service.NewStatsService(
			repository.NewGameRepository(pool.Pool),
			repository.NewPlayerRepository(pool.Pool),
		)
	} else {
		log.Warn().Msg("Database disabled, finished games are not recorded")
	}

	m := metrics.New()
	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	if pool != nil {
		if err := prometheus.DefaultRegisterer.Register(db.NewCollector(pool)); err != nil {
			return err
		}
	}

	chat, gw, err := newPlatform(cfg)
	if err != nil {
		return err
	}

	opts := []bingo.Option{
		bingo.WithRenderer(cfg.Games.Bingo.NewRenderer()),
		bingo.WithMetrics(m),
	}
	if stats != nil {
		opts = append(opts, bingo.WithRecorder(stats))
	}
	engine := bingo.NewEngine(
		gateway.NewLimited(gw, cfg.Bot.SendRate, cfg.Bot.SendBurst),
		cfg.Games.Bingo.Engine(),
		opts...,
	)

	registry := game.NewRegistry()
	if err := registry.Register(engine); err != nil {
		return err
	}
	log.Info().
		Int("game_count", registry.Count()).
		Int("score_limit", engine.Config().ScoreLimit).
		Dur("turn_timeout", engine.Config().TurnTimeout).
		Msg("Games registered")

	chat.Attach(&bot.Dependencies{
		Config:   cfg,
		Engine:   engine,
		Registry: registry,
		Stats:    stats,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return chat.Run(gctx)
	})
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux(pool, registry)}
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("Serving metrics")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err = g.Wait()

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := engine.Shutdown(sctx); serr != nil {
		log.Error().Err(serr).Msg("Sessions did not stop in time")
	}
	log.Info().Msg("Bot stopped gracefully")
	return err
}

func metricsMux(pool *db.Pool, registry *game.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.HealthCheck(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("X-Active-Sessions", strconv.Itoa(registry.ActiveSessions()))
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}
