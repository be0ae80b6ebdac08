package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/PoluyanbIch/GoQuizBot/internal/config"
	"github.com/PoluyanbIch/GoQuizBot/internal/i18n"
	"github.com/PoluyanbIch/GoQuizBot/internal/logging"
	"github.com/PoluyanbIch/GoQuizBot/internal/metrics"
	"github.com/PoluyanbIch/GoQuizBot/internal/server"
	"github.com/PoluyanbIch/GoQuizBot/internal/service"
	"github.com/PoluyanbIch/GoQuizBot/internal/storage"
	"github.com/PoluyanbIch/GoQuizBot/internal/telegram"
)

// Application aggregates the bot and the infrastructure it runs on.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	quiz    *service.Quiz
	bot     *telegram.Bot
	http    *http.Server
	closers []io.Closer
}

// New loads the question bank, connects the configured backends and builds the bot.
// Any failure here is fatal: nothing has been received from Telegram yet.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	a := &Application{cfg: cfg, logger: logger}
	if err := a.build(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	cfg := a.cfg

	tr, err := i18n.New(cfg.Language, a.logger)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}

	store, err := service.LoadStore(cfg.Questions.Path, service.LoadOptions{Lenient: cfg.Questions.Lenient})
	if err != nil {
		return err
	}
	a.logger.Info().
		Str("path", cfg.Questions.Path).
		Int("questions", store.Len()).
		Int("topics", len(store.Topics())).
		Msg("question bank loaded")

	shuffler, err := service.NewSeededShuffler()
	if err != nil {
		return err
	}
	a.quiz = service.NewQuiz(store, shuffler)

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		a.closers = append(a.closers, redisClient)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	sessions, err := a.newSessionStore(redisClient)
	if err != nil {
		return err
	}
	leaderboard := newLeaderboard(cfg.Leaderboard, redisClient)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	machine := service.NewMachine(a.quiz, sessions, tr, service.MachineOptions{
		Leaderboard:    leaderboard,
		LeaderboardTop: cfg.Leaderboard.TopN,
		Metrics:        metrics.New(reg),
		Logger:         a.logger,
	})

	a.bot, err = telegram.NewBot(cfg.Telegram.Token, machine, a.logger, telegram.Options{
		Debug:         cfg.Telegram.Debug,
		UpdateTimeout: cfg.Telegram.UpdateTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect telegram: %w", err)
	}

	if cfg.Metrics.Addr != "" {
		a.http = server.NewHTTPServer(cfg.Metrics.Addr, reg, a.logger)
	}
	return nil
}

func (a *Application) newSessionStore(redisClient *redis.Client) (service.SessionStore, error) {
	cfg := a.cfg.Sessions
	switch cfg.Backend {
	case config.BackendRedis:
		return storage.NewRedisSessionStore(redisClient, cfg.TTL), nil
	case config.BackendSQLite:
		store, err := storage.NewSQLiteSessionStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open session database: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	default:
		return service.NewMemorySessionStore(), nil
	}
}

func newLeaderboard(cfg config.Leaderboard, redisClient *redis.Client) service.LeaderboardService {
	switch cfg.Backend {
	case config.BackendRedis:
		return service.NewRedisLeaderboardService(redisClient, "")
	case config.BackendOff:
		return nil
	default:
		return service.NewMemoryLeaderboardService()
	}
}

// Run polls Telegram until a termination signal arrives. SIGHUP reloads the question bank.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	if a.http != nil {
		go func() {
			a.logger.Info().Str("addr", a.http.Addr).Msg("metrics server listening")
			if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	botDone := make(chan struct{})
	go func() {
		a.bot.Start(ctx)
		close(botDone)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	var runErr error
loop:
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				_ = reloadQuestions(a.quiz, a.cfg.Questions, a.logger)
				continue
			}
			a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
			break loop
		case err := <-errCh:
			runErr = fmt.Errorf("metrics server error: %w", err)
			break loop
		case <-botDone:
			a.logger.Warn().Msg("update loop stopped")
			break loop
		case <-ctx.Done():
			a.logger.Warn().Msg("context canceled")
			break loop
		}
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer stop()

	select {
	case <-botDone:
	case <-shutdownCtx.Done():
		a.logger.Warn().Msg("update loop did not stop in time")
	}
	if a.http != nil {
		if err := a.http.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}
	a.close()

	a.logger.Info().Msg("shutdown complete")
	return runErr
}

func (a *Application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error().Err(err).Msg("close resource")
		}
	}
	a.closers = nil
}

// reloadQuestions re-reads the question bank and swaps it in. On failure the current bank stays.
func reloadQuestions(quiz *service.Quiz, cfg config.Questions, logger zerolog.Logger) error {
	store, err := service.LoadStore(cfg.Path, service.LoadOptions{Lenient: cfg.Lenient})
	if err != nil {
		logger.Error().Err(err).Msg("reload question bank, keeping the current one")
		return err
	}
	quiz.SwapStore(store)
	logger.Info().
		Int("questions", store.Len()).
		Int("topics", len(store.Topics())).
		Msg("question bank reloaded")
	return nil
}
