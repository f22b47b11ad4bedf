package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quiz-proctor/internal/clients"
	"quiz-proctor/internal/config"
	filestore "quiz-proctor/internal/infra/file"
	"quiz-proctor/internal/infra/memory"
	redisstore "quiz-proctor/internal/infra/redis"
	sqlitestore "quiz-proctor/internal/infra/sqlite"
	"quiz-proctor/internal/session"
	"quiz-proctor/internal/throttle"
	transport "quiz-proctor/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the engine.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the proctor engine and serve the shell endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), *configPath, *port)
		},
	}
}

func runEngine(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8090"
	}

	clock := clockwork.NewRealClock()
	timeout := config.DurationOr(cfg.Services.Timeout, 30*time.Second)

	store, cleanup, err := buildRecordStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	limiter := throttle.NewLimiter(
		store,
		clock,
		cfg.Throttle.Limit,
		config.DurationOr(cfg.Throttle.Cooldown, throttle.DefaultCooldown),
		logger,
	)

	quizData := clients.NewQuizDataClient(cfg.Services.QuizDataURL, timeout)
	submission := clients.NewSubmissionClient(cfg.Services.SubmitURL, timeout)
	catalog := clients.NewTopicCatalog(quizData, config.DurationOr(cfg.Topics.TTL, 10*time.Minute))

	var generator *clients.GatedGenerator
	if cfg.Services.GenerateURL != "" {
		generator = clients.NewGatedGenerator(clients.NewGenerationClient(cfg.Services.GenerateURL, timeout), limiter)
	}

	shell := transport.NewShellHandler(transport.Deps{
		Source:    quizData,
		Sink:      submission,
		Generator: generator,
		Clock:     clock,
		Session: session.Config{
			RestartDelay: config.DurationOr(cfg.Session.RestartDelay, 3*time.Second),
			Scoring:      session.ScoreOptions{Normalize: cfg.Session.NormalizeAnswers},
		},
		Logger: logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/shell", shell.ServeShell)
	mux.HandleFunc("/topics", func(w http.ResponseWriter, r *http.Request) {
		topics, err := catalog.Topics(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, topics, logger)
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // shell connections are long-lived websockets
	}

	go func() {
		logger.Info().Str("port", finalPort).Msg("starting proctor engine")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildRecordStore wires the configured throttle backend: a JSON file by
// default, with redis and sqlite variants for shared or durable history.
func buildRecordStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (throttle.RecordStore, func(), error) {
	noop := func() {}
	switch cfg.Throttle.Store {
	case "", "file":
		path := cfg.Throttle.Path
		if path == "" {
			path = "throttle.json"
		}
		return filestore.NewRecordStore(path), noop, nil
	case "memory":
		return memory.NewRecordStore(), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Throttle.Redis.Addr,
			Password: cfg.Throttle.Redis.Password,
			DB:       cfg.Throttle.Redis.DB,
		})
		ttl := config.DurationOr(cfg.Throttle.Redis.TTL, 4*time.Hour)
		return redisstore.NewRecordStore(client, ttl), func() { _ = client.Close() }, nil
	case "sqlite":
		path := cfg.Throttle.Path
		if path == "" {
			path = "throttle.db"
		}
		db, err := sqlitestore.Open(path)
		if err != nil {
			return nil, noop, err
		}
		if err := applyMigrations(ctx, db); err != nil {
			db.Close()
			return nil, noop, err
		}
		return sqlitestore.NewRecordStore(db), func() { _ = db.Close() }, nil
	default:
		logger.Warn().Str("store", cfg.Throttle.Store).Msg("unknown throttle store, falling back to memory")
		return memory.NewRecordStore(), noop, nil
	}
}

func writeJSON(w http.ResponseWriter, v any, logger zerolog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("failed to write response")
	}
}
