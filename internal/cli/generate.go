package cli

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quiz-proctor/internal/clients"
	"quiz-proctor/internal/config"
	filestore "quiz-proctor/internal/infra/file"
	"quiz-proctor/internal/throttle"
)

// NewGenerateCmd builds a one-shot generation command, gated through the same
// per-device rate limiter the shell uses.
func NewGenerateCmd(configPath *string) *cobra.Command {
	var (
		topic      string
		count      int
		difficulty string
		language   string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a quiz from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), *configPath, clients.GenerationRequest{
				Topic:      topic,
				Count:      count,
				Difficulty: difficulty,
				Language:   language,
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "topic to generate questions about")
	cmd.Flags().IntVar(&count, "count", 5, "number of questions")
	cmd.Flags().StringVar(&difficulty, "difficulty", "medium", "question difficulty")
	cmd.Flags().StringVar(&language, "language", "en", "question language")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func runGenerate(ctx context.Context, configPath string, req clients.GenerationRequest) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	path := cfg.Throttle.Path
	if path == "" {
		path = "throttle.json"
	}
	limiter := throttle.NewLimiter(
		filestore.NewRecordStore(path),
		clockwork.NewRealClock(),
		cfg.Throttle.Limit,
		config.DurationOr(cfg.Throttle.Cooldown, throttle.DefaultCooldown),
		logger,
	)

	timeout := config.DurationOr(cfg.Services.Timeout, 120*time.Second)
	generator := clients.NewGatedGenerator(clients.NewGenerationClient(cfg.Services.GenerateURL, timeout), limiter)

	fingerprint := throttle.Fingerprint(throttle.LocalTraits())
	questions, decision, err := generator.Generate(ctx, fingerprint, req)
	if err != nil {
		return err
	}

	logger.Info().Int("questions", len(questions)).Int("attempts_remaining", decision.AttemptsRemaining).Msg("quiz generated")
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(questions)
}
