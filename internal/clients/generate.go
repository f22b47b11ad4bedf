package clients

import (
	"context"
	"time"

	"quiz-proctor/internal/domain"
	"quiz-proctor/internal/throttle"
)

// GenerationRequest describes a quiz to generate.
type GenerationRequest struct {
	Topic      string `json:"topic"`
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
	Language   string `json:"language"`
}

// GenerationClient calls the AI generation service.
type GenerationClient struct {
	c *Client
}

func NewGenerationClient(baseURL string, timeout time.Duration) *GenerationClient {
	return &GenerationClient{c: New(baseURL, timeout)}
}

// Generate requests a fresh question set. A failed call or an empty result is
// a GenerationError.
func (g *GenerationClient) Generate(ctx context.Context, req GenerationRequest) ([]domain.Question, error) {
	var wire []wireQuestion
	if err := g.c.post(ctx, "/Generate", req, &wire); err != nil {
		return nil, &domain.GenerationError{Err: err}
	}
	if len(wire) == 0 {
		return nil, &domain.GenerationError{Err: domain.ErrNoQuestions}
	}
	questions := make([]domain.Question, 0, len(wire))
	for _, wq := range wire {
		questions = append(questions, domain.Question{
			Prompt:  wq.Question,
			Options: []string{wq.Opt1, wq.Opt2, wq.Opt3, wq.Opt4},
			Answer:  domain.AnswerKey{Kind: domain.AnswerByOptionID, OptionID: wq.CorrectOpt},
		})
	}
	return questions, nil
}

// GatedGenerator puts the rate limiter in front of the generation service.
// An attempt is only spent after generation succeeds: a failed call does not
// burn one of the device's attempts.
type GatedGenerator struct {
	client  *GenerationClient
	limiter *throttle.Limiter
}

func NewGatedGenerator(client *GenerationClient, limiter *throttle.Limiter) *GatedGenerator {
	return &GatedGenerator{client: client, limiter: limiter}
}

// Generate runs one gated generation for the given device fingerprint.
func (g *GatedGenerator) Generate(ctx context.Context, fingerprint string, req GenerationRequest) ([]domain.Question, throttle.Decision, error) {
	decision := g.limiter.Check(ctx, fingerprint)
	if !decision.Allowed {
		if decision.RetryAfter > 0 {
			return nil, decision, &domain.CooldownError{RetryAfter: decision.RetryAfter}
		}
		return nil, decision, domain.ErrAttemptsExhausted
	}

	questions, err := g.client.Generate(ctx, req)
	if err != nil {
		return nil, decision, err
	}
	g.limiter.RecordAttempt(ctx, fingerprint)
	decision.AttemptsRemaining--
	return questions, decision, nil
}
