package clients

import (
	"context"
	"strconv"
	"time"

	"quiz-proctor/internal/domain"
)

// SubmissionClient posts final results to the submission service.
type SubmissionClient struct {
	c *Client
}

func NewSubmissionClient(baseURL string, timeout time.Duration) *SubmissionClient {
	return &SubmissionClient{c: New(baseURL, timeout)}
}

type submitRequest struct {
	QuizID          string `json:"quizId"`
	ParticipantName string `json:"participantName"`
	Score           string `json:"score"`
	OutOf           string `json:"outOf"`
}

// SubmitResult posts the score. Score and outOf travel as strings on the
// wire. Any non-2xx outcome is a SubmissionError; the caller decides whether
// to retry.
func (s *SubmissionClient) SubmitResult(ctx context.Context, result domain.Result) error {
	req := submitRequest{
		QuizID:          result.QuizID,
		ParticipantName: result.Participant,
		Score:           strconv.Itoa(result.Score),
		OutOf:           strconv.Itoa(result.OutOf),
	}
	if err := s.c.post(ctx, "/Play/Submit", req, nil); err != nil {
		return &domain.SubmissionError{Err: err}
	}
	return nil
}
