package clients

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"quiz-proctor/internal/domain"
)

// QuizDataClient talks to the remote quiz-data service.
type QuizDataClient struct {
	c *Client
}

func NewQuizDataClient(baseURL string, timeout time.Duration) *QuizDataClient {
	return &QuizDataClient{c: New(baseURL, timeout)}
}

type wireQuestion struct {
	Question   string `json:"question"`
	Opt1       string `json:"opt1"`
	Opt2       string `json:"opt2"`
	Opt3       string `json:"opt3"`
	Opt4       string `json:"opt4"`
	CorrectOpt string `json:"correctOpt"`
}

type playResponse struct {
	Quiz struct {
		QuizTitle string `json:"quizTitle"`
		Timer     bool   `json:"timer"`
		TimePerQ  int    `json:"timePerQ"` // minutes
	} `json:"quiz"`
	Questions []wireQuestion `json:"questions"`
}

// FetchQuiz loads the question set for a join. Any service failure or an
// empty question list surfaces as a JoinError; the answer key arrives as an
// option-slot identifier ("opt1".."opt4").
func (q *QuizDataClient) FetchQuiz(ctx context.Context, quizID, participantName string) (domain.Quiz, error) {
	path := fmt.Sprintf("/Play/%s/%s", url.PathEscape(quizID), url.PathEscape(participantName))
	var resp playResponse
	if err := q.c.get(ctx, path, &resp); err != nil {
		return domain.Quiz{}, &domain.JoinError{Err: err}
	}
	if len(resp.Questions) == 0 {
		return domain.Quiz{}, &domain.JoinError{Err: domain.ErrNoQuestions}
	}

	quiz := domain.Quiz{
		ID:              quizID,
		Title:           resp.Quiz.QuizTitle,
		Timed:           resp.Quiz.Timer,
		TimePerQuestion: time.Duration(resp.Quiz.TimePerQ) * time.Minute,
		Questions:       make([]domain.Question, 0, len(resp.Questions)),
	}
	for _, wq := range resp.Questions {
		quiz.Questions = append(quiz.Questions, domain.Question{
			Prompt:  wq.Question,
			Options: []string{wq.Opt1, wq.Opt2, wq.Opt3, wq.Opt4},
			Answer:  domain.AnswerKey{Kind: domain.AnswerByOptionID, OptionID: wq.CorrectOpt},
		})
	}
	return quiz, nil
}

// Topics lists the browsable topic catalog.
func (q *QuizDataClient) Topics(ctx context.Context) ([]domain.Topic, error) {
	var topics []domain.Topic
	if err := q.c.get(ctx, "/Topics", &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// FetchLive loads the live quiz for a topic. On this endpoint the answer key
// is the literal correct text, Base64-obfuscated on the wire; it is decoded
// once here so scoring sees plain text.
func (q *QuizDataClient) FetchLive(ctx context.Context, topicID string) (domain.Quiz, error) {
	path := "/Live/" + url.PathEscape(topicID)
	var questions []wireQuestion
	if err := q.c.get(ctx, path, &questions); err != nil {
		return domain.Quiz{}, &domain.JoinError{Err: err}
	}
	if len(questions) == 0 {
		return domain.Quiz{}, &domain.JoinError{Err: domain.ErrNoQuestions}
	}

	quiz := domain.Quiz{
		ID:        topicID,
		Title:     topicID,
		Questions: make([]domain.Question, 0, len(questions)),
	}
	for _, wq := range questions {
		quiz.Questions = append(quiz.Questions, domain.Question{
			Prompt:  wq.Question,
			Options: []string{wq.Opt1, wq.Opt2, wq.Opt3, wq.Opt4},
			Answer:  domain.AnswerKey{Kind: domain.AnswerByText, Text: domain.DecodeTextKey(wq.CorrectOpt)},
		})
	}
	return quiz, nil
}
