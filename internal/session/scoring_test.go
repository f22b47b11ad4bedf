package session

import (
	"testing"

	"quiz-proctor/internal/domain"
)

func TestScoreCountsExactMatches(t *testing.T) {
	questions := textKeyQuestions("A", "B", "C", "D", "A")
	answers := map[int]string{
		0: "A",
		1: "B",
		2: "X",
		3: "D",
		// question 4 unanswered
	}

	if got := Score(questions, answers, ScoreOptions{}); got != 3 {
		t.Fatalf("expected score 3, got %d", got)
	}
}

func TestScoreIsExactWithoutNormalize(t *testing.T) {
	questions := textKeyQuestions("Paris")
	answers := map[int]string{0: " paris "}

	if got := Score(questions, answers, ScoreOptions{}); got != 0 {
		t.Fatalf("expected exact comparison to reject, got %d", got)
	}
	if got := Score(questions, answers, ScoreOptions{Normalize: true}); got != 1 {
		t.Fatalf("expected normalized comparison to accept, got %d", got)
	}
}

func TestScoreResolvesOptionSlotKeys(t *testing.T) {
	questions := []domain.Question{
		{
			Prompt:  "pick",
			Options: []string{"alpha", "beta", "gamma", "delta"},
			Answer:  domain.AnswerKey{Kind: domain.AnswerByOptionID, OptionID: "opt3"},
		},
	}
	if got := Score(questions, map[int]string{0: "gamma"}, ScoreOptions{}); got != 1 {
		t.Fatalf("expected option slot to resolve to gamma, got score %d", got)
	}
	if got := Score(questions, map[int]string{0: "opt3"}, ScoreOptions{}); got != 0 {
		t.Fatalf("slot identifiers are not answer text, got score %d", got)
	}
}

func TestScoreIgnoresMalformedKeys(t *testing.T) {
	questions := []domain.Question{
		{
			Prompt:  "broken",
			Options: []string{"a", "b", "c", "d"},
			Answer:  domain.AnswerKey{Kind: domain.AnswerByOptionID, OptionID: "opt9"},
		},
	}
	if got := Score(questions, map[int]string{0: "a"}, ScoreOptions{}); got != 0 {
		t.Fatalf("expected unresolvable key to never match, got %d", got)
	}
}

func textKeyQuestions(correct ...string) []domain.Question {
	questions := make([]domain.Question, 0, len(correct))
	for _, text := range correct {
		questions = append(questions, domain.Question{
			Prompt:  "q",
			Options: []string{"A", "B", "C", "D"},
			Answer:  domain.AnswerKey{Kind: domain.AnswerByText, Text: text},
		})
	}
	return questions
}
