package session

import (
	"strings"

	"quiz-proctor/internal/domain"
)

// ScoreOptions configures answer comparison. Whether case and whitespace
// matter is an explicit flag rather than a silent default; exact match is
// the baseline.
type ScoreOptions struct {
	// Normalize lower-cases and trims both sides before comparing.
	Normalize bool
}

// Score counts the questions whose recorded answer exactly matches the correct
// option's text. Unanswered questions never count; there is no partial credit.
func Score(questions []domain.Question, answers map[int]string, opts ScoreOptions) int {
	correct := 0
	for i, q := range questions {
		selected, ok := answers[i]
		if !ok {
			continue
		}
		want := q.Answer.CorrectText(q.Options)
		if want == "" {
			continue
		}
		if opts.Normalize {
			selected = strings.ToLower(strings.TrimSpace(selected))
			want = strings.ToLower(strings.TrimSpace(want))
		}
		if selected == want {
			correct++
		}
	}
	return correct
}
