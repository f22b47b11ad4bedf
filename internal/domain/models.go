package domain

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// AnswerKeyKind tags how a question's correct answer is designated.
type AnswerKeyKind string

const (
	// AnswerByOptionID designates the correct option by its slot ("opt1".."opt4").
	AnswerByOptionID AnswerKeyKind = "option-id"
	// AnswerByText designates the correct option by its literal text.
	AnswerByText AnswerKeyKind = "text"
)

// AnswerKey identifies the correct option of a question. The two wire variants
// (option-slot keys and literal-text keys, the latter sometimes Base64-obfuscated)
// are unified here so scoring has a single code path.
type AnswerKey struct {
	Kind     AnswerKeyKind
	OptionID string // set when Kind == AnswerByOptionID
	Text     string // set when Kind == AnswerByText, already decoded
}

// CorrectText resolves the key to the literal text of the correct option.
// Returns "" when an option-slot key does not match any option.
func (k AnswerKey) CorrectText(options []string) string {
	switch k.Kind {
	case AnswerByText:
		return k.Text
	case AnswerByOptionID:
		idx := optionSlot(k.OptionID)
		if idx < 0 || idx >= len(options) {
			return ""
		}
		return options[idx]
	}
	return ""
}

// optionSlot maps "opt1".."opt4" to a zero-based index, -1 when malformed.
func optionSlot(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "opt"))
	if err != nil || n < 1 {
		return -1
	}
	return n - 1
}

// DecodeTextKey decodes a Base64-obfuscated answer text. A value that does not
// decode is treated as already-plain text rather than an error.
func DecodeTextKey(raw string) string {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return raw
	}
	return string(decoded)
}

// Question is a four-option multiple-choice question. Immutable once loaded.
type Question struct {
	Prompt  string
	Options []string
	Answer  AnswerKey
}

// Quiz is the content of one playable quiz.
type Quiz struct {
	ID              string
	Title           string
	Timed           bool
	TimePerQuestion time.Duration // per-question budget; meaningful only when Timed
	Questions       []Question
}

// Result is the final outcome of a session, posted to the submission service.
type Result struct {
	QuizID      string
	Participant string
	Score       int
	OutOf       int
}

// Topic is an entry in the browsable topic catalog.
type Topic struct {
	ID   string `json:"topicId"`
	Name string `json:"name"`
}
