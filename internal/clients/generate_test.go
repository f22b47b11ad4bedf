package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quiz-proctor/internal/domain"
	"quiz-proctor/internal/infra/memory"
	"quiz-proctor/internal/throttle"
)

func TestGenerateParsesQuestions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/Generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req GenerationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Topic != "space" {
			t.Errorf("unexpected request body: %+v err=%v", req, err)
		}
		w.Write([]byte(`[{"question": "Closest star?", "opt1": "Sun", "opt2": "Sirius", "opt3": "Vega", "opt4": "Deneb", "correctOpt": "opt1"}]`))
	}))
	defer server.Close()

	client := NewGenerationClient(server.URL, time.Second)
	questions, err := client.Generate(context.Background(), GenerationRequest{Topic: "space", Count: 1})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(questions) != 1 || questions[0].Prompt != "Closest star?" {
		t.Fatalf("unexpected questions: %+v", questions)
	}
}

func TestGenerateEmptyResultIsGenerationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewGenerationClient(server.URL, time.Second)
	_, err := client.Generate(context.Background(), GenerationRequest{Topic: "space"})
	var ge *domain.GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("expected generation error, got %v", err)
	}
}

func TestGatedGeneratorSpendsAttemptsOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	var fail atomic.Bool
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			http.Error(w, "model unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"question": "q", "opt1": "a", "opt2": "b", "opt3": "c", "opt4": "d", "correctOpt": "opt1"}]`))
	}))
	defer server.Close()

	limiter := throttle.NewLimiter(memory.NewRecordStore(), clockwork.NewFakeClock(), 3, 2*time.Hour, zerolog.Nop())
	generator := NewGatedGenerator(NewGenerationClient(server.URL, time.Second), limiter)
	const fp = "device-1"

	// A failed generation does not burn an attempt.
	fail.Store(true)
	if _, _, err := generator.Generate(ctx, fp, GenerationRequest{Topic: "t"}); err == nil {
		t.Fatalf("expected generation failure")
	}
	fail.Store(false)

	for want := 2; want >= 0; want-- {
		_, decision, err := generator.Generate(ctx, fp, GenerationRequest{Topic: "t"})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if decision.AttemptsRemaining != want {
			t.Fatalf("expected %d attempts remaining, got %d", want, decision.AttemptsRemaining)
		}
	}

	// The fourth request is denied before reaching the service.
	before := calls.Load()
	_, _, err := generator.Generate(ctx, fp, GenerationRequest{Topic: "t"})
	var ce *domain.CooldownError
	if !errors.As(err, &ce) {
		t.Fatalf("expected cooldown error, got %v", err)
	}
	if calls.Load() != before {
		t.Fatalf("expected denial without a service call")
	}
}
