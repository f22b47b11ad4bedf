package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quiz-proctor/internal/domain"
	"quiz-proctor/internal/session"
)

type staticSource struct {
	quiz domain.Quiz
}

func (s *staticSource) FetchQuiz(_ context.Context, _, _ string) (domain.Quiz, error) {
	return s.quiz, nil
}

type recordingSink struct {
	results chan domain.Result
}

func (s *recordingSink) SubmitResult(_ context.Context, result domain.Result) error {
	s.results <- result
	return nil
}

func capitalsQuiz(timed bool) domain.Quiz {
	return domain.Quiz{
		ID:              "42",
		Title:           "Capitals",
		Timed:           timed,
		TimePerQuestion: 5 * time.Second,
		Questions: []domain.Question{
			{
				Prompt:  "Capital of France?",
				Options: []string{"Paris", "Lyon", "Nice", "Lille"},
				Answer:  domain.AnswerKey{Kind: domain.AnswerByOptionID, OptionID: "opt1"},
			},
			{
				Prompt:  "Capital of Spain?",
				Options: []string{"Sevilla", "Madrid", "Bilbao", "Valencia"},
				Answer:  domain.AnswerKey{Kind: domain.AnswerByOptionID, OptionID: "opt2"},
			},
		},
	}
}

func dialShell(t *testing.T, sink *recordingSink, clock clockwork.Clock, quiz domain.Quiz) (*websocket.Conn, func()) {
	t.Helper()
	handler := NewShellHandler(Deps{
		Source:  &staticSource{quiz: quiz},
		Sink:    sink,
		Clock:   clock,
		Session: session.Config{RestartDelay: 50 * time.Millisecond},
		Logger:  zerolog.Nop(),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/shell", handler.ServeShell)
	server := httptest.NewServer(mux)

	u := "ws" + server.URL[len("http"):] + "/shell"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		server.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func TestShellPlayThroughFlow(t *testing.T) {
	sink := &recordingSink{results: make(chan domain.Result, 1)}
	conn, cleanup := dialShell(t, sink, clockwork.NewRealClock(), capitalsQuiz(false))
	defer cleanup()

	// Initial snapshot arrives before any input.
	typ, payload := readNext(conn, t, "state")
	if payload["state"] != string(session.StateAwaitingConsent) {
		t.Fatalf("expected consent state first, got %s %v", typ, payload)
	}

	writeMsg(conn, t, "accept", nil)
	_, payload = readNext(conn, t, "state")
	if payload["state"] != string(session.StateAwaitingCredentials) {
		t.Fatalf("expected credentials state, got %v", payload)
	}

	writeMsg(conn, t, "join", map[string]any{"name": "Ana", "quizId": "42"})
	_, payload = readUntil(conn, t, "state")
	if payload["state"] != string(session.StateInProgress) {
		t.Fatalf("expected in_progress, got %v", payload)
	}
	question, ok := payload["question"].(map[string]any)
	if !ok || question["prompt"] != "Capital of France?" {
		t.Fatalf("expected first question in snapshot, got %v", payload)
	}

	writeMsg(conn, t, "answer", map[string]any{"question": 0, "option": "Paris"})
	writeMsg(conn, t, "advance", nil)
	readUntil(conn, t, "state")
	writeMsg(conn, t, "answer", map[string]any{"question": 1, "option": "Sevilla"})
	writeMsg(conn, t, "advance", nil)
	readUntil(conn, t, "finished")

	writeMsg(conn, t, "submit", nil)
	_, payload = readUntil(conn, t, "completed")
	if payload["score"] != float64(1) || payload["outOf"] != float64(2) {
		t.Fatalf("expected score 1/2, got %v", payload)
	}

	select {
	case result := <-sink.results:
		want := domain.Result{QuizID: "42", Participant: "Ana", Score: 1, OutOf: 2}
		if result != want {
			t.Fatalf("expected %+v posted, got %+v", want, result)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected result posted to sink")
	}
}

func TestShellSignalEscalation(t *testing.T) {
	sink := &recordingSink{results: make(chan domain.Result, 1)}
	conn, cleanup := dialShell(t, sink, clockwork.NewRealClock(), capitalsQuiz(false))
	defer cleanup()

	readNext(conn, t, "state")
	writeMsg(conn, t, "accept", nil)
	readNext(conn, t, "state")
	writeMsg(conn, t, "join", map[string]any{"name": "Ana", "quizId": "42"})
	readUntil(conn, t, "state")

	writeMsg(conn, t, "signal", map[string]any{"class": "tab-hidden"})
	if _, payload := readUntil(conn, t, "warning"); payload["violations"] != float64(1) {
		t.Fatalf("expected first tab switch to warn, got %v", payload)
	}

	writeMsg(conn, t, "signal", map[string]any{"class": "tab-hidden"})
	readUntil(conn, t, "blocked")
	// The forced restart follows after the render delay.
	readUntil(conn, t, "restarted")
}

func TestShellSuppressesCaptureKeys(t *testing.T) {
	sink := &recordingSink{results: make(chan domain.Result, 1)}
	conn, cleanup := dialShell(t, sink, clockwork.NewRealClock(), capitalsQuiz(false))
	defer cleanup()

	readNext(conn, t, "state")
	writeMsg(conn, t, "accept", nil)
	readNext(conn, t, "state")
	writeMsg(conn, t, "join", map[string]any{"name": "Ana", "quizId": "42"})
	readUntil(conn, t, "state")

	writeMsg(conn, t, "signal", map[string]any{"class": "capture-key", "detail": "PrintScreen"})
	_, payload := readUntil(conn, t, "signalAck")
	if payload["suppress"] != true {
		t.Fatalf("expected capture key suppressed, got %v", payload)
	}
}

func TestShellDisconnectMidCountdownIsClean(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := &recordingSink{results: make(chan domain.Result, 1)}
	conn, cleanup := dialShell(t, sink, clock, capitalsQuiz(true))
	defer cleanup()

	readNext(conn, t, "state")
	writeMsg(conn, t, "accept", nil)
	readNext(conn, t, "state")
	writeMsg(conn, t, "join", map[string]any{"name": "Ana", "quizId": "42"})
	readUntil(conn, t, "state")
	clock.BlockUntil(1)

	// Drop the shell while the countdown is live. Ticks landing during the
	// teardown window must be discarded, not pushed into a retired channel.
	conn.Close()
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		time.Sleep(10 * time.Millisecond)
	}
}

func writeMsg(conn *websocket.Conn, t *testing.T, msgType string, payload map[string]any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}

// readUntil skips interleaved events (ticks, fullscreen commands) until the
// wanted type arrives.
func readUntil(conn *websocket.Conn, t *testing.T, want string) (string, map[string]any) {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == want {
			return typ, payload
		}
	}
	t.Fatalf("never received %s", want)
	return "", nil
}
