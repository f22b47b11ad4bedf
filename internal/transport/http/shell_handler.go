package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quiz-proctor/internal/clients"
	"quiz-proctor/internal/domain"
	"quiz-proctor/internal/session"
	"quiz-proctor/internal/throttle"
)

// Deps carries everything a shell connection needs to run a session.
type Deps struct {
	Source    session.QuizSource
	Sink      session.ResultSink
	Generator *clients.GatedGenerator // nil disables the generate message
	Clock     clockwork.Clock
	Session   session.Config
	Logger    zerolog.Logger
}

// ShellHandler owns the local WebSocket endpoint the UI shell dials. Each
// connection gets its own session controller; the shell renders outbound
// state and forwards environment signals (focus, visibility, pointer,
// capture keys) inbound.
type ShellHandler struct {
	deps     Deps
	upgrader websocket.Upgrader
}

func NewShellHandler(deps Deps) *ShellHandler {
	return &ShellHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The shell is served from the local filesystem or another port.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type joinPayload struct {
	Name   string `json:"name"`
	QuizID string `json:"quizId"`
}

type answerPayload struct {
	Question int    `json:"question"`
	Option   string `json:"option"`
}

type signalPayload struct {
	Class  string `json:"class"`
	Detail string `json:"detail"`
}

type generatePayload struct {
	Topic      string `json:"topic"`
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
	Language   string `json:"language"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type shellQuestion struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type statePayload struct {
	State          string        `json:"state"`
	QuizTitle      string        `json:"quizTitle,omitempty"`
	QuestionIndex  int           `json:"questionIndex"`
	QuestionTotal  int           `json:"questionTotal"`
	Question       shellQuestion `json:"question,omitempty"`
	Remaining      int           `json:"remaining"`
	ViolationCount int           `json:"violationCount"`
}

// ServeShell upgrades the request and runs the session loop for one shell.
func (h *ShellHandler) ServeShell(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.deps.Logger.Warn().Err(err).Msg("shell upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.deps.Logger.Warn().Err(err).Msg("shell write error")
				return
			}
		}
	}()

	// Hooks fire from timer goroutines; never block them on a slow shell, and
	// never let one reach the channel once teardown has closed it. Sends and
	// the closed-flag flip share one mutex, so close(send) below cannot
	// interleave with an in-flight send.
	var sendMu sync.Mutex
	sendClosed := false
	push := func(msg outboundMessage) {
		sendMu.Lock()
		defer sendMu.Unlock()
		if sendClosed {
			return
		}
		select {
		case send <- msg:
		default:
			h.deps.Logger.Warn().Str("type", msg.Type).Msg("shell send buffer full, dropping event")
		}
	}

	ctrl := session.NewController(h.deps.Source, h.deps.Sink, h.deps.Clock, h.deps.Session, session.Hooks{
		Tick: func(remaining int) {
			push(outboundMessage{Type: "tick", Payload: map[string]int{"remaining": remaining}})
		},
		Advanced: func(index int) {
			push(outboundMessage{Type: "advanced", Payload: map[string]int{"index": index}})
		},
		Finished: func() {
			push(outboundMessage{Type: "finished"})
		},
		Warning: func(reason string, violations int) {
			push(outboundMessage{Type: "warning", Payload: map[string]any{"reason": reason, "violations": violations}})
		},
		Blocked: func(reason string, restartIn time.Duration) {
			push(outboundMessage{Type: "blocked", Payload: map[string]any{"reason": reason, "restartInMs": restartIn.Milliseconds()}})
		},
		Completed: func(result domain.Result) {
			push(outboundMessage{Type: "completed", Payload: map[string]any{"score": result.Score, "outOf": result.OutOf}})
		},
		Restarted: func() {
			push(outboundMessage{Type: "restarted"})
		},
		EnterFullscreen: func() {
			push(outboundMessage{Type: "fullscreen", Payload: map[string]bool{"on": true}})
		},
		ExitFullscreen: func() {
			push(outboundMessage{Type: "fullscreen", Payload: map[string]bool{"on": false}})
		},
	}, h.deps.Logger)

	fingerprint := throttle.Fingerprint(throttle.LocalTraits())

	push(outboundMessage{Type: "state", Payload: snapshotPayload(ctrl)})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "accept":
			if err := ctrl.AcceptRules(); err != nil {
				push(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			push(outboundMessage{Type: "state", Payload: snapshotPayload(ctrl)})

		case "join":
			var payload joinPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid join payload"}})
				continue
			}
			if err := ctrl.Join(r.Context(), payload.Name, payload.QuizID); err != nil {
				push(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			push(outboundMessage{Type: "state", Payload: snapshotPayload(ctrl)})

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			ctrl.SelectAnswer(payload.Question, payload.Option)

		case "advance":
			ctrl.Advance()
			push(outboundMessage{Type: "state", Payload: snapshotPayload(ctrl)})

		case "submit":
			if _, err := ctrl.Submit(r.Context()); err != nil {
				push(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
			}

		case "signal":
			var payload signalPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid signal payload"}})
				continue
			}
			verdict := ctrl.ObserveSignal(session.Signal{
				Class:  session.SignalClass(payload.Class),
				Detail: payload.Detail,
			})
			push(outboundMessage{Type: "signalAck", Payload: map[string]bool{"suppress": verdict.Suppress}})

		case "traits":
			var traits throttle.Traits
			if err := json.Unmarshal(inbound.Payload, &traits); err != nil {
				push(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid traits payload"}})
				continue
			}
			fingerprint = throttle.Fingerprint(traits)

		case "generate":
			h.handleGenerate(r.Context(), inbound.Payload, fingerprint, push)

		default:
			push(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	// Stop the session first so its timers quiesce, then retire the channel.
	ctrl.Shutdown()
	sendMu.Lock()
	sendClosed = true
	sendMu.Unlock()
	close(send)
	<-writerDone
}

func (h *ShellHandler) handleGenerate(ctx context.Context, raw json.RawMessage, fingerprint string, push func(outboundMessage)) {
	if h.deps.Generator == nil {
		push(outboundMessage{Type: "error", Payload: errorPayload{Message: "generation is not configured"}})
		return
	}
	var payload generatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		push(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid generate payload"}})
		return
	}
	questions, decision, err := h.deps.Generator.Generate(ctx, fingerprint, clients.GenerationRequest{
		Topic:      payload.Topic,
		Count:      payload.Count,
		Difficulty: payload.Difficulty,
		Language:   payload.Language,
	})
	if err != nil {
		push(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	shellQuestions := make([]shellQuestion, 0, len(questions))
	for _, q := range questions {
		shellQuestions = append(shellQuestions, shellQuestion{Prompt: q.Prompt, Options: q.Options})
	}
	push(outboundMessage{Type: "generated", Payload: map[string]any{
		"questions":         shellQuestions,
		"attemptsRemaining": decision.AttemptsRemaining,
	}})
}

func snapshotPayload(ctrl *session.Controller) statePayload {
	snap := ctrl.Snapshot()
	return statePayload{
		State:          string(snap.State),
		QuizTitle:      snap.QuizTitle,
		QuestionIndex:  snap.QuestionIndex,
		QuestionTotal:  snap.QuestionTotal,
		Question:       shellQuestion{Prompt: snap.Question.Prompt, Options: snap.Question.Options},
		Remaining:      snap.Remaining,
		ViolationCount: snap.ViolationCount,
	}
}
