package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quiz-proctor/internal/domain"
)

// State is the session state machine position.
type State string

const (
	StateAwaitingConsent     State = "awaiting_consent"
	StateAwaitingCredentials State = "awaiting_credentials"
	StateLoading             State = "loading"
	StateInProgress          State = "in_progress"
	StateBlocked             State = "blocked"
	StateSubmitting          State = "submitting"
	StateCompleted           State = "completed"
)

// QuizSource fetches the question set for a participant joining a quiz.
type QuizSource interface {
	FetchQuiz(ctx context.Context, quizID, participantName string) (domain.Quiz, error)
}

// ResultSink posts the final score to the submission service.
type ResultSink interface {
	SubmitResult(ctx context.Context, result domain.Result) error
}

// Hooks are optional callbacks for user-visible session events. Nil entries
// are skipped. EnterFullscreen/ExitFullscreen are best-effort environment
// commands; their failure never blocks the session.
type Hooks struct {
	Tick            func(remaining int)
	Advanced        func(index int)
	Finished        func() // all questions answered, session is ready to submit
	Warning         func(reason string, violations int)
	Blocked         func(reason string, restartIn time.Duration)
	Completed       func(result domain.Result)
	Restarted       func()
	EnterFullscreen func()
	ExitFullscreen  func()
}

// Config carries session policy knobs.
type Config struct {
	// RestartDelay is the pause between a fatal violation and the forced
	// restart, long enough for the terminal message to render.
	RestartDelay time.Duration
	Scoring      ScoreOptions
}

const defaultRestartDelay = 3 * time.Second

// Controller owns one participant's attempt at one quiz: the state machine
// from join to completion, the per-question countdown, and the integrity
// monitor. Timer and monitor callbacks are epoch-guarded so handlers scheduled
// against an earlier run become no-ops after an advance or restart.
type Controller struct {
	clock  clockwork.Clock
	logger zerolog.Logger
	source QuizSource
	sink   ResultSink
	hooks  Hooks
	cfg    Config

	timer   *Countdown
	monitor *Monitor

	mu          sync.Mutex
	state       State
	epoch       uuid.UUID
	quiz        domain.Quiz
	quizID      string
	participant string
	current     int
	answers     map[int]string
	violations  int
	submitted   bool
	score       int
	closed      bool
}

func NewController(source QuizSource, sink ResultSink, clock clockwork.Clock, cfg Config, hooks Hooks, logger zerolog.Logger) *Controller {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	return &Controller{
		clock:   clock,
		logger:  logger.With().Str("component", "session").Logger(),
		source:  source,
		sink:    sink,
		hooks:   hooks,
		cfg:     cfg,
		timer:   NewCountdown(clock),
		monitor: NewMonitor(),
		state:   StateAwaitingConsent,
		epoch:   uuid.New(),
	}
}

// State reports the current state machine position.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot is a read-only view of the session for rendering.
type Snapshot struct {
	State          State
	QuizTitle      string
	QuestionIndex  int
	QuestionTotal  int
	Question       domain.Question
	Remaining      int
	ViolationCount int
	Score          int
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:          c.state,
		QuizTitle:      c.quiz.Title,
		QuestionIndex:  c.current,
		QuestionTotal:  len(c.quiz.Questions),
		Remaining:      c.timer.Remaining(),
		ViolationCount: c.violations,
		Score:          c.score,
	}
	if c.state == StateInProgress && c.current < len(c.quiz.Questions) {
		snap.Question = c.quiz.Questions[c.current]
	}
	return snap
}

// AcceptRules acknowledges the exam rules and moves on to credential entry.
func (c *Controller) AcceptRules() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state != StateAwaitingConsent {
		return domain.ErrInvalidTransition
	}
	c.state = StateAwaitingCredentials
	return nil
}

// Join fetches the question set and starts the run. On any failure the state
// returns to AwaitingCredentials and the error is surfaced as a JoinError.
func (c *Controller) Join(ctx context.Context, participantName, quizID string) error {
	c.mu.Lock()
	if c.closed || c.state != StateAwaitingCredentials {
		c.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	if participantName == "" || quizID == "" {
		c.mu.Unlock()
		return &domain.JoinError{Err: domain.ErrEmptyCredentials}
	}
	c.state = StateLoading
	c.mu.Unlock()

	quiz, err := c.source.FetchQuiz(ctx, quizID, participantName)
	if err == nil && len(quiz.Questions) == 0 {
		err = domain.ErrNoQuestions
	}
	if err != nil {
		c.mu.Lock()
		c.state = StateAwaitingCredentials
		c.mu.Unlock()
		c.logger.Warn().Str("quiz_id", quizID).Err(err).Msg("join failed")
		if je, ok := err.(*domain.JoinError); ok {
			return je
		}
		return &domain.JoinError{Err: err}
	}

	c.mu.Lock()
	epoch := uuid.New()
	c.epoch = epoch
	c.quiz = quiz
	c.quizID = quizID
	c.participant = participantName
	c.current = 0
	c.answers = make(map[int]string)
	c.violations = 0
	c.submitted = false
	c.score = 0
	c.state = StateInProgress
	timed := quiz.Timed
	budget := c.budgetSecondsLocked()
	c.mu.Unlock()

	c.logger.Info().
		Str("quiz_id", quizID).
		Str("participant", participantName).
		Int("questions", len(quiz.Questions)).
		Bool("timed", timed).
		Msg("session started")

	c.call(c.hooks.EnterFullscreen)
	c.monitor.Subscribe()
	if timed {
		c.startClock(epoch, 0, budget)
	}
	return nil
}

// SelectAnswer records the answer for a question; the last write wins. A call
// after submission or outside an active run is a no-op.
func (c *Controller) SelectAnswer(questionIndex int, optionText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.submitted || c.state != StateInProgress {
		return
	}
	if questionIndex < 0 || questionIndex >= len(c.quiz.Questions) {
		return
	}
	c.answers[questionIndex] = optionText
}

// Advance moves to the next question, restarting the countdown, or to
// Submitting when the current question is the last one. Invoked by explicit
// user action; timer expiry takes the same path internally. Each advance is
// bound to the question it leaves: a timer expiry racing a user advance finds
// the index already moved and becomes a no-op, so one question never skips two.
func (c *Controller) Advance() {
	c.mu.Lock()
	epoch := c.epoch
	index := c.current
	c.mu.Unlock()
	c.advanceFrom(epoch, index)
}

func (c *Controller) advanceFrom(epoch uuid.UUID, fromIndex int) {
	c.mu.Lock()
	if c.closed || c.epoch != epoch || c.state != StateInProgress || c.current != fromIndex {
		c.mu.Unlock()
		return
	}
	if c.current+1 < len(c.quiz.Questions) {
		c.current++
		idx := c.current
		timed := c.quiz.Timed
		budget := c.budgetSecondsLocked()
		c.mu.Unlock()

		if c.hooks.Advanced != nil {
			c.hooks.Advanced(idx)
		}
		if timed {
			c.startClock(epoch, idx, budget)
		}
		return
	}

	c.state = StateSubmitting
	c.mu.Unlock()
	c.timer.Cancel()
	c.monitor.Unsubscribe()
	c.call(c.hooks.Finished)
}

// Submit scores the recorded answers and posts the result. On failure the
// session stays in Submitting so the caller may retry; there is no automatic
// retry. An early submit from InProgress finishes the run immediately.
func (c *Controller) Submit(ctx context.Context) (domain.Result, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.Result{}, domain.ErrInvalidTransition
	}
	switch c.state {
	case StateInProgress, StateSubmitting:
	case StateCompleted:
		c.mu.Unlock()
		return domain.Result{}, domain.ErrAlreadySubmitted
	default:
		c.mu.Unlock()
		return domain.Result{}, domain.ErrInvalidTransition
	}
	c.state = StateSubmitting
	result := domain.Result{
		QuizID:      c.quizID,
		Participant: c.participant,
		Score:       Score(c.quiz.Questions, c.answers, c.cfg.Scoring),
		OutOf:       len(c.quiz.Questions),
	}
	c.mu.Unlock()

	c.timer.Cancel()
	c.monitor.Unsubscribe()
	c.call(c.hooks.ExitFullscreen)

	if err := c.sink.SubmitResult(ctx, result); err != nil {
		c.logger.Warn().Err(err).Msg("result submission failed")
		if se, ok := err.(*domain.SubmissionError); ok {
			return domain.Result{}, se
		}
		return domain.Result{}, &domain.SubmissionError{Err: err}
	}

	c.mu.Lock()
	c.state = StateCompleted
	c.submitted = true
	c.score = result.Score
	c.mu.Unlock()

	c.logger.Info().
		Str("quiz_id", result.QuizID).
		Int("score", result.Score).
		Int("out_of", result.OutOf).
		Msg("session completed")
	if c.hooks.Completed != nil {
		c.hooks.Completed(result)
	}
	return result, nil
}

// ObserveSignal feeds one environment signal through the integrity policy and
// applies the outcome: warnings notify and count; fatal verdicts block the
// session and schedule a forced restart after the configured delay.
func (c *Controller) ObserveSignal(sig Signal) Verdict {
	v := c.monitor.Observe(sig)
	if !v.Warning && !v.Fatal {
		return v
	}

	c.mu.Lock()
	if c.state != StateInProgress {
		c.mu.Unlock()
		return Verdict{Suppress: v.Suppress}
	}
	c.violations++
	count := c.violations
	epoch := c.epoch
	delay := c.cfg.RestartDelay

	if !v.Fatal {
		c.mu.Unlock()
		c.logger.Warn().Str("signal", string(sig.Class)).Int("violations", count).Msg("integrity warning")
		if c.hooks.Warning != nil {
			c.hooks.Warning(violationReason(sig.Class), count)
		}
		return v
	}

	c.state = StateBlocked
	c.mu.Unlock()

	c.timer.Cancel()
	c.monitor.Unsubscribe()
	c.logger.Warn().Str("signal", string(sig.Class)).Int("violations", count).Msg("fatal integrity violation, session blocked")
	if c.hooks.Blocked != nil {
		c.hooks.Blocked(violationReason(sig.Class), delay)
	}
	c.clock.AfterFunc(delay, func() {
		c.restartFrom(epoch)
	})
	return v
}

// Restart discards the current run and returns to the consent screen.
// Answers are not preserved.
func (c *Controller) Restart() {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()
	c.restartFrom(epoch)
}

func (c *Controller) restartFrom(epoch uuid.UUID) {
	c.mu.Lock()
	if c.epoch != epoch || c.closed {
		c.mu.Unlock()
		return
	}
	c.epoch = uuid.New()
	c.state = StateAwaitingConsent
	c.quiz = domain.Quiz{}
	c.quizID = ""
	c.participant = ""
	c.current = 0
	c.answers = nil
	c.violations = 0
	c.submitted = false
	c.score = 0
	c.mu.Unlock()

	c.timer.Cancel()
	c.monitor.Unsubscribe()
	c.logger.Info().Msg("session restarted")
	c.call(c.hooks.Restarted)
}

// Shutdown releases every timer and subscription. The controller accepts no
// further operations afterwards.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.closed = true
	c.epoch = uuid.New() // orphan any pending timer or restart callbacks
	c.mu.Unlock()
	c.timer.Cancel()
	c.monitor.Unsubscribe()
}

// ViolationCount reports the violations recorded in the current run.
func (c *Controller) ViolationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.violations
}

func (c *Controller) startClock(epoch uuid.UUID, fromIndex, budgetSeconds int) {
	if budgetSeconds <= 0 {
		return
	}
	c.timer.Start(budgetSeconds, c.hooks.Tick, func() {
		c.advanceFrom(epoch, fromIndex)
	})
}

func (c *Controller) budgetSecondsLocked() int {
	if !c.quiz.Timed {
		return 0
	}
	return int(c.quiz.TimePerQuestion / time.Second)
}

func (c *Controller) call(hook func()) {
	if hook != nil {
		hook()
	}
}

func violationReason(class SignalClass) string {
	switch class {
	case SignalHidden:
		return "tab switch detected"
	case SignalFocusLost:
		return "window focus lost"
	case SignalPointerLeft:
		return "pointer left the quiz window"
	case SignalCaptureKey:
		return "screen capture attempt"
	}
	return "integrity violation"
}
