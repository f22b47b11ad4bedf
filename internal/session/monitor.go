package session

import "sync"

// SignalClass identifies a kind of environment integrity signal.
type SignalClass string

const (
	// SignalFocusLost fires when the window loses OS focus.
	SignalFocusLost SignalClass = "focus-lost"
	// SignalPointerLeft fires when the pointer leaves the viewport.
	SignalPointerLeft SignalClass = "pointer-left"
	// SignalHidden fires when the document becomes hidden (tab switch).
	SignalHidden SignalClass = "tab-hidden"
	// SignalCaptureKey fires on key combinations associated with screen capture.
	SignalCaptureKey SignalClass = "capture-key"
)

// Signal is a single integrity event reported by the environment.
type Signal struct {
	Class  SignalClass
	Detail string
}

// Verdict is the monitor's ruling on one signal.
type Verdict struct {
	Warning  bool
	Fatal    bool
	Suppress bool // the source must prevent the triggering input's default action
}

// Monitor applies the integrity policy to environment signals while a session
// is in progress. Tab switches warn once and are fatal from the second
// occurrence on; focus loss, pointer exit, and capture keys are fatal
// immediately (capture keys are additionally suppressed at the input level).
// Signals observed while unsubscribed are ignored, so handlers wired to a
// finished session cannot fire against a fresh one.
type Monitor struct {
	mu          sync.Mutex
	active      bool
	hiddenCount int
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// Subscribe arms the monitor for a new session run.
func (m *Monitor) Subscribe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = true
	m.hiddenCount = 0
}

// Unsubscribe disarms the monitor. Subsequent signals are no-ops.
func (m *Monitor) Unsubscribe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.hiddenCount = 0
}

// Active reports whether the monitor is currently armed.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Observe rules on one signal per the escalation policy.
func (m *Monitor) Observe(sig Signal) Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return Verdict{}
	}
	switch sig.Class {
	case SignalHidden:
		m.hiddenCount++
		if m.hiddenCount == 1 {
			return Verdict{Warning: true}
		}
		return Verdict{Fatal: true}
	case SignalFocusLost, SignalPointerLeft:
		return Verdict{Fatal: true}
	case SignalCaptureKey:
		return Verdict{Fatal: true, Suppress: true}
	}
	return Verdict{}
}
