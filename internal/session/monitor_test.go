package session

import "testing"

func TestTabSwitchWarnsOnceThenFatal(t *testing.T) {
	monitor := NewMonitor()
	monitor.Subscribe()

	first := monitor.Observe(Signal{Class: SignalHidden})
	if !first.Warning || first.Fatal {
		t.Fatalf("expected first tab switch to warn only, got %+v", first)
	}
	second := monitor.Observe(Signal{Class: SignalHidden})
	if !second.Fatal {
		t.Fatalf("expected second tab switch to be fatal, got %+v", second)
	}
	third := monitor.Observe(Signal{Class: SignalHidden})
	if !third.Fatal {
		t.Fatalf("expected later tab switches to stay fatal, got %+v", third)
	}
}

func TestFocusAndPointerAreImmediatelyFatal(t *testing.T) {
	monitor := NewMonitor()
	monitor.Subscribe()

	if v := monitor.Observe(Signal{Class: SignalFocusLost}); !v.Fatal || v.Warning {
		t.Fatalf("expected focus loss to be fatal with no warning grace, got %+v", v)
	}
	if v := monitor.Observe(Signal{Class: SignalPointerLeft}); !v.Fatal {
		t.Fatalf("expected pointer exit to be fatal, got %+v", v)
	}
}

func TestCaptureKeyIsFatalAndSuppressed(t *testing.T) {
	monitor := NewMonitor()
	monitor.Subscribe()

	v := monitor.Observe(Signal{Class: SignalCaptureKey})
	if !v.Fatal || !v.Suppress {
		t.Fatalf("expected capture key to be fatal and suppressed, got %+v", v)
	}
}

func TestUnsubscribedMonitorIgnoresSignals(t *testing.T) {
	monitor := NewMonitor()
	monitor.Subscribe()
	monitor.Unsubscribe()

	if v := monitor.Observe(Signal{Class: SignalFocusLost}); v.Fatal || v.Warning {
		t.Fatalf("expected stale signal to be ignored, got %+v", v)
	}
}

func TestResubscribeResetsTabSwitchCount(t *testing.T) {
	monitor := NewMonitor()
	monitor.Subscribe()
	monitor.Observe(Signal{Class: SignalHidden})
	monitor.Unsubscribe()
	monitor.Subscribe()

	if v := monitor.Observe(Signal{Class: SignalHidden}); v.Fatal {
		t.Fatalf("expected fresh run to warn on first tab switch, got %+v", v)
	}
}
