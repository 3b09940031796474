package detect

import (
	"time"

	"github.com/proctorhub/backend/internal/config"
	"github.com/proctorhub/backend/internal/session"
)

// Detection is a debounced condition ready to be ingested as an event.
type Detection struct {
	Kind        session.Kind
	Severity    session.Severity
	Duration    float64 // seconds the condition held before firing
	Confidence  float64
	Description string
}

// mode selects how a signal kind turns into detections.
type mode int

const (
	// modeHold fires once a signal has stayed active for the hold
	// threshold, then re-arms when it drops.
	modeHold mode = iota
	// modeEdge fires once per transition into the active state.
	modeEdge
	// modeCooldown fires on the first active observation of an episode,
	// at most once per cooldown window.
	modeCooldown
)

type machineState int

const (
	stateInactive machineState = iota
	statePending
	stateFired
)

type rule struct {
	kind        session.Kind
	mode        mode
	hold        time.Duration
	cooldown    time.Duration
	description string
}

// machine is the per-kind debounce state machine:
// Inactive -> PendingActive (timer running) -> Fired (cooldown) -> Inactive.
type machine struct {
	rule        rule
	state       machineState
	activeSince time.Time
	lastFired   time.Time
}

// observe advances the machine by one classifier tick and reports whether
// a detection fired. A tick that was skipped entirely (frame not ready)
// must simply not call observe; pending timers then hold their start time.
func (m *machine) observe(sig Signal, now time.Time) (Detection, bool) {
	if !sig.Active {
		// Debounced noise is never reported.
		m.state = stateInactive
		m.activeSince = time.Time{}
		return Detection{}, false
	}

	switch m.rule.mode {
	case modeHold:
		switch m.state {
		case stateInactive:
			m.state = statePending
			m.activeSince = now
		case statePending:
			if now.Sub(m.activeSince) >= m.rule.hold {
				m.state = stateFired
				m.lastFired = now
				return m.detection(now.Sub(m.activeSince), sig.Confidence), true
			}
		}

	case modeEdge:
		if m.state == stateInactive {
			m.state = stateFired
			m.lastFired = now
			return m.detection(0, sig.Confidence), true
		}

	case modeCooldown:
		if m.state == stateInactive {
			if m.lastFired.IsZero() || now.Sub(m.lastFired) >= m.rule.cooldown {
				m.state = stateFired
				m.lastFired = now
				return m.detection(0, sig.Confidence), true
			}
			// Episode started inside the cooldown window; swallow it
			// but mark the episode so it cannot fire later.
			m.state = stateFired
		}
	}
	return Detection{}, false
}

func (m *machine) detection(held time.Duration, confidence float64) Detection {
	return Detection{
		Kind:        m.rule.kind,
		Severity:    m.rule.kind.DefaultSeverity(),
		Duration:    held.Seconds(),
		Confidence:  confidence,
		Description: m.rule.description,
	}
}

// Debouncer owns one state machine per signal kind for a single session.
// It is not safe for concurrent use; each observer loop drives its own.
type Debouncer struct {
	machines []*machine
}

// NewDebouncer builds the per-session machine set from detector config:
// hold rules for face absence and gaze, edge-triggered drowsiness, and
// cooldown-limited object detections.
func NewDebouncer(cfg config.DetectorConfig) *Debouncer {
	rules := []rule{
		{kind: session.KindFaceAbsent, mode: modeHold, hold: cfg.FaceAbsentHold,
			description: "Face not detected for a sustained period"},
		{kind: session.KindFocusLost, mode: modeHold, hold: cfg.FocusLostHold,
			description: "Looking away from screen for a sustained period"},
		{kind: session.KindDrowsinessDetected, mode: modeEdge,
			description: "Drowsiness detected from head position"},
		{kind: session.KindPhoneDetected, mode: modeCooldown, cooldown: cfg.ObjectCooldown,
			description: "Mobile phone detected in frame"},
		{kind: session.KindBookDetected, mode: modeCooldown, cooldown: cfg.ObjectCooldown,
			description: "Book or notes detected in frame"},
		{kind: session.KindDeviceDetected, mode: modeCooldown, cooldown: cfg.ObjectCooldown,
			description: "Electronic device detected in frame"},
	}
	d := &Debouncer{}
	for _, r := range rules {
		d.machines = append(d.machines, &machine{rule: r})
	}
	return d
}

// Observe feeds one classifier snapshot through every machine and returns
// the detections that fired on this tick.
func (d *Debouncer) Observe(sig FrameSignals, now time.Time) []Detection {
	var fired []Detection
	for _, m := range d.machines {
		raw := signalFor(m.rule.kind, sig)
		if det, ok := m.observe(raw, now); ok {
			fired = append(fired, det)
		}
	}
	return fired
}

// signalFor maps a kind to its raw signal. Face absence is the inverse of
// face presence; its confidence rides along.
func signalFor(k session.Kind, sig FrameSignals) Signal {
	switch k {
	case session.KindFaceAbsent:
		return Signal{Active: !sig.FacePresent.Active, Confidence: sig.FacePresent.Confidence}
	case session.KindFocusLost:
		return sig.GazeOff
	case session.KindDrowsinessDetected:
		return sig.Drowsy
	case session.KindPhoneDetected:
		return sig.Phone
	case session.KindBookDetected:
		return sig.Book
	case session.KindDeviceDetected:
		return sig.Device
	}
	return Signal{}
}
