package session

import "time"

// Coordinates pins a detection to a region of the frame, when the
// classifier reported one.
type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Event is one recorded proctoring occurrence. Events are immutable once
// stored except for the Resolved flag.
type Event struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"sessionId"`
	Kind        Kind         `json:"type"`
	Severity    Severity     `json:"severity"`
	Timestamp   time.Time    `json:"timestamp"`
	Duration    float64      `json:"duration,omitempty"`   // seconds the condition held
	Confidence  float64      `json:"confidence,omitempty"` // 0.0 - 1.0, from the classifier
	Description string       `json:"description,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Resolved    bool         `json:"isResolved"`
}

// Clone returns a copy of the Event, duplicating pointer fields so the copy
// can be mutated independently of the original.
func (e *Event) Clone() *Event {
	c := *e
	if e.Coordinates != nil {
		xy := *e.Coordinates
		c.Coordinates = &xy
	}
	return &c
}
