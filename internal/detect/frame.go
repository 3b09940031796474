// Package detect turns raw video frames into debounced proctoring events.
//
// The pipeline has two halves: a Classifier reduces one frame to a
// FrameSignals snapshot, and a Debouncer converts the noisy per-frame
// signal stream into discrete detections once a condition has been
// sustained long enough to matter.
package detect

import "time"

// Frame is one captured video frame. Data holds tightly packed RGBA
// pixels, 4 bytes per pixel, row-major. Data must not be modified after
// the frame is handed to a classifier; frames are shared by reference.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// Point is a pixel position within a frame.
type Point struct {
	X int
	Y int
}

// Signal is one boolean condition with the classifier's confidence in it.
type Signal struct {
	Active     bool
	Confidence float64
}

// FrameSignals is the classifier output for a single frame. All fields are
// best-effort observations; a classifier that cannot see a face reports
// FacePresent.Active=false rather than failing.
type FrameSignals struct {
	FacePresent Signal
	FaceCenter  *Point // nil when no face was located
	GazeOff     Signal
	Drowsy      Signal
	Phone       Signal
	Book        Signal
	Device      Signal
}

// Classifier reduces one frame to a FrameSignals snapshot. Implementations
// must be stateless per call, total (never fail on any input frame), and
// bounded in time proportional to frame size. The reference
// HeuristicClassifier satisfies the contract; a model-backed classifier
// can be substituted without touching the debouncer or anything
// downstream.
type Classifier interface {
	Classify(f *Frame) FrameSignals
}
