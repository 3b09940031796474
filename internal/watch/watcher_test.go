package watch

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/proctorhub/backend/internal/config"
	"github.com/proctorhub/backend/internal/detect"
	"github.com/proctorhub/backend/internal/proctor"
	"github.com/proctorhub/backend/internal/session"
)

// scriptedSource hands out a fixed sequence of frames, then io.EOF.
// A nil entry simulates a dropped capture.
type scriptedSource struct {
	frames []*detect.Frame
	i      int
}

func (s *scriptedSource) Next(ctx context.Context) (*detect.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.i >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.i]
	s.i++
	return f, nil
}

// signalClassifier maps frame widths to canned signals so tests can
// script classifier output without real pixel data.
type signalClassifier struct {
	byWidth map[int]detect.FrameSignals
}

func (c *signalClassifier) Classify(f *detect.Frame) detect.FrameSignals {
	return c.byWidth[f.Width]
}

type recordingSink struct {
	inputs []proctor.EventInput
	err    error
}

func (r *recordingSink) LogEvent(ctx context.Context, in proctor.EventInput) (*session.Event, error) {
	r.inputs = append(r.inputs, in)
	if r.err != nil {
		return nil, r.err
	}
	return &session.Event{ID: "ev", SessionID: in.SessionID}, nil
}

func frameAt(width int, at time.Time) *detect.Frame {
	return &detect.Frame{Width: width, Height: 1, Timestamp: at}
}

func TestRunDispatchesDetections(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	// Width 1 = phone visible, width 2 = clear frame.
	classifier := &signalClassifier{byWidth: map[int]detect.FrameSignals{
		1: {FacePresent: detect.Signal{Active: true, Confidence: 0.8}, Phone: detect.Signal{Active: true, Confidence: 0.5}},
		2: {FacePresent: detect.Signal{Active: true, Confidence: 0.8}},
	}}
	source := &scriptedSource{frames: []*detect.Frame{
		frameAt(2, base),
		frameAt(1, base.Add(1*time.Second)),
		frameAt(1, base.Add(2*time.Second)),
		frameAt(2, base.Add(3*time.Second)),
	}}
	sink := &recordingSink{}

	w := New("s1", source, classifier, detect.NewDebouncer(config.Default().Detector), sink)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.inputs) != 1 {
		t.Fatalf("dispatched %d events, want 1 phone detection: %+v", len(sink.inputs), sink.inputs)
	}
	got := sink.inputs[0]
	if got.SessionID != "s1" || got.Kind != "phone_detected" {
		t.Errorf("input = %+v", got)
	}
	if got.Severity != "high" {
		t.Errorf("Severity = %q, want high", got.Severity)
	}
}

func TestRunSkipsDroppedFrames(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	// Every delivered frame has the phone visible; the drops in between
	// must not reset the episode.
	classifier := &signalClassifier{byWidth: map[int]detect.FrameSignals{
		1: {FacePresent: detect.Signal{Active: true, Confidence: 0.8}, Phone: detect.Signal{Active: true, Confidence: 0.5}},
	}}
	source := &scriptedSource{frames: []*detect.Frame{
		nil,
		frameAt(1, base.Add(time.Second)),
		nil,
		frameAt(1, base.Add(3 * time.Second)),
	}}
	sink := &recordingSink{}

	w := New("s1", source, classifier, detect.NewDebouncer(config.Default().Detector), sink)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.inputs) != 1 {
		t.Errorf("dispatched %d events, want 1 (drops must not split the episode)", len(sink.inputs))
	}
}

func TestRunKeepsGoingOnDispatchError(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	classifier := &signalClassifier{byWidth: map[int]detect.FrameSignals{
		1: {FacePresent: detect.Signal{Active: true, Confidence: 0.8}, Phone: detect.Signal{Active: true, Confidence: 0.5}},
	}}
	source := &scriptedSource{frames: []*detect.Frame{
		frameAt(1, base),
		frameAt(1, base.Add(40 * time.Second)), // past cooldown, second episode
	}}
	sink := &recordingSink{err: errors.New("session closed")}

	w := New("s1", source, classifier, detect.NewDebouncer(config.Default().Detector), sink)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.inputs) != 1 {
		t.Errorf("dispatched %d events, want 1 (single continuous episode)", len(sink.inputs))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &scriptedSource{frames: []*detect.Frame{frameAt(1, time.Now())}}
	w := New("s1", source, &signalClassifier{}, detect.NewDebouncer(config.Default().Detector), &recordingSink{})
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run after cancel: %v", err)
	}
}

func TestRunSurfacesSourceFailure(t *testing.T) {
	boom := errors.New("camera gone")
	w := New("s1", failingSource{err: boom}, &signalClassifier{}, detect.NewDebouncer(config.Default().Detector), &recordingSink{})
	if err := w.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run err = %v, want %v", err, boom)
	}
}

type failingSource struct{ err error }

func (f failingSource) Next(ctx context.Context) (*detect.Frame, error) {
	return nil, f.err
}
