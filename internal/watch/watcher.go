// Package watch runs the frame analysis loop for a proctoring session,
// turning raw webcam frames into debounced behavioral events.
package watch

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/proctorhub/backend/internal/detect"
	"github.com/proctorhub/backend/internal/proctor"
	"github.com/proctorhub/backend/internal/session"
)

// FrameSource delivers frames for one candidate's camera. Next blocks
// until a frame is available, the source ends, or ctx is cancelled.
// A nil frame with a nil error signals a dropped capture; the watcher
// skips the tick rather than stopping.
type FrameSource interface {
	Next(ctx context.Context) (*detect.Frame, error)
}

// EventSink receives the detections the watcher promotes to events.
// proctor.Service satisfies this.
type EventSink interface {
	LogEvent(ctx context.Context, in proctor.EventInput) (*session.Event, error)
}

// Watcher drives one session's capture loop: classify each frame,
// feed the signals through the debouncer, and log whatever fires.
type Watcher struct {
	sessionID  string
	source     FrameSource
	classifier detect.Classifier
	debouncer  *detect.Debouncer
	sink       EventSink
}

func New(sessionID string, source FrameSource, classifier detect.Classifier, debouncer *detect.Debouncer, sink EventSink) *Watcher {
	return &Watcher{
		sessionID:  sessionID,
		source:     source,
		classifier: classifier,
		debouncer:  debouncer,
		sink:       sink,
	}
}

// Run consumes frames until the source is exhausted or ctx is
// cancelled. Dispatch failures are logged and the loop keeps going.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		frame, err := w.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if frame == nil {
			// Dropped capture. Skipping the tick leaves pending hold
			// timers untouched rather than counting it as any signal.
			continue
		}

		signals := w.classifier.Classify(frame)
		for _, d := range w.debouncer.Observe(signals, frame.Timestamp) {
			w.dispatch(ctx, d)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, d detect.Detection) {
	_, err := w.sink.LogEvent(ctx, proctor.EventInput{
		SessionID:   w.sessionID,
		Kind:        d.Kind.String(),
		Severity:    d.Severity.String(),
		Duration:    d.Duration,
		Confidence:  d.Confidence,
		Description: d.Description,
	})
	if err != nil {
		log.Printf("watch %s: log %s: %v", w.sessionID, d.Kind, err)
	}
}
