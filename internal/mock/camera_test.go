package mock

import (
	"context"
	"testing"
	"time"

	"github.com/proctorhub/backend/internal/config"
	"github.com/proctorhub/backend/internal/detect"
)

func renderPhase(t *testing.T, name string) *detect.Frame {
	t.Helper()
	c := NewCamera(time.Millisecond)
	for _, p := range c.phases {
		if p.name == name {
			f := &detect.Frame{
				Data:      make([]byte, frameWidth*frameHeight*4),
				Width:     frameWidth,
				Height:    frameHeight,
				Timestamp: time.Now(),
			}
			fillBackground(f)
			p.draw(f)
			return f
		}
	}
	t.Fatalf("no phase named %q", name)
	return nil
}

func TestScriptedPhasesTriggerClassifier(t *testing.T) {
	classifier := detect.NewHeuristicClassifier(config.Default().Detector)

	tests := []struct {
		phase string
		check func(t *testing.T, sig detect.FrameSignals)
	}{
		{"attentive", func(t *testing.T, sig detect.FrameSignals) {
			if !sig.FacePresent.Active {
				t.Error("face not detected")
			}
			if sig.GazeOff.Active || sig.Drowsy.Active || sig.Phone.Active {
				t.Errorf("spurious signals: %+v", sig)
			}
		}},
		{"looking away", func(t *testing.T, sig detect.FrameSignals) {
			if !sig.FacePresent.Active || !sig.GazeOff.Active {
				t.Errorf("want face present and gaze off, got %+v", sig)
			}
		}},
		{"absent", func(t *testing.T, sig detect.FrameSignals) {
			if sig.FacePresent.Active {
				t.Error("face detected in empty room")
			}
		}},
		{"phone", func(t *testing.T, sig detect.FrameSignals) {
			if !sig.FacePresent.Active || !sig.Phone.Active {
				t.Errorf("want face present and phone, got %+v", sig)
			}
		}},
		{"drowsy", func(t *testing.T, sig detect.FrameSignals) {
			if !sig.FacePresent.Active || !sig.Drowsy.Active {
				t.Errorf("want face present and drowsy, got %+v", sig)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.phase, func(t *testing.T) {
			tt.check(t, classifier.Classify(renderPhase(t, tt.phase)))
		})
	}
}

func TestNextAdvancesScript(t *testing.T) {
	c := NewCamera(time.Millisecond)

	for i := 0; i < 25; i++ {
		f, err := c.Next(context.Background())
		if err != nil {
			t.Fatalf("Next[%d]: %v", i, err)
		}
		if f == nil || f.Width != frameWidth || f.Height != frameHeight {
			t.Fatalf("Next[%d]: bad frame %+v", i, f)
		}
	}
	// 20 attentive ticks then into the next phase.
	if c.phaseIdx != 1 {
		t.Errorf("phaseIdx = %d, want 1", c.phaseIdx)
	}
}

func TestNextHonorsCancel(t *testing.T) {
	c := NewCamera(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Next(ctx); err == nil {
		t.Fatal("Next returned no error after cancel")
	}
}
