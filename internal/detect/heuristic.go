package detect

import "github.com/proctorhub/backend/internal/config"

// HeuristicClassifier is the reference Classifier: skin-tone pixel ratio
// for face presence and centroid, centroid offset from frame center for
// gaze and drowsiness, edge density for object classes. The thresholds
// are uncalibrated carryovers from the original heuristic; the value of
// this implementation is exercising the contract, not detection accuracy.
type HeuristicClassifier struct {
	skinRatio        float64
	gazeOffsetFrac   float64
	drowsyOffsetFrac float64
	phoneEdge        float64
	bookEdge         float64
	deviceEdge       float64
}

// Classifier confidences reported with each signal. Fixed per condition;
// the heuristic has no per-frame calibration to do better.
const (
	faceConfidence   = 0.8
	gazeConfidence   = 0.7
	drowsyConfidence = 0.6
	objectConfidence = 0.5
)

func NewHeuristicClassifier(cfg config.DetectorConfig) *HeuristicClassifier {
	return &HeuristicClassifier{
		skinRatio:        cfg.SkinRatio,
		gazeOffsetFrac:   cfg.GazeOffsetFrac,
		drowsyOffsetFrac: cfg.DrowsyOffsetFrac,
		phoneEdge:        cfg.PhoneEdgeDensity,
		bookEdge:         cfg.BookEdgeDensity,
		deviceEdge:       cfg.DeviceEdgeDensity,
	}
}

// Classify implements Classifier. A frame too small or malformed to carry
// a single pixel yields all-inactive signals.
func (h *HeuristicClassifier) Classify(f *Frame) FrameSignals {
	var out FrameSignals
	if f == nil || f.Width <= 0 || f.Height <= 0 || len(f.Data) < 4 {
		return out
	}
	pixels := len(f.Data) / 4
	if max := f.Width * f.Height; pixels > max {
		pixels = max
	}

	var skin, sumX, sumY int
	var edges int
	prevBright := -1000
	for i := 0; i < pixels; i++ {
		off := i * 4
		r := int(f.Data[off])
		g := int(f.Data[off+1])
		b := int(f.Data[off+2])

		if isSkinTone(r, g, b) {
			skin++
			sumX += i % f.Width
			sumY += i / f.Width
		}

		bright := (r + g + b) / 3
		if prevBright > -1000 && abs(bright-prevBright) > 30 {
			edges++
		}
		prevBright = bright
	}

	facePresent := float64(skin) > float64(pixels)*h.skinRatio
	out.FacePresent = Signal{Active: facePresent, Confidence: faceConfidence}

	if facePresent && skin > 0 {
		center := &Point{X: sumX / skin, Y: sumY / skin}
		out.FaceCenter = center

		gazeOff := abs(center.X-f.Width/2) > int(float64(f.Width)*h.gazeOffsetFrac)
		out.GazeOff = Signal{Active: gazeOff, Confidence: gazeConfidence}

		drowsy := abs(center.Y-f.Height/2) > int(float64(f.Height)*h.drowsyOffsetFrac)
		out.Drowsy = Signal{Active: drowsy, Confidence: drowsyConfidence}
	}

	density := float64(edges) / float64(pixels)
	out.Phone = Signal{Active: density > h.phoneEdge, Confidence: objectConfidence}
	out.Book = Signal{Active: density > h.bookEdge, Confidence: objectConfidence}
	out.Device = Signal{Active: density > h.deviceEdge, Confidence: objectConfidence}

	return out
}

// isSkinTone is a crude RGB skin test: red-dominant with enough spread
// between red and green.
func isSkinTone(r, g, b int) bool {
	return r > 95 && g > 40 && b > 20 &&
		r > g && r > b &&
		abs(r-g) > 15 && r-g > 15
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
