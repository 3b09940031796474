// Package mock provides a synthetic camera for demos and local
// development. It renders real RGBA frames so the full classifier and
// debounce pipeline runs exactly as it would against a live feed.
package mock

import (
	"context"
	"time"

	"github.com/proctorhub/backend/internal/detect"
)

const (
	frameWidth  = 320
	frameHeight = 240
)

// phase describes one stretch of scripted candidate behavior.
type phase struct {
	name  string
	ticks int
	draw  func(f *detect.Frame)
}

// Camera is a watch.FrameSource that loops through a scripted set of
// behaviors: attentive candidate, looking away, leaving the frame, a
// phone appearing, and a drowsy slump.
type Camera struct {
	interval time.Duration
	phases   []phase
	phaseIdx int
	tick     int
}

func NewCamera(interval time.Duration) *Camera {
	return &Camera{
		interval: interval,
		phases: []phase{
			{name: "attentive", ticks: 20, draw: drawCenteredFace},
			{name: "looking away", ticks: 8, draw: drawOffsetFace},
			{name: "attentive", ticks: 10, draw: drawCenteredFace},
			{name: "absent", ticks: 14, draw: drawEmptyRoom},
			{name: "attentive", ticks: 10, draw: drawCenteredFace},
			{name: "phone", ticks: 4, draw: drawFaceWithClutter},
			{name: "drowsy", ticks: 6, draw: drawLowFace},
		},
	}
}

// Next renders the next scripted frame. It paces frames at the camera
// interval and loops the script forever; cancel ctx to stop.
func (c *Camera) Next(ctx context.Context) (*detect.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.interval):
	}

	p := c.phases[c.phaseIdx]
	f := &detect.Frame{
		Data:      make([]byte, frameWidth*frameHeight*4),
		Width:     frameWidth,
		Height:    frameHeight,
		Timestamp: time.Now(),
	}
	fillBackground(f)
	p.draw(f)

	c.tick++
	if c.tick >= p.ticks {
		c.tick = 0
		c.phaseIdx = (c.phaseIdx + 1) % len(c.phases)
	}
	return f, nil
}

func setPixel(f *detect.Frame, x, y int, r, g, b byte) {
	i := (y*f.Width + x) * 4
	f.Data[i] = r
	f.Data[i+1] = g
	f.Data[i+2] = b
	f.Data[i+3] = 255
}

func fillBackground(f *detect.Frame) {
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			setPixel(f, x, y, 60, 60, 70)
		}
	}
}

// drawSkinBlock paints a skin-toned rectangle centered at (cx, cy).
func drawSkinBlock(f *detect.Frame, cx, cy, w, h int) {
	for y := cy - h/2; y < cy+h/2; y++ {
		for x := cx - w/2; x < cx+w/2; x++ {
			if x >= 0 && x < f.Width && y >= 0 && y < f.Height {
				setPixel(f, x, y, 190, 140, 110)
			}
		}
	}
}

func drawCenteredFace(f *detect.Frame) {
	drawSkinBlock(f, f.Width/2, f.Height/2, f.Width/3, f.Height/2)
}

// drawOffsetFace puts the face far enough off-center to read as gaze
// loss.
func drawOffsetFace(f *detect.Frame) {
	drawSkinBlock(f, f.Width/8, f.Height/2, f.Width/4, f.Height/2)
}

// drawLowFace drops the face to the bottom edge, far enough below
// center to read as a drowsy slump.
func drawLowFace(f *detect.Frame) {
	drawSkinBlock(f, f.Width/2, f.Height-f.Height/12, f.Width/2, f.Height/6)
}

func drawEmptyRoom(*detect.Frame) {}

// drawFaceWithClutter keeps the face centered and adds a high-contrast
// striped block, which the edge-density heuristic reads as an object.
func drawFaceWithClutter(f *detect.Frame) {
	drawCenteredFace(f)
	for y := f.Height * 3 / 4; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			if x%2 == 0 {
				setPixel(f, x, y, 255, 255, 255)
			} else {
				setPixel(f, x, y, 0, 0, 0)
			}
		}
	}
}
