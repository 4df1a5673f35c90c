// Package detector defines the object detection contract used by the
// analytics pipeline. Inference itself runs out of process; implementations
// only move frames to the model and results back.
package detector

import (
	"context"

	"github.com/third-eye-sec/thirdeye/internal/frame"
	"github.com/third-eye-sec/thirdeye/internal/tracker"
)

// Detection is a single predicted object in a frame.
type Detection struct {
	Box   tracker.Box
	Label string
	Score float64
}

// Interface is implemented by object detection backends.
type Interface interface {
	// Detect returns the objects predicted in the frame that meet the
	// configured confidence threshold.
	Detect(ctx context.Context, f *frame.Frame) ([]Detection, error)
}
