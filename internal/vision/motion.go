package vision

import (
	"gocv.io/x/gocv"

	"github.com/third-eye-sec/thirdeye/internal/frame"
)

// MOG2 marks shadow pixels with value 127; thresholding above it keeps
// only confident foreground.
const shadowValue = 127

// BackgroundSubtractor wraps the OpenCV MOG2 background model. The model
// needs History frames before it can be trusted; Ready reports false until
// then so an unseeded background can not produce false motion.
type BackgroundSubtractor struct {
	mog2          gocv.BackgroundSubtractorMOG2
	history       int
	seen          int
	detectShadows bool
}

// NewBackgroundSubtractor creates a MOG2 background model for single
// channel frames.
func NewBackgroundSubtractor(history int, varThreshold float64, detectShadows bool) *BackgroundSubtractor {
	return &BackgroundSubtractor{
		mog2:          gocv.NewBackgroundSubtractorMOG2WithParams(history, varThreshold, detectShadows),
		history:       history,
		detectShadows: detectShadows,
	}
}

// Ready reports whether the model has seen enough frames to be trusted.
func (b *BackgroundSubtractor) Ready() bool {
	return b.seen >= b.history
}

// Apply folds the frame into the background model and returns the
// foreground mask (255 foreground, 0 background). Shadow pixels are
// suppressed when shadow detection is on. The caller owns the returned
// mat and must close it.
func (b *BackgroundSubtractor) Apply(f *frame.Frame) gocv.Mat {
	b.seen++
	fg := gocv.NewMat()
	b.mog2.Apply(f.Mat, &fg)
	if b.detectShadows {
		gocv.Threshold(fg, &fg, shadowValue, 255, gocv.ThresholdBinary)
	}
	return fg
}

// Close releases the background model.
func (b *BackgroundSubtractor) Close() error {
	return b.mog2.Close()
}
