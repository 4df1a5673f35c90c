// Package capture provides camera frame acquisition for the analytics
// pipeline. The default implementation shells out to ffmpeg and reads raw
// BGR frames from its stdout, so any input ffmpeg can open (V4L2 device,
// RTSP stream, file) works unchanged.
package capture

import (
	"context"

	"github.com/third-eye-sec/thirdeye/internal/frame"
)

// Source produces frames from a camera or stream.
type Source interface {
	// Open starts the underlying capture process. The source stops when
	// ctx is cancelled.
	Open(ctx context.Context) error
	// Read blocks until the next frame is available. It returns an error
	// when the source has ended or failed; the caller decides whether to
	// reopen.
	Read() (*frame.Frame, error)
	// Close releases the capture process and its resources.
	Close() error
}
