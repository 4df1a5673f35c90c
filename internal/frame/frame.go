// Package frame defines the frame buffer handed through the analytics
// pipeline and the pixel operations the pipeline needs: orientation
// correction, down-scaling, grayscale conversion and JPEG encoding. It is
// a thin wrapper around an OpenCV Mat; frames hold native memory and must
// be closed by their owner.
package frame

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Frame is a BGR (or single channel grayscale) pixel buffer plus its
// capture timestamp. A Frame is owned exclusively by the analytics loop
// while being processed; copies are published to consumers.
type Frame struct {
	Mat       gocv.Mat
	Timestamp time.Time
}

// New allocates a zeroed 3-channel frame of the given geometry.
func New(width, height int, ts time.Time) *Frame {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		height, width, gocv.MatTypeCV8UC3)
	return &Frame{Mat: mat, Timestamp: ts}
}

// FromBytes builds a frame from tightly packed BGR24 rows, the pixel
// format the capture pipe delivers. The bytes are copied.
func FromBytes(width, height int, pix []byte, ts time.Time) (*Frame, error) {
	if len(pix) != width*height*3 {
		return nil, fmt.Errorf("pixel buffer is %d bytes, want %d for %dx%d BGR24",
			len(pix), width*height*3, width, height)
	}
	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, pix)
	if err != nil {
		return nil, fmt.Errorf("wrapping pixel buffer: %w", err)
	}
	return &Frame{Mat: mat, Timestamp: ts}, nil
}

// Close releases the native pixel buffer.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Clone returns a deep copy of the frame. The copy must be closed by the
// caller.
func (f *Frame) Clone() *Frame {
	return &Frame{Mat: f.Mat.Clone(), Timestamp: f.Timestamp}
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.Mat.Cols() }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.Mat.Rows() }

// Channels returns the number of color channels.
func (f *Frame) Channels() int { return f.Mat.Channels() }

// Mirror flips the frame horizontally in place.
func (f *Frame) Mirror() {
	gocv.Flip(f.Mat, &f.Mat, 1)
}

// FlipVertical flips the frame upside down in place.
func (f *Frame) FlipVertical() {
	gocv.Flip(f.Mat, &f.Mat, 0)
}

// Resize returns a scaled copy with the given width, keeping the aspect
// ratio.
func (f *Frame) Resize(width int) *Frame {
	height := f.Height() * width / f.Width()
	out := gocv.NewMat()
	gocv.Resize(f.Mat, &out, image.Pt(width, height), 0, 0, gocv.InterpolationArea)
	return &Frame{Mat: out, Timestamp: f.Timestamp}
}

// Gray returns a single channel copy of the frame. Grayscale input is
// copied as is.
func (f *Frame) Gray() *Frame {
	if f.Channels() == 1 {
		return f.Clone()
	}
	out := gocv.NewMat()
	gocv.CvtColor(f.Mat, &out, gocv.ColorBGRToGray)
	return &Frame{Mat: out, Timestamp: f.Timestamp}
}

// EncodeJPEG encodes the frame as JPEG with the given quality.
func (f *Frame) EncodeJPEG(quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, f.Mat,
		[]int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encoding frame as jpeg: %w", err)
	}
	defer buf.Close()
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// SaveJPEG writes the frame to the given path as JPEG.
func (f *Frame) SaveJPEG(path string, quality int) error {
	if ok := gocv.IMWriteWithParams(path, f.Mat, []int{gocv.IMWriteJpegQuality, quality}); !ok {
		return fmt.Errorf("writing frame to %s", path)
	}
	return nil
}

// At returns the pixel value at (x, y) for single channel frames.
func (f *Frame) At(x, y int) byte {
	return f.Mat.GetUCharAt(y, x)
}
