// Package vision implements the pixel-level analysis used by the frame
// pipeline: the secure zone polygon mask, MOG2 background subtraction for
// motion detection and contour extraction.
package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/third-eye-sec/thirdeye/internal/frame"
)

// ZoneMask is a rasterized polygon mask in the down-scaled frame geometry.
// Pixels outside the polygon are zeroed when the mask is applied, so
// nothing outside the secure zone can ever reach the detectors.
type ZoneMask struct {
	mat    gocv.Mat
	width  int
	height int
}

// NewZoneMask rasterizes the closed polygon (given as [x, y] points) into
// a white-on-black mask of the given geometry.
func NewZoneMask(poly [][2]int, width, height int) (*ZoneMask, error) {
	if len(poly) < 3 {
		return nil, fmt.Errorf("secure zone polygon needs at least 3 points, got %d", len(poly))
	}

	pts := make([]image.Point, len(poly))
	for i, p := range poly {
		pts[i] = image.Pt(p[0], p[1])
	}

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		height, width, gocv.MatTypeCV8UC3)
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	gocv.FillPoly(&mat, pv, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	return &ZoneMask{mat: mat, width: width, height: height}, nil
}

// Contains reports whether the pixel at (x, y) is inside the secure zone.
func (m *ZoneMask) Contains(x, y int) bool {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return false
	}
	return m.mat.GetUCharAt(y, x*3) != 0
}

// Apply zeroes every pixel outside the secure zone in place. The frame
// geometry must match the mask geometry.
func (m *ZoneMask) Apply(f *frame.Frame) error {
	if f.Width() != m.width || f.Height() != m.height {
		return fmt.Errorf("mask geometry %dx%d does not match frame %dx%d",
			m.width, m.height, f.Width(), f.Height())
	}
	gocv.BitwiseAnd(f.Mat, m.mat, &f.Mat)
	return nil
}

// Close releases the mask's pixel buffer.
func (m *ZoneMask) Close() error {
	return m.mat.Close()
}
