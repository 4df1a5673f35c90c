package vision

import (
	"gocv.io/x/gocv"
)

// Region is one external foreground contour: its bounding box and contour
// area in pixels.
type Region struct {
	X    int
	Y    int
	W    int
	H    int
	Area float64
}

// Regions extracts external contours from a foreground mask. Each region's
// bounding box is a motion candidate.
func Regions(mask gocv.Mat) []Region {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []Region
	for i := 0; i < contours.Size(); i++ {
		cnt := contours.At(i)
		rect := gocv.BoundingRect(cnt)
		regions = append(regions, Region{
			X:    rect.Min.X,
			Y:    rect.Min.Y,
			W:    rect.Dx(),
			H:    rect.Dy(),
			Area: gocv.ContourArea(cnt),
		})
	}
	return regions
}
