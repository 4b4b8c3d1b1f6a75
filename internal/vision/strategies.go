package vision

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// CornerStrategy locates the internal corners of the checkerboard pattern
// and extrapolates the full board one square outward.
type CornerStrategy struct {
	patternSize int
}

// NewCornerStrategy creates the pattern-corner strategy.
func NewCornerStrategy(cfg LocatorConfig) *CornerStrategy {
	return &CornerStrategy{patternSize: cfg.PatternSize}
}

func (s *CornerStrategy) Name() string { return "pattern-corner" }

func (s *CornerStrategy) Detect(img gocv.Mat) (image.Rectangle, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	n := s.patternSize
	corners := gocv.NewMat()
	defer corners.Close()

	found := gocv.FindChessboardCorners(gray, image.Pt(n, n), &corners,
		gocv.CalibCBAdaptiveThresh|gocv.CalibCBNormalizeImage)
	if !found || corners.Rows()*corners.Cols() < n*n {
		return image.Rectangle{}, errors.New("no chessboard corners found")
	}
	gocv.CornerSubPix(gray, &corners, image.Pt(5, 5), image.Pt(-1, -1),
		gocv.NewTermCriteria(gocv.EPS+gocv.MaxIter, 30, 0.01))

	pts := make([][2]float64, n*n)
	for i := range pts {
		v := corners.GetVecfAt(i, 0)
		pts[i] = [2]float64{float64(v[0]), float64(v[1])}
	}

	squareW, squareH := cornerSpacing(pts, n)
	if squareW < 1 || squareH < 1 {
		return image.Rectangle{}, fmt.Errorf("degenerate corner spacing: %.2fx%.2f", squareW, squareH)
	}

	// The detector may return the grid in any orientation, so the board
	// origin is taken from the top-left-most corner.
	minX, minY := math.Inf(1), math.Inf(1)
	for _, p := range pts {
		minX = math.Min(minX, p[0])
		minY = math.Min(minY, p[1])
	}

	squares := float64(n + 1)
	x0 := minX - squareW
	y0 := minY - squareH
	rect := image.Rect(
		int(math.Floor(x0)),
		int(math.Floor(y0)),
		int(math.Ceil(x0+squares*squareW)),
		int(math.Ceil(y0+squares*squareH)),
	).Intersect(matBounds(img))

	if rect.Empty() {
		return image.Rectangle{}, errors.New("extrapolated board lies outside the image")
	}
	return rect, nil
}

// cornerSpacing estimates one square's width and height from an n×n grid
// of corners. Mean |dx| and |dy| are taken over neighbours along both grid
// index axes; the larger mean per axis is the spacing, which keeps the
// estimate independent of the order the detector returned the grid in.
func cornerSpacing(pts [][2]float64, n int) (width, height float64) {
	var alongRowX, alongRowY, alongColX, alongColY []float64
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			p := pts[r*n+c]
			if c+1 < n {
				q := pts[r*n+c+1]
				alongRowX = append(alongRowX, math.Abs(q[0]-p[0]))
				alongRowY = append(alongRowY, math.Abs(q[1]-p[1]))
			}
			if r+1 < n {
				q := pts[(r+1)*n+c]
				alongColX = append(alongColX, math.Abs(q[0]-p[0]))
				alongColY = append(alongColY, math.Abs(q[1]-p[1]))
			}
		}
	}

	width = math.Max(stat.Mean(alongRowX, nil), stat.Mean(alongColX, nil))
	height = math.Max(stat.Mean(alongRowY, nil), stat.Mean(alongColY, nil))
	return width, height
}

// ColorMaskStrategy takes the bounding box of everything that is not part
// of a near-black border.
type ColorMaskStrategy struct {
	blackValueMax int
	closeKernel   int
	margin        int
}

// NewColorMaskStrategy creates the color-mask strategy.
func NewColorMaskStrategy(cfg LocatorConfig) *ColorMaskStrategy {
	return &ColorMaskStrategy{
		blackValueMax: cfg.BlackValueMax,
		closeKernel:   cfg.CloseKernel,
		margin:        cfg.Margin,
	}
}

func (s *ColorMaskStrategy) Name() string { return "color-mask" }

func (s *ColorMaskStrategy) Detect(img gocv.Mat) (image.Rectangle, error) {
	black := blackMask(img, s.blackValueMax)
	defer black.Close()

	content := gocv.NewMat()
	defer content.Close()
	gocv.BitwiseNot(black, &content)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(s.closeKernel, s.closeKernel))
	defer kernel.Close()
	gocv.MorphologyEx(content, &content, gocv.MorphClose, kernel)

	rect, ok := nonZeroBounds(content)
	if !ok {
		return image.Rectangle{}, errors.New("no non-black pixels")
	}
	return expandClamp(rect, s.margin, matBounds(img)), nil
}

// ContourStrategy picks the largest roughly square contour of an adaptive
// threshold of the image.
type ContourStrategy struct {
	blockSize int
	c         float64
	minArea   float64
	aspectMin float64
	aspectMax float64
	margin    int
}

// NewContourStrategy creates the edge-contour strategy.
func NewContourStrategy(cfg LocatorConfig) *ContourStrategy {
	return &ContourStrategy{
		blockSize: cfg.AdaptiveBlockSize,
		c:         cfg.AdaptiveC,
		minArea:   cfg.MinContourArea,
		aspectMin: cfg.AspectMin,
		aspectMax: cfg.AspectMax,
		margin:    cfg.Margin,
	}
}

func (s *ContourStrategy) Name() string { return "edge-contour" }

func (s *ContourStrategy) Detect(img gocv.Mat) (image.Rectangle, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.AdaptiveThreshold(gray, &binary, 255,
		gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv, s.blockSize, float32(s.c))

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return image.Rectangle{}, errors.New("no contours found")
	}

	var best image.Rectangle
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area <= s.minArea {
			continue
		}

		rect := gocv.BoundingRect(contour)
		if !s.nearSquare(rect) {
			continue
		}

		if area > bestArea {
			bestArea = area
			best = rect
		}
	}

	if bestArea == 0 {
		return image.Rectangle{}, fmt.Errorf("none of %d contours is a large near-square", contours.Size())
	}
	return expandClamp(best, s.margin, matBounds(img)), nil
}

func (s *ContourStrategy) nearSquare(r image.Rectangle) bool {
	w, h := float64(r.Dx()), float64(r.Dy())
	if w == 0 || h == 0 {
		return false
	}
	ratio := math.Min(w, h) / math.Max(w, h)
	return ratio >= s.aspectMin && ratio <= s.aspectMax
}
