package vision

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Strategy is one way of finding the board rectangle inside a raw photo.
type Strategy interface {
	Name() string
	Detect(img gocv.Mat) (image.Rectangle, error)
}

// Detection is the result of a successful strategy.
type Detection struct {
	Rect     image.Rectangle
	Strategy string
}

// BoardLocator finds the board in a photo and produces a square,
// border-free image of just the 64-square grid.
type BoardLocator struct {
	outputSize int
	cfg        LocatorConfig
	strategies []Strategy
	observer   Observer
	logger     *zap.Logger
}

// LocatorOption customizes a BoardLocator.
type LocatorOption func(*BoardLocator)

// WithStrategies replaces the default strategy chain.
func WithStrategies(strategies ...Strategy) LocatorOption {
	return func(bl *BoardLocator) {
		bl.strategies = strategies
	}
}

// WithLocatorLogger sets the logger used to report strategy failures.
func WithLocatorLogger(logger *zap.Logger) LocatorOption {
	return func(bl *BoardLocator) {
		if logger != nil {
			bl.logger = logger
		}
	}
}

// WithLocatorObserver receives the cropped board before it is resized.
func WithLocatorObserver(observer Observer) LocatorOption {
	return func(bl *BoardLocator) {
		if observer != nil {
			bl.observer = observer
		}
	}
}

// DefaultStrategies returns the detection chain in priority order:
// pattern corners, color mask, edge contours.
func DefaultStrategies(cfg LocatorConfig) []Strategy {
	return []Strategy{
		NewCornerStrategy(cfg),
		NewColorMaskStrategy(cfg),
		NewContourStrategy(cfg),
	}
}

// NewBoardLocator creates a locator producing outputSize×outputSize boards.
func NewBoardLocator(outputSize int, cfg LocatorConfig, opts ...LocatorOption) (*BoardLocator, error) {
	if outputSize < 8 {
		return nil, fmt.Errorf("invalid output size: %d (must be >= 8)", outputSize)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid locator config: %w", err)
	}

	bl := &BoardLocator{
		outputSize: outputSize,
		cfg:        cfg,
		strategies: DefaultStrategies(cfg),
		observer:   nopObserver{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(bl)
	}

	if len(bl.strategies) == 0 {
		return nil, errors.New("no detection strategies configured")
	}
	return bl, nil
}

// OutputSize returns the side length of the boards Locate produces.
func (bl *BoardLocator) OutputSize() int {
	return bl.outputSize
}

// Detect runs the strategy chain and returns the first successful crop.
func (bl *BoardLocator) Detect(raw gocv.Mat) (Detection, error) {
	if isEmpty(raw) {
		return Detection{}, &DetectionError{Err: ErrEmptyImage}
	}

	img := toBGR(raw)
	defer img.Close()

	return bl.detect(img)
}

func (bl *BoardLocator) detect(img gocv.Mat) (Detection, error) {
	bounds := matBounds(img)

	var failures error
	for _, s := range bl.strategies {
		rect, err := s.Detect(img)
		if err == nil {
			rect = rect.Intersect(bounds)
			if rect.Empty() {
				err = errors.New("empty crop")
			}
		}
		if err != nil {
			bl.logger.Warn("Detection strategy failed",
				zap.String("strategy", s.Name()),
				zap.Error(err))
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}

		bl.logger.Debug("Board detected",
			zap.String("strategy", s.Name()),
			zap.Int("x", rect.Min.X),
			zap.Int("y", rect.Min.Y),
			zap.Int("width", rect.Dx()),
			zap.Int("height", rect.Dy()))
		return Detection{Rect: rect, Strategy: s.Name()}, nil
	}

	return Detection{}, &DetectionError{Err: failures}
}

// Locate crops the board out of raw, trims any leftover black border and
// resizes it to the configured output size. The caller closes the result.
func (bl *BoardLocator) Locate(raw gocv.Mat) (gocv.Mat, error) {
	board, _, err := bl.LocateWithDetection(raw)
	return board, err
}

// LocateWithDetection is Locate that also reports which strategy won.
func (bl *BoardLocator) LocateWithDetection(raw gocv.Mat) (gocv.Mat, Detection, error) {
	if isEmpty(raw) {
		return gocv.Mat{}, Detection{}, &DetectionError{Err: ErrEmptyImage}
	}

	img := toBGR(raw)
	defer img.Close()

	det, err := bl.detect(img)
	if err != nil {
		return gocv.Mat{}, Detection{}, err
	}

	region := img.Region(det.Rect)
	crop := region.Clone()
	region.Close()
	defer crop.Close()

	trimmed := trimBorder(crop, bl.cfg)
	defer trimmed.Close()
	bl.observer.ObserveBoard("cropped", trimmed)

	out := gocv.NewMat()
	gocv.Resize(trimmed, &out, image.Pt(bl.outputSize, bl.outputSize), 0, 0, gocv.InterpolationArea)
	bl.observer.ObserveBoard("resized", out)

	return out, det, nil
}

// trimBorder strips outer rows and columns that are mostly black. Each
// pass inspects the top row, bottom row, left column and right column and
// strips those at or above BorderBlackRatio; it stops once a pass strips
// nothing or a dimension would drop to MinTrimSize pixels.
func trimBorder(img gocv.Mat, cfg LocatorConfig) gocv.Mat {
	mask := blackMask(img, cfg.BlackValueMax)
	data := pixels(mask)
	mask.Close()

	cols := img.Cols()
	black := func(v byte) bool { return v != 0 }

	rowRatio := func(y, x0, x1 int) float64 {
		n := 0
		for _, v := range data[y*cols+x0 : y*cols+x1] {
			if black(v) {
				n++
			}
		}
		return float64(n) / float64(x1-x0)
	}
	colRatio := func(x, y0, y1 int) float64 {
		n := 0
		for y := y0; y < y1; y++ {
			if black(data[y*cols+x]) {
				n++
			}
		}
		return float64(n) / float64(y1-y0)
	}

	r := matBounds(img)
	for {
		trimmed := false

		if r.Dy()-1 > cfg.MinTrimSize && rowRatio(r.Min.Y, r.Min.X, r.Max.X) >= cfg.BorderBlackRatio {
			r.Min.Y++
			trimmed = true
		}
		if r.Dy()-1 > cfg.MinTrimSize && rowRatio(r.Max.Y-1, r.Min.X, r.Max.X) >= cfg.BorderBlackRatio {
			r.Max.Y--
			trimmed = true
		}
		if r.Dx()-1 > cfg.MinTrimSize && colRatio(r.Min.X, r.Min.Y, r.Max.Y) >= cfg.BorderBlackRatio {
			r.Min.X++
			trimmed = true
		}
		if r.Dx()-1 > cfg.MinTrimSize && colRatio(r.Max.X-1, r.Min.Y, r.Max.Y) >= cfg.BorderBlackRatio {
			r.Max.X--
			trimmed = true
		}

		if !trimmed {
			break
		}
	}

	region := img.Region(r)
	defer region.Close()
	return region.Clone()
}
