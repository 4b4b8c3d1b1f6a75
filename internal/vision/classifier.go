package vision

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/SzabolcsN/chess-board-from-img/internal/board"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Match is the classification of one cell. Piece is board.Empty when no
// template cleared the acceptance threshold; Score is then the best
// rejected score.
type Match struct {
	Piece board.Piece
	Score float64
}

// CellClassifier decides which piece, if any, occupies a board cell.
type CellClassifier struct {
	library  *TemplateLibrary
	cfg      ClassifierConfig
	observer Observer
	logger   *zap.Logger
}

// ClassifierOption customizes a CellClassifier.
type ClassifierOption func(*CellClassifier)

// WithClassifierLogger sets the logger for per-template scoring faults.
func WithClassifierLogger(logger *zap.Logger) ClassifierOption {
	return func(c *CellClassifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClassifierObserver receives every input and background-suppressed cell.
func WithClassifierObserver(observer Observer) ClassifierOption {
	return func(c *CellClassifier) {
		if observer != nil {
			c.observer = observer
		}
	}
}

// NewCellClassifier creates a classifier over a loaded template library.
func NewCellClassifier(library *TemplateLibrary, cfg ClassifierConfig, opts ...ClassifierOption) (*CellClassifier, error) {
	if library == nil {
		return nil, errors.New("nil template library")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classifier config: %w", err)
	}

	c := &CellClassifier{
		library:  library,
		cfg:      cfg,
		observer: nopObserver{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify returns the best matching piece for a cell at (row, col).
// A zero-area cell is empty.
func (c *CellClassifier) Classify(cell gocv.Mat, row, col int) Match {
	if isEmpty(cell) {
		return Match{}
	}
	c.observer.ObserveCell(row, col, "input", cell)

	processed := c.SuppressBackground(cell)
	defer processed.Close()
	c.observer.ObserveCell(row, col, "processed", processed)

	scores := c.score(processed, row, col)

	var best Match
	for _, p := range c.library.Pieces() {
		if s, ok := scores[p]; ok && s > best.Score {
			best = Match{Piece: p, Score: s}
		}
	}

	if best.Score > c.cfg.AcceptThreshold {
		return best
	}
	return Match{Score: best.Score}
}

// Scores returns the correlation score of every template against a cell.
func (c *CellClassifier) Scores(cell gocv.Mat) map[board.Piece]float64 {
	if isEmpty(cell) {
		return map[board.Piece]float64{}
	}

	processed := c.SuppressBackground(cell)
	defer processed.Close()
	return c.score(processed, -1, -1)
}

// SuppressBackground zeroes every pixel within BackgroundDistance of the
// light or dark square color and returns a new BGR raster.
func (c *CellClassifier) SuppressBackground(cell gocv.Mat) gocv.Mat {
	out := toBGR(cell)

	data, err := out.DataPtrUint8()
	if err != nil {
		c.logger.Warn("Background suppression skipped", zap.Error(err))
		return out
	}

	light, dark, limit := c.cfg.LightSquare, c.cfg.DarkSquare, c.cfg.BackgroundDistance
	for i := 0; i+2 < len(data); i += 3 {
		b, g, r := data[i], data[i+1], data[i+2]
		if light.Distance(b, g, r) <= limit || dark.Distance(b, g, r) <= limit {
			data[i], data[i+1], data[i+2] = 0, 0, 0
		}
	}
	return out
}

func (c *CellClassifier) score(processed gocv.Mat, row, col int) map[board.Piece]float64 {
	scores := make(map[board.Piece]float64, c.library.Len())

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(processed, &gray, gocv.ColorBGRToGray)

	// A cell left without any contrast has nothing to correlate.
	minVal, maxVal, _, _ := gocv.MinMaxLoc(gray)
	if maxVal <= minVal {
		for _, p := range c.library.Pieces() {
			scores[p] = 0
		}
		return scores
	}

	gocv.Normalize(gray, &gray, 0, 255, gocv.NormMinMax)

	for _, p := range c.library.Pieces() {
		t, _ := c.library.Get(p)
		s, err := c.matchTemplate(gray, t)
		if err != nil {
			c.logger.Debug("Template scoring failed",
				zap.String("piece", p.Code()),
				zap.Int("row", row),
				zap.Int("col", col),
				zap.Error(err))
			s = 0
		}
		scores[p] = s
	}
	return scores
}

// matchTemplate correlates a normalized grayscale cell with one template
// and returns the maximum of the correlation map.
func (c *CellClassifier) matchTemplate(cellGray gocv.Mat, t *PieceTemplate) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			score, err = 0, fmt.Errorf("template %s: %v", t.Piece.Code(), r)
		}
	}()

	pad := c.cfg.TemplatePadding
	size := image.Pt(cellGray.Cols()-2*pad, cellGray.Rows()-2*pad)
	if size.X < 1 || size.Y < 1 {
		return 0, fmt.Errorf("cell %dx%d too small for padding %d", cellGray.Cols(), cellGray.Rows(), pad)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(t.Image, &resized, size, 0, 0, gocv.InterpolationLinear)

	tmplGray := gocv.NewMat()
	defer tmplGray.Close()
	gocv.CvtColor(resized, &tmplGray, gocv.ColorBGRToGray)
	gocv.Normalize(tmplGray, &tmplGray, 0, 255, gocv.NormMinMax)

	mask := gocv.NewMat()
	defer mask.Close()
	if t.HasMask() {
		scaled := gocv.NewMat()
		gocv.Resize(t.Mask, &scaled, size, 0, 0, gocv.InterpolationNearestNeighbor)
		gocv.Threshold(scaled, &mask, 1, 255, gocv.ThresholdBinary)
		scaled.Close()
		if gocv.CountNonZero(mask) == 0 {
			return 0, fmt.Errorf("template %s mask vanished at %dx%d", t.Piece.Code(), size.X, size.Y)
		}
	}

	result := gocv.NewMat()
	defer result.Close()
	gocv.MatchTemplate(cellGray, tmplGray, &result, gocv.TmCcoeffNormed, mask)

	return maxFinite(result)
}

// maxFinite returns the largest finite value of a CV_32F map. Degenerate
// windows can produce NaN or Inf, which are ignored.
func maxFinite(m gocv.Mat) (float64, error) {
	if isEmpty(m) {
		return 0, errors.New("empty correlation map")
	}

	values, err := m.DataPtrFloat32()
	if err != nil {
		return 0, fmt.Errorf("read correlation map: %w", err)
	}

	best := math.Inf(-1)
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if f > best {
			best = f
		}
	}

	if math.IsInf(best, -1) {
		return 0, nil
	}
	return best, nil
}
