package vision

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/SzabolcsN/chess-board-from-img/internal/board"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// TemplateExtensions lists the raster formats LoadTemplates picks up.
var TemplateExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".webp", ".tif", ".tiff"}

// PieceTemplate is a labeled reference raster for one piece.
type PieceTemplate struct {
	Piece  board.Piece
	Image  gocv.Mat // BGR
	Mask   gocv.Mat // binary alpha mask; empty when the source had no alpha
	Source string
}

// NewPieceTemplate builds a template from a 1, 3 or 4 channel raster.
// A 4th channel becomes the binary matching mask. img is copied.
func NewPieceTemplate(piece board.Piece, img gocv.Mat) (*PieceTemplate, error) {
	if piece == board.Empty || piece > board.BlackKing {
		return nil, fmt.Errorf("invalid template piece: %v", piece)
	}
	if isEmpty(img) {
		return nil, fmt.Errorf("template %s: %w", piece.Code(), ErrEmptyImage)
	}

	img, err := to8Bit(img)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", piece.Code(), err)
	}
	defer img.Close()

	t := &PieceTemplate{Piece: piece, Image: toBGR(img), Mask: gocv.NewMat()}

	if img.Channels() == 4 {
		channels := gocv.Split(img)
		gocv.Threshold(channels[3], &t.Mask, 1, 255, gocv.ThresholdBinary)
		for _, ch := range channels {
			ch.Close()
		}
		if gocv.CountNonZero(t.Mask) == 0 {
			t.Close()
			return nil, fmt.Errorf("template %s is fully transparent", piece.Code())
		}
	}

	return t, nil
}

// HasMask reports whether the template is matched through an alpha mask.
func (t *PieceTemplate) HasMask() bool {
	return !t.Mask.Empty()
}

// Close releases the template rasters.
func (t *PieceTemplate) Close() {
	t.Image.Close()
	t.Mask.Close()
}

// TemplateLibrary is the immutable set of piece templates. It is built
// once and shared read-only between classifiers and goroutines.
type TemplateLibrary struct {
	templates map[board.Piece]*PieceTemplate
}

// NewTemplateLibrary wraps already built templates. The library takes
// ownership; a later template for the same piece replaces an earlier one.
func NewTemplateLibrary(templates ...*PieceTemplate) *TemplateLibrary {
	lib := &TemplateLibrary{templates: make(map[board.Piece]*PieceTemplate, len(templates))}
	for _, t := range templates {
		if old, ok := lib.templates[t.Piece]; ok {
			old.Close()
		}
		lib.templates[t.Piece] = t
	}
	return lib
}

// LoadTemplates reads every <color><piece>.<ext> raster in dir. Files with
// unknown names or undecodable contents are skipped with a warning; only an
// unreadable directory is an error.
func LoadTemplates(dir string, logger *zap.Logger) (*TemplateLibrary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	lib := &TemplateLibrary{templates: make(map[board.Piece]*PieceTemplate)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !supportedTemplateExt(ext) {
			continue
		}

		path := filepath.Join(dir, name)
		piece, err := board.ParseCode(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil {
			logger.Warn("Skipping template with unrecognized name", zap.String("path", path), zap.Error(err))
			continue
		}
		if _, dup := lib.templates[piece]; dup {
			logger.Warn("Skipping duplicate template", zap.String("path", path), zap.String("piece", piece.Code()))
			continue
		}

		t, err := loadTemplate(piece, path)
		if err != nil {
			logger.Warn("Skipping unreadable template", zap.String("path", path), zap.Error(err))
			continue
		}
		lib.templates[piece] = t
	}

	if missing := lib.Missing(); len(missing) > 0 {
		codes := make([]string, len(missing))
		for i, p := range missing {
			codes[i] = p.Code()
		}
		logger.Warn("Template set incomplete; missing pieces will never be matched",
			zap.String("dir", dir),
			zap.Strings("missing", codes))
	}

	logger.Info("Templates loaded", zap.String("dir", dir), zap.Int("count", lib.Len()))
	return lib, nil
}

func loadTemplate(piece board.Piece, path string) (*PieceTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	img, err := decodeUnchanged(data, path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	t, err := NewPieceTemplate(piece, img)
	if err != nil {
		return nil, err
	}
	t.Source = path
	return t, nil
}

func supportedTemplateExt(ext string) bool {
	for _, e := range TemplateExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Get returns the template for a piece.
func (l *TemplateLibrary) Get(p board.Piece) (*PieceTemplate, bool) {
	t, ok := l.templates[p]
	return t, ok
}

// Len returns the number of loaded templates.
func (l *TemplateLibrary) Len() int {
	return len(l.templates)
}

// Pieces returns the loaded pieces in channel order.
func (l *TemplateLibrary) Pieces() []board.Piece {
	pieces := make([]board.Piece, 0, len(l.templates))
	for p := range l.templates {
		pieces = append(pieces, p)
	}
	sort.Slice(pieces, func(i, j int) bool { return pieces[i] < pieces[j] })
	return pieces
}

// Missing returns the pieces with no template, in channel order.
func (l *TemplateLibrary) Missing() []board.Piece {
	var missing []board.Piece
	for _, p := range board.AllPieces() {
		if _, ok := l.templates[p]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

// Close releases every template.
func (l *TemplateLibrary) Close() {
	for _, t := range l.templates {
		t.Close()
	}
}
