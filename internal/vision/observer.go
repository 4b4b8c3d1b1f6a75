package vision

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Observer receives intermediate rasters for debugging. Implementations
// must not modify or retain the Mats they are given, and must be safe for
// concurrent use when cells are classified in parallel.
type Observer interface {
	ObserveBoard(stage string, img gocv.Mat)
	ObserveCell(row, col int, stage string, img gocv.Mat)
}

type nopObserver struct{}

func (nopObserver) ObserveBoard(string, gocv.Mat) {}
func (nopObserver) ObserveCell(int, int, string, gocv.Mat) {}

// DiskObserver writes every observed raster as a PNG into a directory.
type DiskObserver struct {
	dir    string
	logger *zap.Logger
}

// NewDiskObserver creates dir if needed.
func NewDiskObserver(dir string, logger *zap.Logger) (*DiskObserver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create debug directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiskObserver{dir: dir, logger: logger}, nil
}

// Dir returns the output directory.
func (o *DiskObserver) Dir() string {
	return o.dir
}

func (o *DiskObserver) ObserveBoard(stage string, img gocv.Mat) {
	o.write(fmt.Sprintf("board_%s.png", stage), img)
}

func (o *DiskObserver) ObserveCell(row, col int, stage string, img gocv.Mat) {
	o.write(fmt.Sprintf("square_%d_%d_%s.png", row, col, stage), img)
}

func (o *DiskObserver) write(name string, img gocv.Mat) {
	if isEmpty(img) {
		return
	}
	path := filepath.Join(o.dir, name)
	if ok := gocv.IMWrite(path, img); !ok {
		o.logger.Warn("Failed to write debug image", zap.String("path", path))
	}
}
