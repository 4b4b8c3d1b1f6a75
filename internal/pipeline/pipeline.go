// Package pipeline turns photos into board positions: locate the board,
// classify the 64 cells and assemble the placement.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SzabolcsN/chess-board-from-img/internal/board"
	"github.com/SzabolcsN/chess-board-from-img/internal/config"
	"github.com/SzabolcsN/chess-board-from-img/internal/storage"
	"github.com/SzabolcsN/chess-board-from-img/internal/vision"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Result is the outcome of one recognition.
type Result struct {
	ID        uuid.UUID
	Source    string
	Position  board.Position
	Placement string
	FEN       string
	Strategy  string
	Grid      vision.Grid
	Fallback  bool  // Position is the starting position substituted after Err
	Err       error // recognition failure behind a fallback
	Warning   error // position implausibility; Position is still reported
	Duration  time.Duration
}

// Stats tracks recognizer activity
type Stats struct {
	Scans           int64
	Fallbacks       int64
	Errors          int64
	Changes         int64
	LastDuration    time.Duration
	AverageDuration time.Duration
}

func (s Stats) String() string {
	return fmt.Sprintf("scans=%d fallbacks=%d errors=%d changes=%d last=%v avg=%v",
		s.Scans, s.Fallbacks, s.Errors, s.Changes,
		s.LastDuration.Round(time.Millisecond), s.AverageDuration.Round(time.Millisecond))
}

// Recognizer runs the locate/classify pipeline. It is safe for concurrent use.
type Recognizer struct {
	locator    *vision.BoardLocator
	classifier *vision.CellClassifier
	workers    int
	flipped    bool
	mirrored   bool
	store      *storage.ScanStore
	logger     *zap.Logger

	owned []func() error

	mu    sync.Mutex
	stats Stats
	total time.Duration
}

// Option customizes a Recognizer.
type Option func(*Recognizer)

// WithWorkers sets how many cells are classified concurrently.
func WithWorkers(n int) Option {
	return func(r *Recognizer) { r.workers = n }
}

// WithBlackAtBottom rotates recognized positions by 180 degrees for images
// taken from black's side of the board.
func WithBlackAtBottom(enabled bool) Option {
	return func(r *Recognizer) { r.flipped = enabled }
}

// WithMirrored flips recognized positions left-to-right for mirrored
// camera feeds.
func WithMirrored(enabled bool) Option {
	return func(r *Recognizer) { r.mirrored = enabled }
}

// WithStore records every run into a scan history.
func WithStore(store *storage.ScanStore) Option {
	return func(r *Recognizer) { r.store = store }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recognizer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a recognizer from an already built locator and classifier.
func New(locator *vision.BoardLocator, classifier *vision.CellClassifier, opts ...Option) (*Recognizer, error) {
	if locator == nil || classifier == nil {
		return nil, errors.New("locator and classifier are required")
	}

	r := &Recognizer{
		locator:    locator,
		classifier: classifier,
		workers:    1,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewFromConfig loads the templates, opens the scan history and wires the
// debug observer as configured. Close releases what it opened.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var owned []func() error
	cleanup := func() {
		for _, c := range owned {
			c()
		}
	}

	library, err := vision.LoadTemplates(cfg.Pipeline.TemplateDir, logger.Named("templates"))
	if err != nil {
		return nil, err
	}
	owned = append(owned, func() error { library.Close(); return nil })
	if library.Len() == 0 {
		cleanup()
		return nil, fmt.Errorf("no piece templates found in %s", cfg.Pipeline.TemplateDir)
	}

	locOpts := []vision.LocatorOption{vision.WithLocatorLogger(logger.Named("locator"))}
	clsOpts := []vision.ClassifierOption{vision.WithClassifierLogger(logger.Named("classifier"))}
	if cfg.Debug.Enabled {
		obs, err := vision.NewDiskObserver(cfg.Debug.Dir, logger)
		if err != nil {
			cleanup()
			return nil, err
		}
		locOpts = append(locOpts, vision.WithLocatorObserver(obs))
		clsOpts = append(clsOpts, vision.WithClassifierObserver(obs))
	}

	locator, err := vision.NewBoardLocator(cfg.Pipeline.OutputSize, cfg.Locator, locOpts...)
	if err != nil {
		cleanup()
		return nil, err
	}
	classifier, err := vision.NewCellClassifier(library, cfg.Classifier, clsOpts...)
	if err != nil {
		cleanup()
		return nil, err
	}

	opts := []Option{
		WithWorkers(cfg.Pipeline.Workers),
		WithBlackAtBottom(cfg.Pipeline.BlackAtBottom),
		WithMirrored(cfg.Pipeline.Mirrored),
		WithLogger(logger),
	}
	if cfg.Storage.Enabled {
		store, err := storage.NewScanStore(cfg.Storage.DBPath, cfg.Storage.MaxRecords)
		if err != nil {
			cleanup()
			return nil, err
		}
		owned = append(owned, store.Close)
		opts = append(opts, WithStore(store))
	}

	r, err := New(locator, classifier, opts...)
	if err != nil {
		cleanup()
		return nil, err
	}
	r.owned = owned
	return r, nil
}

// Close releases the resources NewFromConfig opened.
func (r *Recognizer) Close() error {
	var err error
	for i := len(r.owned) - 1; i >= 0; i-- {
		if cerr := r.owned[i](); cerr != nil && err == nil {
			err = cerr
		}
	}
	r.owned = nil
	return err
}

// Store returns the scan history, or nil.
func (r *Recognizer) Store() *storage.ScanStore {
	return r.store
}

// GetStats returns current statistics
func (r *Recognizer) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Recognize runs the pipeline on a decoded raster.
func (r *Recognizer) Recognize(ctx context.Context, raw gocv.Mat, source string) (Result, error) {
	start := time.Now()
	res, err := r.recognize(ctx, raw, source)
	return r.finish(res, err, start, false)
}

// RecognizeFile reads and recognizes an image file.
func (r *Recognizer) RecognizeFile(ctx context.Context, path string) (Result, error) {
	return r.recognizeFile(ctx, path, false)
}

// RecognizeOrDefault is RecognizeFile that never fails on unreadable or
// undetectable input: such failures yield the starting position with
// Fallback set and the cause in Err. Cancellation is still reported.
func (r *Recognizer) RecognizeOrDefault(ctx context.Context, path string) (Result, error) {
	return r.recognizeFile(ctx, path, true)
}

func (r *Recognizer) recognizeFile(ctx context.Context, path string, fallback bool) (Result, error) {
	start := time.Now()
	res := Result{ID: uuid.New(), Source: path}

	img, err := vision.ReadImage(path)
	if err != nil {
		return r.finish(res, err, start, fallback)
	}
	defer img.Close()

	res, err = r.recognize(ctx, img, path)
	return r.finish(res, err, start, fallback)
}

// RecognizeBytes decodes and recognizes an in-memory image.
func (r *Recognizer) RecognizeBytes(ctx context.Context, buf []byte, source string) (Result, error) {
	start := time.Now()
	res := Result{ID: uuid.New(), Source: source}

	img, err := vision.DecodeImage(buf)
	if err != nil {
		return r.finish(res, err, start, false)
	}
	defer img.Close()

	res, err = r.recognize(ctx, img, source)
	return r.finish(res, err, start, false)
}

// RecognizeFrame grabs one frame from src and recognizes it.
func (r *Recognizer) RecognizeFrame(ctx context.Context, src vision.FrameSource) (Result, error) {
	start := time.Now()
	res := Result{ID: uuid.New(), Source: src.Name()}

	frame, err := src.ReadFrame()
	if err != nil {
		return r.finish(res, fmt.Errorf("failed to read frame: %w", err), start, false)
	}
	defer frame.Close()

	res, err = r.recognize(ctx, frame, src.Name())
	return r.finish(res, err, start, false)
}

// Recoverable reports whether err is an input problem that a fallback
// position may stand in for.
func Recoverable(err error) bool {
	var readErr *vision.ImageReadError
	var detErr *vision.DetectionError
	return errors.As(err, &readErr) || errors.As(err, &detErr)
}

func (r *Recognizer) recognize(ctx context.Context, raw gocv.Mat, source string) (Result, error) {
	res := Result{ID: uuid.New(), Source: source}

	boardImg, det, err := r.locator.LocateWithDetection(raw)
	if err != nil {
		return res, err
	}
	defer boardImg.Close()
	res.Strategy = det.Strategy

	grid, err := vision.ClassifyBoard(ctx, r.classifier, boardImg, r.workers)
	if err != nil {
		return res, fmt.Errorf("classify board: %w", err)
	}

	// Grid stays in image coordinates
	res.Grid = grid
	res.Position = grid.Position()
	if r.flipped {
		res.Position = res.Position.Rotate180()
	}
	if r.mirrored {
		res.Position = res.Position.Mirror()
	}
	res.Placement = res.Position.Placement()
	res.FEN = res.Position.FEN()

	if err := res.Position.Validate(); err != nil {
		res.Warning = err
		r.logger.Warn("Implausible position recognized",
			zap.String("source", source),
			zap.String("placement", res.Placement),
			zap.Error(err))
	}
	return res, nil
}

// finish updates statistics and history. With fallback set, a recoverable
// error is replaced by the starting position.
func (r *Recognizer) finish(res Result, err error, start time.Time, fallback bool) (Result, error) {
	if err != nil && fallback && Recoverable(err) {
		pos := board.StartingPosition()
		res.Position = pos
		res.Placement = pos.Placement()
		res.FEN = pos.FEN()
		res.Fallback = true
		res.Err = err
		err = nil

		r.logger.Warn("Recognition failed, reporting starting position",
			zap.String("source", res.Source),
			zap.Error(res.Err))
	}
	res.Duration = time.Since(start)

	r.mu.Lock()
	r.stats.Scans++
	r.stats.LastDuration = res.Duration
	r.total += res.Duration
	r.stats.AverageDuration = r.total / time.Duration(r.stats.Scans)
	if err != nil || res.Fallback {
		r.stats.Errors++
	}
	if res.Fallback {
		r.stats.Fallbacks++
	}
	r.mu.Unlock()

	if err != nil {
		res.Err = err
		r.logger.Debug("Recognition failed", zap.String("source", res.Source), zap.Error(err))
		r.record(res)
		return res, err
	}

	if !res.Fallback {
		r.logger.Info("Board recognized",
			zap.String("source", res.Source),
			zap.String("placement", res.Placement),
			zap.String("strategy", res.Strategy),
			zap.Duration("duration", res.Duration))
	}
	r.record(res)
	return res, nil
}

func (r *Recognizer) record(res Result) {
	if r.store == nil {
		return
	}

	rec := storage.ScanRecord{
		ID:         res.ID.String(),
		Source:     res.Source,
		Placement:  res.Placement,
		Strategy:   res.Strategy,
		Fallback:   res.Fallback,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	if err := r.store.Record(rec); err != nil {
		r.logger.Warn("Failed to record scan", zap.Error(err))
	}
}
