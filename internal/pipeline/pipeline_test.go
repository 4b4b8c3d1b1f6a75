package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SzabolcsN/chess-board-from-img/internal/board"
	"github.com/SzabolcsN/chess-board-from-img/internal/config"
	"github.com/SzabolcsN/chess-board-from-img/internal/storage"
	"github.com/SzabolcsN/chess-board-from-img/internal/synth"
	"github.com/SzabolcsN/chess-board-from-img/internal/vision"
	"gocv.io/x/gocv"
)

const testCell = 48

func writeTemplates(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "pieces")
	if err := synth.WriteTemplates(dir, testCell); err != nil {
		t.Fatalf("WriteTemplates: %v", err)
	}
	return dir
}

// newTestRecognizer uses only the color-mask strategy so crops of bordered
// synthetic boards are exact.
func newTestRecognizer(t *testing.T, opts ...Option) *Recognizer {
	t.Helper()

	lib, err := vision.LoadTemplates(writeTemplates(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(lib.Close)

	lc := vision.DefaultLocatorConfig()
	locator, err := vision.NewBoardLocator(8*testCell, lc, vision.WithStrategies(vision.NewColorMaskStrategy(lc)))
	if err != nil {
		t.Fatal(err)
	}
	classifier, err := vision.NewCellClassifier(lib, vision.DefaultClassifierConfig())
	if err != nil {
		t.Fatal(err)
	}

	r, err := New(locator, classifier, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func newTestStore(t *testing.T) *storage.ScanStore {
	t.Helper()
	store, err := storage.NewScanStore(filepath.Join(t.TempDir(), "scans.db"), 50)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func writeBoard(t *testing.T, pos board.Position, border int) string {
	t.Helper()
	img, err := synth.Board(pos, testCell, border)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Close()

	path := filepath.Join(t.TempDir(), "board.png")
	if !gocv.IMWrite(path, img) {
		t.Fatal("IMWrite failed")
	}
	return path
}

func TestNewRequiresComponents(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for missing locator and classifier")
	}
}

func TestRecognizeFileStartingPosition(t *testing.T) {
	store := newTestStore(t)
	r := newTestRecognizer(t, WithWorkers(4), WithStore(store))

	res, err := r.RecognizeFile(context.Background(), writeBoard(t, board.StartingPosition(), 25))
	if err != nil {
		t.Fatalf("RecognizeFile: %v", err)
	}

	if res.Placement != board.StartingPlacement {
		t.Errorf("expected %s, got %s", board.StartingPlacement, res.Placement)
	}
	if res.FEN != board.StartingPlacement+board.DefaultSuffix {
		t.Errorf("unexpected FEN %q", res.FEN)
	}
	if res.Strategy != "color-mask" {
		t.Errorf("expected color-mask strategy, got %q", res.Strategy)
	}
	if res.Fallback || res.Err != nil || res.Warning != nil {
		t.Errorf("unexpected failure markers: fallback=%v err=%v warning=%v", res.Fallback, res.Err, res.Warning)
	}

	records, err := store.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != res.ID.String() || records[0].Placement != res.Placement {
		t.Errorf("scan not recorded: %+v", records)
	}
}

func TestRecognizeBlackAtBottom(t *testing.T) {
	r := newTestRecognizer(t, WithBlackAtBottom(true))

	// Photographed from black's side, the starting position appears rotated.
	photo := board.StartingPosition().Rotate180()
	res, err := r.RecognizeFile(context.Background(), writeBoard(t, photo, 25))
	if err != nil {
		t.Fatalf("RecognizeFile: %v", err)
	}
	if res.Placement != board.StartingPlacement {
		t.Errorf("expected %s, got %s", board.StartingPlacement, res.Placement)
	}
	if res.Grid[0][0].Piece != board.WhiteRook {
		t.Errorf("grid should stay in image coordinates, got %v at top-left", res.Grid[0][0].Piece)
	}
}

func TestRecognizeMirrored(t *testing.T) {
	r := newTestRecognizer(t, WithMirrored(true))

	res, err := r.RecognizeFile(context.Background(), writeBoard(t, board.StartingPosition().Mirror(), 25))
	if err != nil {
		t.Fatalf("RecognizeFile: %v", err)
	}
	if res.Placement != board.StartingPlacement {
		t.Errorf("expected %s, got %s", board.StartingPlacement, res.Placement)
	}
}

func TestRecognizeBytes(t *testing.T) {
	r := newTestRecognizer(t)

	pos, err := board.ParsePlacement("4k3/8/8/3q4/8/8/3Q4/4K3")
	if err != nil {
		t.Fatal(err)
	}
	img, err := synth.Board(pos, testCell, 12)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Close()

	res, err := r.RecognizeBytes(context.Background(), buf.GetBytes(), "upload")
	if err != nil {
		t.Fatalf("RecognizeBytes: %v", err)
	}
	if res.Placement != pos.Placement() {
		t.Errorf("expected %s, got %s", pos.Placement(), res.Placement)
	}
	if res.Source != "upload" {
		t.Errorf("expected source upload, got %s", res.Source)
	}
}

func TestRecognizeFileErrors(t *testing.T) {
	r := newTestRecognizer(t)

	_, err := r.RecognizeFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	var readErr *vision.ImageReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ImageReadError, got %v", err)
	}

	if st := r.GetStats(); st.Scans != 1 || st.Errors != 1 || st.Fallbacks != 0 {
		t.Errorf("unexpected stats: %s", st)
	}
}

func TestRecognizeOrDefault(t *testing.T) {
	black := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 200, 200, gocv.MatTypeCV8UC3)
	defer black.Close()
	blackPath := filepath.Join(t.TempDir(), "black.png")
	if !gocv.IMWrite(blackPath, black) {
		t.Fatal("IMWrite failed")
	}

	tests := []struct {
		name    string
		path    string
		wantErr func(error) bool
	}{
		{
			name: "unreadable",
			path: filepath.Join(t.TempDir(), "missing.png"),
			wantErr: func(err error) bool {
				var e *vision.ImageReadError
				return errors.As(err, &e)
			},
		},
		{
			name: "no board",
			path: blackPath,
			wantErr: func(err error) bool {
				var e *vision.DetectionError
				return errors.As(err, &e)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			r := newTestRecognizer(t, WithStore(store))

			res, err := r.RecognizeOrDefault(context.Background(), tt.path)
			if err != nil {
				t.Fatalf("RecognizeOrDefault returned error: %v", err)
			}
			if !res.Fallback {
				t.Error("expected fallback result")
			}
			if res.Placement != board.StartingPlacement {
				t.Errorf("expected starting placement, got %s", res.Placement)
			}
			if !tt.wantErr(res.Err) {
				t.Errorf("unexpected cause: %v", res.Err)
			}

			if st := r.GetStats(); st.Fallbacks != 1 || st.Errors != 1 {
				t.Errorf("unexpected stats: %s", st)
			}

			records, err := store.Recent(0)
			if err != nil {
				t.Fatal(err)
			}
			if len(records) != 1 || !records[0].Fallback || records[0].Error == "" {
				t.Errorf("fallback not recorded: %+v", records)
			}
		})
	}
}

func TestRecognizeCancelled(t *testing.T) {
	r := newTestRecognizer(t, WithWorkers(4))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RecognizeOrDefault(ctx, writeBoard(t, board.StartingPosition(), 10))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if Recoverable(err) {
		t.Error("cancellation must not be recoverable")
	}
}

func TestRecognizeImplausiblePosition(t *testing.T) {
	r := newTestRecognizer(t)

	pos, err := board.ParsePlacement("8/pppppppp/8/8/8/8/PPPPPPPP/8")
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.RecognizeFile(context.Background(), writeBoard(t, pos, 10))
	if err != nil {
		t.Fatalf("RecognizeFile: %v", err)
	}
	if res.Warning == nil {
		t.Error("expected a warning for a position without kings")
	}
	if res.Placement != pos.Placement() {
		t.Errorf("warning must not change the result: got %s", res.Placement)
	}
}

func TestNewFromConfig(t *testing.T) {
	root := t.TempDir()

	cfg := config.Default()
	cfg.Pipeline.TemplateDir = writeTemplates(t)
	cfg.Pipeline.OutputSize = 8 * testCell
	cfg.Pipeline.Workers = 2
	cfg.Storage.DBPath = filepath.Join(root, "scans.db")
	cfg.Debug.Enabled = true
	cfg.Debug.Dir = filepath.Join(root, "debug")

	r, err := NewFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	defer r.Close()

	res, err := r.RecognizeFile(context.Background(), writeBoard(t, board.StartingPosition(), 0))
	if err != nil {
		t.Fatalf("RecognizeFile: %v", err)
	}
	if res.Placement != board.StartingPlacement {
		t.Errorf("expected %s, got %s (strategy %s)", board.StartingPlacement, res.Placement, res.Strategy)
	}

	count, err := r.Store().Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 recorded scan, got %d", count)
	}
}

func TestNewFromConfigNoTemplates(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.TemplateDir = t.TempDir()
	cfg.Storage.Enabled = false

	if _, err := NewFromConfig(cfg, nil); err == nil || !strings.Contains(err.Error(), "no piece templates") {
		t.Errorf("expected missing templates error, got %v", err)
	}
}

// sequenceSource replays rendered positions, repeating the last one.
type sequenceSource struct {
	mu     sync.Mutex
	frames []gocv.Mat
	next   int
}

func (s *sequenceSource) ReadFrame() (gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.frames[s.next]
	if s.next < len(s.frames)-1 {
		s.next++
	}
	return f.Clone(), nil
}

func (s *sequenceSource) Name() string { return "sequence" }

func (s *sequenceSource) Close() error {
	for _, f := range s.frames {
		f.Close()
	}
	return nil
}

func TestWatch(t *testing.T) {
	r := newTestRecognizer(t)

	start := board.StartingPosition()
	moved := start
	moved[6][4], moved[4][4] = board.Empty, board.WhitePawn // e2-e4

	src := &sequenceSource{}
	for _, pos := range []board.Position{start, start, moved} {
		img, err := synth.Board(pos, testCell, 10)
		if err != nil {
			t.Fatal(err)
		}
		src.frames = append(src.frames, img)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := make(chan Change)
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, src, time.Millisecond, out) }()

	first := <-out
	if first.Result.Placement != board.StartingPlacement || len(first.Changed) != 0 {
		t.Errorf("unexpected first change: %s %v", first.Result.Placement, first.Changed)
	}

	second := <-out
	if second.Result.Placement != moved.Placement() {
		t.Errorf("expected %s, got %s", moved.Placement(), second.Result.Placement)
	}
	var squares []string
	for _, sq := range second.Changed {
		squares = append(squares, sq.String())
	}
	if strings.Join(squares, ",") != "e4,e2" {
		t.Errorf("expected changes e4,e2, got %v", squares)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if st := r.GetStats(); st.Changes != 2 {
		t.Errorf("expected 2 changes, got %d", st.Changes)
	}
}

func TestWatchInvalidInterval(t *testing.T) {
	r := newTestRecognizer(t)
	if err := r.Watch(context.Background(), &sequenceSource{}, 0, nil); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestStatsString(t *testing.T) {
	s := Stats{Scans: 3, Fallbacks: 1, Errors: 1, LastDuration: 12 * time.Millisecond, AverageDuration: 10 * time.Millisecond}
	if got := s.String(); !strings.Contains(got, "scans=3") || !strings.Contains(got, "avg=10ms") {
		t.Errorf("unexpected String(): %s", got)
	}
}

