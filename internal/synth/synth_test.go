package synth

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/SzabolcsN/chess-board-from-img/internal/board"
)

func TestTemplatePixelsDistinct(t *testing.T) {
	const size = 48
	seen := make(map[string]board.Piece)

	for _, p := range board.AllPieces() {
		buf := TemplatePixels(p, size)
		if len(buf) != size*size*4 {
			t.Fatalf("%s: expected %d bytes, got %d", p.Code(), size*size*4, len(buf))
		}

		opaque := 0
		for i := 3; i < len(buf); i += 4 {
			if buf[i] == 255 {
				opaque++
			}
		}
		if opaque == 0 {
			t.Errorf("%s: template is fully transparent", p.Code())
		}

		key := string(buf)
		if other, dup := seen[key]; dup {
			t.Errorf("%s renders identically to %s", p.Code(), other.Code())
		}
		seen[key] = p
	}
}

func TestTemplatePixelsEmpty(t *testing.T) {
	buf := TemplatePixels(board.Empty, 16)
	if !bytes.Equal(buf, make([]byte, 16*16*4)) {
		t.Error("empty piece should render fully transparent")
	}
}

func TestBoardSquareColors(t *testing.T) {
	const cell, border = 10, 3
	img, err := Board(board.Position{}, cell, border)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Close()

	side := 8*cell + 2*border
	if img.Rows() != side || img.Cols() != side {
		t.Fatalf("expected %dx%d, got %dx%d", side, side, img.Cols(), img.Rows())
	}

	tests := []struct {
		name string
		x, y int
		want [3]uint8
	}{
		{"border", 0, 0, [3]uint8{}},
		{"a8 light", border + 1, border + 1, LightSquare},
		{"b8 dark", border + cell + 1, border + 1, DarkSquare},
		{"a1 dark", border + 1, border + 7*cell + 1, DarkSquare},
		{"h1 light", border + 7*cell + 1, border + 7*cell + 1, LightSquare},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := img.GetVecbAt(tt.y, tt.x)
			got := [3]uint8{v[0], v[1], v[2]}
			if got != tt.want {
				t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestWriteTemplates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pieces")
	if err := WriteTemplates(dir, 24); err != nil {
		t.Fatalf("WriteTemplates: %v", err)
	}

	for _, p := range board.AllPieces() {
		if _, err := os.Stat(filepath.Join(dir, p.Code()+".png")); err != nil {
			t.Errorf("missing %s.png: %v", p.Code(), err)
		}
	}
}
