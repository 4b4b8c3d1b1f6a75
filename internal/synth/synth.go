// Package synth renders synthetic piece templates and board photos. The
// rasters are exact (no anti-aliasing), which makes them suitable as test
// fixtures for the vision pipeline.
package synth

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/SzabolcsN/chess-board-from-img/internal/board"
	"gocv.io/x/gocv"
)

// Square colors in BGR order (a light and dark brown wooden board).
var (
	LightSquare = [3]uint8{181, 217, 240}
	DarkSquare  = [3]uint8{99, 136, 181}
)

var (
	whiteBody = [3]uint8{250, 250, 250}
	whiteMark = [3]uint8{30, 30, 30}
	blackBody = [3]uint8{30, 30, 30}
	blackMark = [3]uint8{255, 255, 255}
)

// TemplatePixels renders a size×size BGRA template. Transparent pixels are
// zero in every channel.
func TemplatePixels(p board.Piece, size int) []byte {
	buf := make([]byte, size*size*4)
	if p == board.Empty {
		return buf
	}

	kind := p.Channel() % 6
	body, mark := whiteBody, whiteMark
	if p.IsBlack() {
		body, mark = blackBody, blackMark
	}

	// every silhouette contains its own two-pixel stripe, at a row unique
	// to the piece kind
	stripe := size/2 + 2*kind - 4
	inside := silhouette(kind, size)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if !inside(float64(x)+0.5, float64(y)+0.5) {
				continue
			}
			c := body
			if y == stripe || y == stripe+1 {
				c = mark
			}
			i := (y*size + x) * 4
			buf[i], buf[i+1], buf[i+2], buf[i+3] = c[0], c[1], c[2], 255
		}
	}
	return buf
}

func silhouette(kind, size int) func(x, y float64) bool {
	s := float64(size)
	m := s / 8
	c := s / 2

	switch kind {
	case 0: // pawn
		cy, r := c+s/10, s/5
		return func(x, y float64) bool {
			return (x-c)*(x-c)+(y-cy)*(y-cy) <= r*r
		}
	case 1: // knight
		ax, ay := m, s-m
		bx, by := s-m, s-m
		tx, ty := c+s/8, m
		return func(x, y float64) bool {
			d1 := cross(x, y, ax, ay, bx, by)
			d2 := cross(x, y, bx, by, tx, ty)
			d3 := cross(x, y, tx, ty, ax, ay)
			neg := d1 < 0 || d2 < 0 || d3 < 0
			pos := d1 > 0 || d2 > 0 || d3 > 0
			return !(neg && pos)
		}
	case 2: // bishop
		rx, ry := s/6, c-m
		return func(x, y float64) bool {
			dx, dy := (x-c)/rx, (y-c)/ry
			return dx*dx+dy*dy <= 1
		}
	case 3: // rook
		return func(x, y float64) bool {
			return x >= m+s/10 && x <= s-m-s/10 && y >= m && y <= s-m
		}
	case 4: // queen
		r := c - m
		return func(x, y float64) bool {
			return (x-c)*(x-c)+(y-c)*(y-c) <= r*r
		}
	default: // king
		half := s / 8
		return func(x, y float64) bool {
			vertical := math.Abs(x-c) <= half && y >= m && y <= s-m
			horizontal := math.Abs(y-(m+s/4)) <= half && x >= m && x <= s-m
			return vertical || horizontal
		}
	}
}

func cross(px, py, ax, ay, bx, by float64) float64 {
	return (px-bx)*(ay-by) - (ax-bx)*(py-by)
}

// Template renders a BGRA template Mat. The caller closes it.
func Template(p board.Piece, size int) (gocv.Mat, error) {
	return matFromBytes(size, size, gocv.MatTypeCV8UC4, TemplatePixels(p, size))
}

// Square renders one BGR board cell with an optional piece on it.
func Square(p board.Piece, light bool, size int) (gocv.Mat, error) {
	bg := DarkSquare
	if light {
		bg = LightSquare
	}

	buf := make([]byte, size*size*3)
	paintCell(buf, size, 0, 0, size, bg, TemplatePixels(p, size))
	return matFromBytes(size, size, gocv.MatTypeCV8UC3, buf)
}

// Board renders a BGR photo of pos with cell-pixel squares surrounded by a
// black border of the given width. Row 0 is drawn at the top; a8 is light.
func Board(pos board.Position, cell, border int) (gocv.Mat, error) {
	side := cell*board.Size + 2*border
	buf := make([]byte, side*side*3)

	sprites := make(map[board.Piece][]byte)
	for row := 0; row < board.Size; row++ {
		for col := 0; col < board.Size; col++ {
			bg := DarkSquare
			if (row+col)%2 == 0 {
				bg = LightSquare
			}

			p := pos[row][col]
			sprite, ok := sprites[p]
			if !ok {
				sprite = TemplatePixels(p, cell)
				sprites[p] = sprite
			}
			paintCell(buf, side, border+col*cell, border+row*cell, cell, bg, sprite)
		}
	}
	return matFromBytes(side, side, gocv.MatTypeCV8UC3, buf)
}

func paintCell(buf []byte, stride, x0, y0, size int, bg [3]uint8, sprite []byte) {
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := bg
			si := (y*size + x) * 4
			if sprite[si+3] > 0 {
				c = [3]uint8{sprite[si], sprite[si+1], sprite[si+2]}
			}
			di := ((y0+y)*stride + x0 + x) * 3
			buf[di], buf[di+1], buf[di+2] = c[0], c[1], c[2]
		}
	}
}

// WriteTemplates writes the twelve templates as <code>.png into dir.
func WriteTemplates(dir string, size int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create template directory: %w", err)
	}

	for _, p := range board.AllPieces() {
		tmpl, err := Template(p, size)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, p.Code()+".png")
		ok := gocv.IMWrite(path, tmpl)
		tmpl.Close()
		if !ok {
			return fmt.Errorf("failed to write template %s", path)
		}
	}
	return nil
}

// matFromBytes copies data into an OpenCV-owned Mat.
func matFromBytes(rows, cols int, mt gocv.MatType, data []byte) (gocv.Mat, error) {
	view, err := gocv.NewMatFromBytes(rows, cols, mt, data)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("create mat: %w", err)
	}
	defer view.Close()

	owned := view.Clone()
	runtime.KeepAlive(data)
	return owned, nil
}
