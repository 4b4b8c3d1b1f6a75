package board

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

const (
	// StartingPlacement is the placement field of the standard initial position.
	StartingPlacement = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"

	// DefaultSuffix holds the static FEN fields appended after the placement.
	DefaultSuffix = " w KQkq - 0 1"

	// Size is the number of ranks and files.
	Size = 8
)

// Position is an 8x8 grid of pieces. Row 0 is the top rank as stored
// (rank 8 when the board is viewed from white's side).
type Position [Size][Size]Piece

// Square addresses a cell of a Position.
type Square struct {
	Row int // 0-7, top to bottom
	Col int // 0-7, left to right
}

// String returns algebraic notation (e.g., "e4"), assuming row 0 is rank 8.
func (s Square) String() string {
	files := "abcdefgh"
	return fmt.Sprintf("%c%d", files[s.Col], Size-s.Row)
}

// Index converts the square to a 0-63 row-major index.
func (s Square) Index() int {
	return s.Row*Size + s.Col
}

// StartingPosition returns the standard initial arrangement.
func StartingPosition() Position {
	p, err := ParsePlacement(StartingPlacement)
	if err != nil {
		panic(err)
	}
	return p
}

// Placement encodes the position as a FEN piece-placement field.
func (p Position) Placement() string {
	var sb strings.Builder
	for row := 0; row < Size; row++ {
		if row > 0 {
			sb.WriteByte('/')
		}
		empty := 0
		for col := 0; col < Size; col++ {
			piece := p[row][col]
			if piece == Empty {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteRune(piece.FEN())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
	}
	return sb.String()
}

// FEN returns the full FEN string with the static DefaultSuffix fields.
func (p Position) FEN() string {
	return p.Placement() + DefaultSuffix
}

// ParsePlacement decodes a FEN piece-placement field. A full FEN string is
// accepted as well; everything after the first space is ignored.
func ParsePlacement(placement string) (Position, error) {
	var p Position

	if i := strings.IndexByte(placement, ' '); i >= 0 {
		placement = placement[:i]
	}

	ranks := strings.Split(placement, "/")
	if len(ranks) != Size {
		return p, fmt.Errorf("invalid placement %q: expected %d ranks, got %d", placement, Size, len(ranks))
	}

	for row, rank := range ranks {
		col := 0
		for _, r := range rank {
			if r >= '1' && r <= '8' {
				col += int(r - '0')
				continue
			}
			piece, ok := FromFEN(r)
			if !ok {
				return p, fmt.Errorf("invalid piece %q in rank %d", r, row+1)
			}
			if col >= Size {
				return p, fmt.Errorf("rank %d overflows: %q", row+1, rank)
			}
			p[row][col] = piece
			col++
		}
		if col != Size {
			return p, fmt.Errorf("rank %d has %d files, want %d: %q", row+1, col, Size, rank)
		}
	}

	return p, nil
}

// Count returns the number of white and black pieces on the board.
func (p Position) Count() (white, black int) {
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			switch {
			case p[row][col].IsWhite():
				white++
			case p[row][col].IsBlack():
				black++
			}
		}
	}
	return white, black
}

// Diff compares two positions and returns the squares whose occupant differs.
func (p Position) Diff(other Position) []Square {
	var changes []Square
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if p[row][col] != other[row][col] {
				changes = append(changes, Square{Row: row, Col: col})
			}
		}
	}
	return changes
}

// Validate checks whether the position is plausible for a game in progress.
// Recognition results are not rejected on this basis; callers log it.
func (p Position) Validate() error {
	white, black := p.Count()

	if white+black > 32 {
		return fmt.Errorf("too many pieces detected: %d", white+black)
	}
	if white > 16 || black > 16 {
		return fmt.Errorf("too many pieces for one side: white=%d, black=%d", white, black)
	}

	kings := map[Piece]int{}
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if pc := p[row][col]; pc == WhiteKing || pc == BlackKing {
				kings[pc]++
			}
		}
	}
	if kings[WhiteKing] != 1 || kings[BlackKing] != 1 {
		return fmt.Errorf("expected one king per side: white=%d, black=%d", kings[WhiteKing], kings[BlackKing])
	}

	if _, err := chess.FEN(p.FEN()); err != nil {
		return fmt.Errorf("position rejected by FEN decoder: %w", err)
	}

	return nil
}

// Game builds a notnil/chess game starting at this position, for handing
// the recognized board to a game-state engine.
func (p Position) Game() (*chess.Game, error) {
	opt, err := chess.FEN(p.FEN())
	if err != nil {
		return nil, fmt.Errorf("decode fen: %w", err)
	}
	return chess.NewGame(opt), nil
}

// Draw returns a human-readable diagram of the board, top rank first.
func (p Position) Draw() string {
	var sb strings.Builder
	sb.WriteString("\n  a b c d e f g h\n")
	for row := 0; row < Size; row++ {
		rank := Size - row
		fmt.Fprintf(&sb, "%d ", rank)
		for col := 0; col < Size; col++ {
			if pc := p[row][col]; pc != Empty {
				sb.WriteString(pc.Symbol() + " ")
				continue
			}
			if (row+col)%2 == 0 {
				sb.WriteString("□ ")
			} else {
				sb.WriteString("■ ")
			}
		}
		fmt.Fprintf(&sb, "%d\n", rank)
	}
	sb.WriteString("  a b c d e f g h\n")
	return sb.String()
}
