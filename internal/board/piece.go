package board

import (
	"fmt"
	"unicode"
)

// Piece is the occupant of a single square. The zero value is Empty.
type Piece uint8

const (
	Empty Piece = iota
	WhitePawn
	WhiteKnight
	WhiteBishop
	WhiteRook
	WhiteQueen
	WhiteKing
	BlackPawn
	BlackKnight
	BlackBishop
	BlackRook
	BlackQueen
	BlackKing
)

// NumPieces is the number of distinct non-empty pieces (6 kinds × 2 colors).
const NumPieces = 12

const kindLetters = "PNBRQK"

// AllPieces returns the twelve non-empty pieces in channel order.
func AllPieces() []Piece {
	pieces := make([]Piece, 0, NumPieces)
	for p := WhitePawn; p <= BlackKing; p++ {
		pieces = append(pieces, p)
	}
	return pieces
}

// ParseCode parses a template code such as "wP" or "bK".
func ParseCode(code string) (Piece, error) {
	if len(code) != 2 {
		return Empty, fmt.Errorf("invalid piece code %q: want <color><piece>", code)
	}

	var base Piece
	switch code[0] {
	case 'w':
		base = WhitePawn
	case 'b':
		base = BlackPawn
	default:
		return Empty, fmt.Errorf("invalid piece color %q in code %q", code[0], code)
	}

	for i := 0; i < len(kindLetters); i++ {
		if kindLetters[i] == code[1] {
			return base + Piece(i), nil
		}
	}
	return Empty, fmt.Errorf("invalid piece letter %q in code %q", code[1], code)
}

// FromFEN maps a FEN piece letter to a Piece.
func FromFEN(r rune) (Piece, bool) {
	if r > unicode.MaxASCII {
		return Empty, false
	}
	base := WhitePawn
	if unicode.IsLower(r) {
		base = BlackPawn
	}
	upper := byte(unicode.ToUpper(r))
	for i := 0; i < len(kindLetters); i++ {
		if kindLetters[i] == upper {
			return base + Piece(i), true
		}
	}
	return Empty, false
}

// IsWhite reports whether p is one of the white pieces.
func (p Piece) IsWhite() bool {
	return p >= WhitePawn && p <= WhiteKing
}

// IsBlack reports whether p is one of the black pieces.
func (p Piece) IsBlack() bool {
	return p >= BlackPawn && p <= BlackKing
}

func (p Piece) kind() byte {
	switch {
	case p.IsWhite():
		return kindLetters[p-WhitePawn]
	case p.IsBlack():
		return kindLetters[p-BlackPawn]
	default:
		return 0
	}
}

// Code returns the template code ("wP", "bK"), or "" for Empty.
func (p Piece) Code() string {
	switch {
	case p.IsWhite():
		return "w" + string(p.kind())
	case p.IsBlack():
		return "b" + string(p.kind())
	default:
		return ""
	}
}

// FEN returns the FEN letter: uppercase for white, lowercase for black.
// Empty returns 0.
func (p Piece) FEN() rune {
	k := p.kind()
	if k == 0 {
		return 0
	}
	if p.IsBlack() {
		return unicode.ToLower(rune(k))
	}
	return rune(k)
}

// Channel converts a piece to its tensor channel index.
// Channels: 0-5 = white pieces, 6-11 = black pieces
// Order: Pawn, Knight, Bishop, Rook, Queen, King
func (p Piece) Channel() int {
	if p == Empty || p > BlackKing {
		return -1
	}
	return int(p) - 1
}

var pieceSymbols = [...]string{"", "♙", "♘", "♗", "♖", "♕", "♔", "♟", "♞", "♝", "♜", "♛", "♚"}

// Symbol returns the unicode chess glyph for the piece.
func (p Piece) Symbol() string {
	if int(p) >= len(pieceSymbols) {
		return ""
	}
	return pieceSymbols[p]
}

func (p Piece) String() string {
	if p == Empty {
		return "empty"
	}
	if c := p.Code(); c != "" {
		return c
	}
	return fmt.Sprintf("Piece(%d)", uint8(p))
}
