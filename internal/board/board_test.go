package board

import (
	"strings"
	"testing"
)

func TestParseCode(t *testing.T) {
	tests := []struct {
		code      string
		expected  Piece
		expectErr bool
	}{
		{"wP", WhitePawn, false},
		{"wN", WhiteKnight, false},
		{"wK", WhiteKing, false},
		{"bP", BlackPawn, false},
		{"bQ", BlackQueen, false},
		{"bK", BlackKing, false},
		{"xP", Empty, true},
		{"wX", Empty, true},
		{"w", Empty, true},
		{"wPP", Empty, true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			piece, err := ParseCode(tt.code)
			if tt.expectErr {
				if err == nil {
					t.Errorf("Expected error for code %q", tt.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if piece != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, piece)
			}
			if piece.Code() != tt.code {
				t.Errorf("Code round trip: expected %q, got %q", tt.code, piece.Code())
			}
		})
	}
}

func TestPieceFEN(t *testing.T) {
	if WhiteQueen.FEN() != 'Q' {
		t.Errorf("Expected Q, got %c", WhiteQueen.FEN())
	}
	if BlackKnight.FEN() != 'n' {
		t.Errorf("Expected n, got %c", BlackKnight.FEN())
	}
	if Empty.FEN() != 0 {
		t.Errorf("Expected 0 for empty, got %c", Empty.FEN())
	}

	for _, p := range AllPieces() {
		back, ok := FromFEN(p.FEN())
		if !ok || back != p {
			t.Errorf("FEN round trip failed for %v: got %v", p, back)
		}
	}
}

func TestFromFENRejectsNonASCII(t *testing.T) {
	for _, r := range []rune{'ő', 'Ő', 'ρ', 'К'} {
		if p, ok := FromFEN(r); ok {
			t.Errorf("FromFEN(%q) = %v, want rejection", r, p)
		}
	}
}

func TestPieceChannel(t *testing.T) {
	tests := []struct {
		piece    Piece
		expected int
	}{
		{WhitePawn, 0},
		{WhiteKnight, 1},
		{WhiteBishop, 2},
		{WhiteRook, 3},
		{WhiteQueen, 4},
		{WhiteKing, 5},
		{BlackPawn, 6},
		{BlackKnight, 7},
		{BlackBishop, 8},
		{BlackRook, 9},
		{BlackQueen, 10},
		{BlackKing, 11},
		{Empty, -1},
	}

	for _, tt := range tests {
		if ch := tt.piece.Channel(); ch != tt.expected {
			t.Errorf("Piece %v: expected channel %d, got %d", tt.piece, tt.expected, ch)
		}
	}
}

func TestPlacementRoundTrip(t *testing.T) {
	placements := []string{
		StartingPlacement,
		"8/8/8/8/8/8/8/8",
		"r3k2r/pp1n1ppp/2p5/8/3P4/2N5/PP3PPP/R3K2R",
		"4k3/8/8/8/8/8/8/4K3",
	}

	for _, placement := range placements {
		t.Run(placement, func(t *testing.T) {
			pos, err := ParsePlacement(placement)
			if err != nil {
				t.Fatalf("ParsePlacement failed: %v", err)
			}
			if got := pos.Placement(); got != placement {
				t.Errorf("Expected %s, got %s", placement, got)
			}
		})
	}
}

func TestParsePlacementErrors(t *testing.T) {
	tests := []struct {
		name      string
		placement string
	}{
		{"Too few ranks", "8/8/8/8/8/8/8"},
		{"Rank too long", "9/8/8/8/8/8/8/8"},
		{"Rank too short", "7/8/8/8/8/8/8/8"},
		{"Bad letter", "8/8/8/8/8/8/8/7x"},
		{"Piece overflow", "8p/8/8/8/8/8/8/8"},
		{"Non-ASCII letter", "ő7/8/8/8/8/8/8/8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePlacement(tt.placement); err == nil {
				t.Errorf("Expected error for %q", tt.placement)
			}
		})
	}
}

func TestParsePlacementIgnoresSuffix(t *testing.T) {
	pos, err := ParsePlacement(StartingPlacement + DefaultSuffix)
	if err != nil {
		t.Fatalf("ParsePlacement failed: %v", err)
	}
	if pos != StartingPosition() {
		t.Error("Full FEN did not decode to the starting position")
	}
}

func TestStartingPosition(t *testing.T) {
	pos := StartingPosition()

	if pos[0][0] != BlackRook || pos[0][4] != BlackKing {
		t.Errorf("Top rank incorrect: %v %v", pos[0][0], pos[0][4])
	}
	if pos[7][3] != WhiteQueen {
		t.Errorf("Expected white queen on d1, got %v", pos[7][3])
	}

	white, black := pos.Count()
	if white != 16 || black != 16 {
		t.Errorf("Expected 16/16 pieces, got %d/%d", white, black)
	}

	if pos.FEN() != "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1" {
		t.Errorf("Unexpected FEN: %s", pos.FEN())
	}
}

func TestSquare(t *testing.T) {
	sq := Square{Row: 4, Col: 4}

	if sq.String() != "e4" {
		t.Errorf("Expected e4, got %s", sq.String())
	}
	if sq.Index() != 36 {
		t.Errorf("Expected index 36, got %d", sq.Index())
	}
	if (Square{Row: 0, Col: 0}).String() != "a8" {
		t.Error("Expected top-left square to be a8")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		setupFn   func() Position
		expectErr bool
	}{
		{
			name:      "Valid starting position",
			setupFn:   StartingPosition,
			expectErr: false,
		},
		{
			name: "Kings only",
			setupFn: func() Position {
				var p Position
				p[0][4] = BlackKing
				p[7][4] = WhiteKing
				return p
			},
			expectErr: false,
		},
		{
			name: "Missing black king",
			setupFn: func() Position {
				var p Position
				p[7][4] = WhiteKing
				return p
			},
			expectErr: true,
		},
		{
			name: "Two white kings",
			setupFn: func() Position {
				var p Position
				p[0][4] = BlackKing
				p[7][4] = WhiteKing
				p[7][5] = WhiteKing
				return p
			},
			expectErr: true,
		},
		{
			name: "Too many pieces",
			setupFn: func() Position {
				var p Position
				for row := 0; row < Size; row++ {
					for col := 0; col < Size; col++ {
						p[row][col] = WhitePawn
					}
				}
				return p
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.setupFn().Validate()
			if tt.expectErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	before := StartingPosition()
	after := before
	after[6][4] = Empty     // e2
	after[4][4] = WhitePawn // e4

	changes := before.Diff(after)
	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes, got %d", len(changes))
	}

	found := map[string]bool{}
	for _, sq := range changes {
		found[sq.String()] = true
	}
	if !found["e2"] || !found["e4"] {
		t.Errorf("Expected changes at e2 and e4, got %v", changes)
	}
}

func TestGame(t *testing.T) {
	game, err := StartingPosition().Game()
	if err != nil {
		t.Fatalf("Game failed: %v", err)
	}
	if len(game.ValidMoves()) != 20 {
		t.Errorf("Expected 20 legal moves from the start, got %d", len(game.ValidMoves()))
	}
}

func TestTensor(t *testing.T) {
	var p Position
	p[6][4] = WhitePawn // e2
	p[0][4] = BlackKing // e8

	dense := p.Tensor()
	shape := dense.Shape()
	if len(shape) != 3 || shape[0] != 12 || shape[1] != 8 || shape[2] != 8 {
		t.Fatalf("Unexpected tensor shape %v", shape)
	}

	v, err := dense.At(0, 6, 4)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if v.(float32) != 1.0 {
		t.Errorf("Expected white pawn channel set, got %v", v)
	}

	v, err = dense.At(11, 0, 4)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if v.(float32) != 1.0 {
		t.Errorf("Expected black king channel set, got %v", v)
	}

	v, err = dense.At(0, 0, 0)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if v.(float32) != 0 {
		t.Errorf("Expected empty square to be zero, got %v", v)
	}
}

func TestDraw(t *testing.T) {
	output := StartingPosition().Draw()

	if !strings.Contains(output, "a b c d e f g h") {
		t.Error("Draw output missing file labels")
	}
	if !strings.Contains(output, "♚") || !strings.Contains(output, "♔") {
		t.Error("Draw output missing kings")
	}
}
