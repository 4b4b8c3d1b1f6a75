package board

import (
	"strings"
	"testing"

	"github.com/notnil/chess"
)

const italianPGN = `[Event "Casual"]
[White "A"]
[Black "B"]
[Result "*"]

1. e4 e5 2. Nf3 Nc6 3. Bc4 Bc5 *
`

func TestReadGames(t *testing.T) {
	games, err := ReadGames(strings.NewReader(italianPGN + "\n" + italianPGN))
	if err != nil {
		t.Fatalf("ReadGames: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(games))
	}

	positions, err := GamePositions(games[0])
	if err != nil {
		t.Fatalf("GamePositions: %v", err)
	}
	if len(positions) != 7 {
		t.Fatalf("expected 7 positions, got %d", len(positions))
	}
	if positions[0] != StartingPosition() {
		t.Error("first position should be the starting position")
	}
	if got, want := positions[6].Placement(), "r1bqk1nr/pppp1ppp/2n5/2b1p3/2B1P3/5N2/PPPP1PPP/RNBQK2R"; got != want {
		t.Errorf("final placement = %s, want %s", got, want)
	}
}

func TestGamePositionsNil(t *testing.T) {
	if _, err := GamePositions(nil); err == nil {
		t.Error("expected error for nil game")
	}
}

func TestFromBoard(t *testing.T) {
	game := chess.NewGame()
	if err := game.MoveStr("d4"); err != nil {
		t.Fatal(err)
	}

	pos, err := FromBoard(game.Position().Board())
	if err != nil {
		t.Fatal(err)
	}
	if pos[4][3] != WhitePawn || pos[6][3] != Empty {
		t.Errorf("unexpected board after d4:\n%s", pos.Draw())
	}
}

func TestTransforms(t *testing.T) {
	start := StartingPosition()

	rotated := start.Rotate180()
	if rotated[0][0] != WhiteRook || rotated[0][3] != WhiteKing || rotated[7][4] != BlackQueen {
		t.Errorf("unexpected rotation:\n%s", rotated.Draw())
	}
	if rotated.Rotate180() != start {
		t.Error("rotating twice should restore the position")
	}

	if got := start.Mirror().Placement(); got != "rnbkqbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBKQBNR" {
		t.Errorf("mirror = %s", got)
	}
	if start.Mirror().Mirror() != start {
		t.Error("mirroring twice should restore the position")
	}
}
