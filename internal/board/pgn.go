package board

import (
	"fmt"
	"io"
	"os"

	"github.com/notnil/chess"
)

// ReadGames parses every game of a PGN stream.
func ReadGames(r io.Reader) ([]*chess.Game, error) {
	var games []*chess.Game

	scanner := chess.NewScanner(r)
	for scanner.Scan() {
		if game := scanner.Next(); game != nil {
			games = append(games, game)
		}
	}

	// EOF is expected at end of file, not an error
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("error parsing PGN: %w", err)
	}
	return games, nil
}

// ReadGamesFile is ReadGames on a file.
func ReadGamesFile(path string) ([]*chess.Game, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PGN file: %w", err)
	}
	defer f.Close()
	return ReadGames(f)
}

// FromBoard converts a notnil/chess board.
func FromBoard(b *chess.Board) (Position, error) {
	if b == nil {
		return Position{}, fmt.Errorf("nil board")
	}
	return ParsePlacement(b.String())
}

// GamePositions returns the position before the first move and after every
// move of the game.
func GamePositions(game *chess.Game) ([]Position, error) {
	if game == nil {
		return nil, fmt.Errorf("game is nil")
	}

	var out []Position
	for _, pos := range game.Positions() {
		p, err := FromBoard(pos.Board())
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
