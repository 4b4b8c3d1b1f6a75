package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SzabolcsN/chess-board-from-img/internal/board"
	"github.com/SzabolcsN/chess-board-from-img/internal/synth"
	"gocv.io/x/gocv"
)

func main() {
	outDir := flag.String("out", "testdata", "Output directory")
	placement := flag.String("fen", board.StartingPlacement, "Placement to draw (FEN board field)")
	cell := flag.Int("cell", 50, "Square size in pixels")
	border := flag.Int("border", 40, "Black border width in pixels")
	templates := flag.Bool("templates", true, "Also write the matching piece templates to <out>/pieces")
	pgnFile := flag.String("pgn", "", "Draw a position from the first game of this PGN file instead of -fen")
	ply := flag.Int("ply", -1, "Half-move of the PGN game to draw (-1 for the final position)")
	flag.Parse()

	var pos board.Position
	var err error
	if *pgnFile != "" {
		pos, err = positionFromPGN(*pgnFile, *ply)
	} else {
		pos, err = board.ParsePlacement(*placement)
	}
	if err != nil {
		fmt.Printf("Invalid position: %v\n", err)
		os.Exit(1)
	}
	if *cell < 8 || *border < 0 {
		fmt.Println("Cell size must be >= 8 and border >= 0")
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Printf("Failed to create %s: %v\n", *outDir, err)
		os.Exit(1)
	}

	img, err := synth.Board(pos, *cell, *border)
	if err != nil {
		fmt.Printf("Failed to render board: %v\n", err)
		os.Exit(1)
	}
	defer img.Close()

	outFile := filepath.Join(*outDir, "chess_board.png")
	if ok := gocv.IMWrite(outFile, img); !ok {
		fmt.Printf("Failed to save image to %s\n", outFile)
		os.Exit(1)
	}

	fmt.Printf("Created test chess board image: %s\n", outFile)
	fmt.Printf("Image size: %dx%d\n", img.Cols(), img.Rows())
	fmt.Printf("Board layout: %s\n", pos.Placement())
	fmt.Println(pos.Draw())

	if *templates {
		dir := filepath.Join(*outDir, "pieces")
		if err := synth.WriteTemplates(dir, *cell); err != nil {
			fmt.Printf("Failed to write templates: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d piece templates to %s\n", board.NumPieces, dir)
	}
}

func positionFromPGN(path string, ply int) (board.Position, error) {
	games, err := board.ReadGamesFile(path)
	if err != nil {
		return board.Position{}, err
	}
	if len(games) == 0 {
		return board.Position{}, fmt.Errorf("no games in %s", path)
	}

	positions, err := board.GamePositions(games[0])
	if err != nil {
		return board.Position{}, err
	}
	if ply < 0 {
		ply = len(positions) - 1
	}
	if ply >= len(positions) {
		return board.Position{}, fmt.Errorf("ply %d out of range (game has %d positions)", ply, len(positions))
	}
	return positions[ply], nil
}
