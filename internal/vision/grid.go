package vision

import (
	"context"
	"image"

	"github.com/SzabolcsN/chess-board-from-img/internal/board"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// CellSize returns the integer cell side for a board of the given side.
// The remaining side%8 pixels at the right and bottom edges are unused.
func CellSize(side int) int {
	return side / board.Size
}

// CellRect returns the pixel rectangle of cell (row, col) on a board of
// the given side.
func CellRect(side, row, col int) image.Rectangle {
	s := CellSize(side)
	return image.Rect(col*s, row*s, (col+1)*s, (row+1)*s)
}

// Grid holds the per-cell classifications of one board image.
type Grid [board.Size][board.Size]Match

// Position drops the scores and returns the pieces.
func (g Grid) Position() board.Position {
	var p board.Position
	for row := range g {
		for col := range g[row] {
			p[row][col] = g[row][col].Piece
		}
	}
	return p
}

// ClassifyBoard slices a square board image into 64 cells and classifies
// each of them. With workers <= 1 cells are processed in row-major order;
// otherwise up to workers cells are classified concurrently. The result
// does not depend on the processing order.
func ClassifyBoard(ctx context.Context, c *CellClassifier, boardImg gocv.Mat, workers int) (Grid, error) {
	var grid Grid

	if isEmpty(boardImg) {
		return grid, ErrEmptyImage
	}

	side := boardImg.Rows()
	if boardImg.Cols() < side {
		side = boardImg.Cols()
	}

	classifyCell := func(row, col int) {
		cell := boardImg.Region(CellRect(side, row, col))
		defer cell.Close()
		grid[row][col] = c.Classify(cell, row, col)
	}

	if workers <= 1 {
		for row := 0; row < board.Size; row++ {
			for col := 0; col < board.Size; col++ {
				if err := ctx.Err(); err != nil {
					return grid, err
				}
				classifyCell(row, col)
			}
		}
		return grid, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for row := 0; row < board.Size; row++ {
		for col := 0; col < board.Size; col++ {
			row, col := row, col
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				classifyCell(row, col)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return grid, err
	}
	return grid, nil
}
