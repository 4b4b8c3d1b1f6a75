package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/SzabolcsN/chess-board-from-img/internal/board"
	"github.com/SzabolcsN/chess-board-from-img/internal/pipeline"
	"github.com/spf13/cobra"
)

type scanOptions struct {
	fullFEN bool
	draw    bool
	diff    bool
	strict  bool
	table   bool
	tensor  bool
	moves   bool
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan <image>...",
		Short: "Recognize the position in one or more board photos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := ctx.ensureRecognizer()
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fallback := cfg.Pipeline.Fallback && !opts.strict

			results := make([]pipeline.Result, 0, len(args))
			for _, path := range args {
				var res pipeline.Result
				if fallback {
					res, err = r.RecognizeOrDefault(cmd.Context(), path)
				} else {
					res, err = r.RecognizeFile(cmd.Context(), path)
				}
				if err != nil {
					return err
				}
				results = append(results, res)
			}

			out := cmd.OutOrStdout()
			if opts.table {
				writeResultsTable(out, results)
			} else {
				for _, res := range results {
					printResult(out, res, opts, len(results) > 1)
				}
			}

			if opts.diff && len(results) > 1 {
				for i := 1; i < len(results); i++ {
					printDiff(out, results[i-1], results[i])
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.fullFEN, "full", false, "Print the full FEN instead of the placement field")
	cmd.Flags().BoolVar(&opts.draw, "draw", false, "Draw the recognized board")
	cmd.Flags().BoolVar(&opts.diff, "diff", false, "List changed squares between consecutive images")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail instead of reporting the starting position")
	cmd.Flags().BoolVar(&opts.table, "table", false, "Summarize the results in a table")
	cmd.Flags().BoolVar(&opts.tensor, "tensor", false, "Print the one-hot piece tensor of each position")
	cmd.Flags().BoolVar(&opts.moves, "moves", false, "List the legal moves for white in each position")
	return cmd
}

func printResult(w io.Writer, res pipeline.Result, opts scanOptions, withSource bool) {
	fen := res.Placement
	if opts.fullFEN {
		fen = res.FEN
	}

	if withSource {
		fmt.Fprintf(w, "%s: %s\n", res.Source, fen)
	} else {
		fmt.Fprintln(w, fen)
	}
	if res.Fallback {
		fmt.Fprintf(w, "  warning: recognition failed, starting position reported (%v)\n", res.Err)
	}
	if res.Warning != nil {
		fmt.Fprintf(w, "  warning: %v\n", res.Warning)
	}
	if opts.draw {
		fmt.Fprintln(w, res.Position.Draw())
	}
	if opts.moves {
		printMoves(w, res.Position)
	}
	if opts.tensor {
		t := res.Position.Tensor()
		fmt.Fprintf(w, "tensor %v\n%v\n", t.Shape(), t)
	}
}

func printDiff(w io.Writer, before, after pipeline.Result) {
	changed := before.Position.Diff(after.Position)
	if len(changed) == 0 {
		fmt.Fprintf(w, "%s -> %s: no changes\n", before.Source, after.Source)
		return
	}

	names := make([]string, len(changed))
	for i, sq := range changed {
		names[i] = squareChange(sq, before.Position, after.Position)
	}
	fmt.Fprintf(w, "%s -> %s: %s\n", before.Source, after.Source, strings.Join(names, " "))
}

func squareChange(sq board.Square, before, after board.Position) string {
	symbol := func(p board.Piece) string {
		if p == board.Empty {
			return "-"
		}
		return string(p.FEN())
	}
	return fmt.Sprintf("%s:%s>%s", sq, symbol(before[sq.Row][sq.Col]), symbol(after[sq.Row][sq.Col]))
}

func writeResultsTable(w io.Writer, results []pipeline.Result) {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{
			res.Source,
			res.Placement,
			res.Strategy,
			yesNo(res.Fallback),
			res.Duration.Round(time.Millisecond).String(),
		})
	}
	writeTable(w, []string{"Source", "Placement", "Strategy", "Fallback", "Time"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight})
}

func printMoves(w io.Writer, pos board.Position) {
	game, err := pos.Game()
	if err != nil {
		fmt.Fprintf(w, "  moves: unavailable (%v)\n", err)
		return
	}

	valid := game.ValidMoves()
	names := make([]string, len(valid))
	for i, m := range valid {
		names[i] = m.String()
	}
	fmt.Fprintf(w, "  moves (%d): %s\n", len(valid), strings.Join(names, " "))
}
