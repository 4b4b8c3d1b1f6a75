package main

import (
	"fmt"
	"path/filepath"

	"github.com/SzabolcsN/chess-board-from-img/internal/board"
	"github.com/SzabolcsN/chess-board-from-img/internal/synth"
	"github.com/SzabolcsN/chess-board-from-img/internal/vision"
	"github.com/spf13/cobra"
)

func newTemplatesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect the piece template set",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log, err := ctx.logger()
			if err != nil {
				return err
			}

			lib, err := vision.LoadTemplates(cfg.Pipeline.TemplateDir, log)
			if err != nil {
				return err
			}
			defer lib.Close()

			rows := make([][]string, 0, board.NumPieces)
			for _, p := range board.AllPieces() {
				t, ok := lib.Get(p)
				if !ok {
					rows = append(rows, []string{p.Code(), p.Symbol(), "missing", "", ""})
					continue
				}
				rows = append(rows, []string{
					p.Code(),
					p.Symbol(),
					filepath.Base(t.Source),
					fmt.Sprintf("%dx%d", t.Image.Cols(), t.Image.Rows()),
					yesNo(t.HasMask()),
				})
			}

			out := cmd.OutOrStdout()
			writeTable(out, []string{"Code", "Piece", "File", "Size", "Mask"}, rows, nil)
			fmt.Fprintf(out, "%d of %d templates loaded from %s\n", lib.Len(), board.NumPieces, cfg.Pipeline.TemplateDir)
			return nil
		},
	}

	cmd.AddCommand(newTemplatesGenerateCommand())
	return cmd
}

func newTemplatesGenerateCommand() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:         "generate <dir>",
		Short:       "Write a synthetic template set",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if size < 8 {
				return fmt.Errorf("invalid template size: %d (must be >= 8)", size)
			}
			if err := synth.WriteTemplates(args[0], size); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d templates to %s\n", board.NumPieces, args[0])
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "size", 50, "Template side in pixels")
	return cmd
}
