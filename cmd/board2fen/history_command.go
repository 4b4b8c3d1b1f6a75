package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SzabolcsN/chess-board-from-img/internal/storage"
	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var clear bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Storage.Enabled {
				return errors.New("scan history is disabled in the configuration")
			}

			store, err := storage.NewScanStore(cfg.Storage.DBPath, cfg.Storage.MaxRecords)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if clear {
				if err := store.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(out, "Scan history cleared")
				return nil
			}

			records, err := store.Recent(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No scans recorded")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.Timestamp.Local().Format(time.DateTime),
					rec.Source,
					rec.Placement,
					rec.Strategy,
					yesNo(rec.Fallback),
					strconv.FormatInt(rec.DurationMS, 10),
				})
			}
			writeTable(out, []string{"Time", "Source", "Placement", "Strategy", "Fallback", "ms"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight})

			stats, err := store.GetStats()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d scans total, %d held, %d fallbacks\n", stats.TotalScans, stats.Held, stats.Fallbacks)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of scans to show (0 for all held)")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete the scan history")
	return cmd
}
