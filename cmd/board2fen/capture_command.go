package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SzabolcsN/chess-board-from-img/internal/pipeline"
	"github.com/SzabolcsN/chess-board-from-img/internal/vision"
	"github.com/spf13/cobra"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var camera string
	var screen string
	var warmup int
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Recognize the board from a camera or a screen region",
		Long: `Grab a frame from a webcam (or video file) with --camera, or from a
screen region with --screen x,y,width,height, and print its placement.
With --watch the source is polled and every change is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openSource(camera, screen, warmup)
			if err != nil {
				return err
			}
			defer src.Close()

			r, err := ctx.ensureRecognizer()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !watch {
				res, err := r.RecognizeFrame(cmd.Context(), src)
				if err != nil {
					return err
				}
				printResult(out, res, scanOptions{}, false)
				return nil
			}

			changes := make(chan pipeline.Change)
			done := make(chan error, 1)
			go func() {
				done <- r.Watch(cmd.Context(), src, interval, changes)
			}()

			for {
				select {
				case change := <-changes:
					res := change.Result
					if len(change.Changed) == 0 {
						fmt.Fprintf(out, "%s %s\n", res.Placement, res.Strategy)
						continue
					}
					names := make([]string, len(change.Changed))
					for i, sq := range change.Changed {
						names[i] = sq.String()
					}
					fmt.Fprintf(out, "%s changed=%s\n", res.Placement, strings.Join(names, ","))
				case err := <-done:
					if errors.Is(err, context.Canceled) {
						fmt.Fprintln(out, r.GetStats())
						return nil
					}
					return err
				}
			}
		},
	}

	cmd.Flags().StringVar(&camera, "camera", "", "Camera index or video file")
	cmd.Flags().StringVar(&screen, "screen", "", "Screen region as x,y,width,height")
	cmd.Flags().IntVar(&warmup, "warmup", 5, "Camera frames to discard before capturing")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep capturing and print every position change")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval with --watch")
	return cmd
}

func openSource(camera, screen string, warmup int) (vision.FrameSource, error) {
	switch {
	case camera != "" && screen != "":
		return nil, errors.New("use either --camera or --screen, not both")
	case camera != "":
		return vision.NewCameraSource(camera, warmup)
	case screen != "":
		x, y, w, h, err := parseRegion(screen)
		if err != nil {
			return nil, err
		}
		return vision.NewScreenSource(x, y, w, h)
	default:
		return nil, errors.New("a source is required: --camera or --screen")
	}
}

func parseRegion(s string) (x, y, w, h int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("invalid screen region %q: want x,y,width,height", s)
	}

	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid screen region %q: %w", s, err)
		}
		vals[i] = v
	}
	if vals[2] <= 0 || vals[3] <= 0 {
		return 0, 0, 0, 0, fmt.Errorf("invalid screen region %q: width and height must be positive", s)
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}
