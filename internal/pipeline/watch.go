package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/SzabolcsN/chess-board-from-img/internal/board"
	"github.com/SzabolcsN/chess-board-from-img/internal/vision"
	"go.uber.org/zap"
)

// Change is a recognized position that differs from the previous one.
type Change struct {
	Result  Result
	Changed []board.Square // empty for the first position
}

// Watch recognizes a frame from src every interval and sends a Change
// whenever the placement differs from the last one sent. Frame errors are
// logged and counted; the loop keeps going until ctx is done.
func (r *Recognizer) Watch(ctx context.Context, src vision.FrameSource, interval time.Duration, out chan<- Change) error {
	if interval <= 0 {
		return fmt.Errorf("invalid watch interval: %v", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *board.Position
	for {
		res, err := r.RecognizeFrame(ctx, src)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("Frame processing error", zap.String("source", src.Name()), zap.Error(err))

		case last == nil || res.Position != *last:
			change := Change{Result: res}
			if last != nil {
				change.Changed = last.Diff(res.Position)
			}
			pos := res.Position
			last = &pos

			r.mu.Lock()
			r.stats.Changes++
			r.mu.Unlock()

			select {
			case out <- change:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
