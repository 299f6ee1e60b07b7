package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zfogg/sidechain/community/pkg/logger"
	"github.com/zfogg/sidechain/community/pkg/output"
	"github.com/zfogg/sidechain/community/pkg/session"
)

// ProgressService records how far the viewer has watched a lesson video.
type ProgressService struct {
	s   *session.Session
	out *output.Printer
}

// NewProgressService creates a new progress service
func NewProgressService(s *session.Session, out *output.Printer) *ProgressService {
	return &ProgressService{s: s, out: out}
}

// Report sends one position immediately. total is optional.
func (ps *ProgressService) Report(ctx context.Context, videoID string, position float64, total *float64) error {
	if err := requireID("video", videoID); err != nil {
		return err
	}
	if position < 0 {
		return errors.New("position must not be negative")
	}

	logger.Debug("Reporting progress", "video_id", videoID, "position", position)
	ps.s.Progress.ForceReportProgress(videoID, position, total)
	if err := ps.s.Progress.Flush(ctx); err != nil {
		return fmt.Errorf("failed to report progress: %w", err)
	}
	ps.out.Success("✓ Saved progress for %s at %s", videoID, formatPosition(position))
	return nil
}

// Play simulates watching a video from start at real time, reporting
// through the throttled reporter until total is reached or ctx ends.
func (ps *ProgressService) Play(ctx context.Context, videoID string, start, total float64, tick time.Duration) error {
	if err := requireID("video", videoID); err != nil {
		return err
	}
	if total <= start {
		return errors.New("total must be greater than start")
	}
	if tick <= 0 {
		tick = time.Second
	}

	ps.out.Info("▶ Playing %s from %s (Ctrl+C to stop)", videoID, formatPosition(start))
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	began := time.Now()
	position := start
loop:
	for position < total {
		ps.s.Progress.ReportProgress(videoID, position, &total)
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			position = start + time.Since(began).Seconds()
			if position > total {
				position = total
			}
		}
	}

	ps.s.Progress.ForceReportProgress(videoID, position, &total)
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ps.s.Progress.Flush(flushCtx); err != nil {
		return fmt.Errorf("failed to report progress: %w", err)
	}
	ps.out.Success("✓ Stopped at %s", formatPosition(position))
	return nil
}

func formatPosition(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
