package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/community/pkg/output"
	"github.com/zfogg/sidechain/community/pkg/service"
	"github.com/zfogg/sidechain/community/pkg/session"
)

var (
	progressTotal float64
	progressFrom  float64
	progressTick  time.Duration
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Lesson video progress commands",
}

var progressReportCmd = &cobra.Command{
	Use:   "report <video-id> <seconds>",
	Short: "Save the watch position of a lesson video",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		position, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid position %q: %w", args[1], err)
		}
		var total *float64
		if progressTotal > 0 {
			total = &progressTotal
		}
		return service.NewProgressService(s, output.Stdout()).Report(ctx, args[0], position, total)
	}),
}

var progressPlayCmd = &cobra.Command{
	Use:   "play <video-id>",
	Short: "Simulate watching a video, reporting progress as it plays",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return service.NewProgressService(s, output.Stdout()).Play(ctx, args[0], progressFrom, progressTotal, progressTick)
	}),
}

func init() {
	progressReportCmd.Flags().Float64Var(&progressTotal, "total", 0, "Video length in seconds")
	progressPlayCmd.Flags().Float64Var(&progressTotal, "total", 0, "Video length in seconds (required)")
	progressPlayCmd.Flags().Float64Var(&progressFrom, "from", 0, "Start position in seconds")
	progressPlayCmd.Flags().DurationVar(&progressTick, "tick", time.Second, "How often the position advances")
	_ = progressPlayCmd.MarkFlagRequired("total")

	progressCmd.AddCommand(progressReportCmd)
	progressCmd.AddCommand(progressPlayCmd)
}
