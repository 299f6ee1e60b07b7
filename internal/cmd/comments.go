package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/community/pkg/output"
	"github.com/zfogg/sidechain/community/pkg/service"
	"github.com/zfogg/sidechain/community/pkg/session"
)

var (
	commentContent string
	commentReplyTo string
)

var commentCmd = &cobra.Command{
	Use:     "comment",
	Aliases: []string{"comments"},
	Short:   "Comment commands",
	Long:    "Read and write comments on a post",
}

var commentListCmd = &cobra.Command{
	Use:   "list <post-id>",
	Short: "List comments on a post",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return service.NewCommentService(s, output.Stdout()).List(ctx, args[0])
	}),
}

var commentCreateCmd = &cobra.Command{
	Use:   "create <post-id>",
	Short: "Comment on a post",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return service.NewCommentService(s, output.Stdout()).Create(ctx, args[0], commentContent, commentReplyTo)
	}),
}

var commentDeleteCmd = &cobra.Command{
	Use:   "delete <post-id> <comment-id>",
	Short: "Delete a comment",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return service.NewCommentService(s, output.Stdout()).Delete(ctx, args[0], args[1])
	}),
}

var commentLikeCmd = &cobra.Command{
	Use:   "like <post-id> <comment-id>",
	Short: "Like a comment",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return service.NewCommentService(s, output.Stdout()).Like(ctx, args[0], args[1])
	}),
}

var commentUnlikeCmd = &cobra.Command{
	Use:   "unlike <post-id> <comment-id>",
	Short: "Remove your like from a comment",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return service.NewCommentService(s, output.Stdout()).Unlike(ctx, args[0], args[1])
	}),
}

func init() {
	commentCreateCmd.Flags().StringVarP(&commentContent, "content", "m", "", "Comment text (required)")
	commentCreateCmd.Flags().StringVar(&commentReplyTo, "reply-to", "", "Parent comment id")
	_ = commentCreateCmd.MarkFlagRequired("content")

	commentCmd.AddCommand(commentListCmd)
	commentCmd.AddCommand(commentCreateCmd)
	commentCmd.AddCommand(commentDeleteCmd)
	commentCmd.AddCommand(commentLikeCmd)
	commentCmd.AddCommand(commentUnlikeCmd)
}
