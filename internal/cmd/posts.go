package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/community/pkg/output"
	"github.com/zfogg/sidechain/community/pkg/prompter"
	"github.com/zfogg/sidechain/community/pkg/service"
	"github.com/zfogg/sidechain/community/pkg/session"
)

var (
	postTitle    string
	postContent  string
	postCategory string
	postYes      bool
)

var postCmd = &cobra.Command{
	Use:     "post",
	Aliases: []string{"posts"},
	Short:   "Post commands",
	Long:    "Browse, like and publish posts in the tenant feed",
}

var postListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent posts",
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return service.NewPostService(s, output.Stdout()).List(ctx)
	}),
}

var postShowCmd = &cobra.Command{
	Use:   "show <post-id>",
	Short: "Show a post",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return service.NewPostService(s, output.Stdout()).Show(ctx, args[0])
	}),
}

var postLikeCmd = &cobra.Command{
	Use:   "like <post-id>",
	Short: "Like a post",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return service.NewPostService(s, output.Stdout()).Like(ctx, args[0])
	}),
}

var postUnlikeCmd = &cobra.Command{
	Use:   "unlike <post-id>",
	Short: "Remove your like from a post",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return service.NewPostService(s, output.Stdout()).Unlike(ctx, args[0])
	}),
}

var postToggleLikeCmd = &cobra.Command{
	Use:   "toggle-like <post-id>",
	Short: "Like or unlike a post depending on its current state",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return service.NewPostService(s, output.Stdout()).Toggle(ctx, args[0])
	}),
}

var postCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a post",
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return service.NewPostService(s, output.Stdout()).Create(ctx, postTitle, postContent, postCategory)
	}),
}

var postDeleteCmd = &cobra.Command{
	Use:   "delete <post-id>",
	Short: "Delete a post",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		if !postYes {
			if !prompter.Interactive() {
				return fmt.Errorf("refusing to delete post %s without --yes", args[0])
			}
			ok, err := prompter.Stdio().Confirm(fmt.Sprintf("Delete post %s?", args[0]))
			if err != nil {
				return err
			}
			if !ok {
				output.PrintInfo("Cancelled.")
				return nil
			}
		}
		return service.NewPostService(s, output.Stdout()).Delete(ctx, args[0])
	}),
}

func init() {
	postCreateCmd.Flags().StringVar(&postTitle, "title", "", "Post title (required)")
	postCreateCmd.Flags().StringVar(&postContent, "content", "", "Post body")
	postCreateCmd.Flags().StringVar(&postCategory, "category", "", "Category id")
	_ = postCreateCmd.MarkFlagRequired("title")
	postDeleteCmd.Flags().BoolVarP(&postYes, "yes", "y", false, "Skip confirmation")

	postCmd.AddCommand(postListCmd)
	postCmd.AddCommand(postShowCmd)
	postCmd.AddCommand(postLikeCmd)
	postCmd.AddCommand(postUnlikeCmd)
	postCmd.AddCommand(postToggleLikeCmd)
	postCmd.AddCommand(postCreateCmd)
	postCmd.AddCommand(postDeleteCmd)
}
