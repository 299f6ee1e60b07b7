package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zfogg/sidechain/community/pkg/api"
	"github.com/zfogg/sidechain/community/pkg/logger"
	"github.com/zfogg/sidechain/community/pkg/output"
	"github.com/zfogg/sidechain/community/pkg/querykeys"
	"github.com/zfogg/sidechain/community/pkg/session"
)

// CommentService provides comment operations on a post's thread.
type CommentService struct {
	s   *session.Session
	out *output.Printer
}

// NewCommentService creates a new comment service
func NewCommentService(s *session.Session, out *output.Printer) *CommentService {
	return &CommentService{s: s, out: out}
}

// List prints a post's comments.
func (cs *CommentService) List(ctx context.Context, postID string) error {
	if err := requireID("post", postID); err != nil {
		return err
	}
	comments, err := cs.load(ctx, postID)
	if err != nil {
		return err
	}
	if cs.out.Format() == output.FormatJSON {
		return cs.out.JSON(comments)
	}
	if len(comments) == 0 {
		cs.out.Info("No comments yet.")
		return nil
	}

	rows := make([][]string, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, []string{c.ID, c.AuthorName, truncate(c.Content, 50), fmt.Sprintf("%d", c.LikeCount)})
	}
	cs.out.Table([]string{"ID", "Author", "Comment", "Likes"}, rows)
	return nil
}

// Create adds a comment, optionally as a reply to parentID.
func (cs *CommentService) Create(ctx context.Context, postID, content, parentID string) error {
	if err := requireID("post", postID); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return errors.New("comment content is required")
	}
	// Load the thread and post so the placeholder and counter have
	// something to update.
	if err := cs.s.Prefetch(ctx, querykeys.Comments(postID), querykeys.Post(postID)); err != nil {
		return fmt.Errorf("failed to load post: %w", err)
	}

	logger.Debug("Creating comment", "post_id", postID, "parent_id", parentID)
	comment, err := cs.s.Mutations.CreateComment(ctx, api.CreateCommentRequest{
		PostID:   postID,
		Content:  content,
		ParentID: parentID,
	})
	if err != nil {
		return err
	}
	if cs.out.Format() == output.FormatJSON {
		return cs.out.JSON(comment)
	}
	cs.out.Success("✓ Commented on %s (%s)", postID, comment.ID)
	return nil
}

// Delete removes a comment from a post's thread.
func (cs *CommentService) Delete(ctx context.Context, postID, commentID string) error {
	if err := requireID("post", postID); err != nil {
		return err
	}
	if err := requireID("comment", commentID); err != nil {
		return err
	}
	if err := cs.s.Mutations.DeleteComment(ctx, postID, commentID); err != nil {
		return err
	}
	cs.out.Success("✓ Deleted comment %s", commentID)
	return nil
}

// Like likes a comment.
func (cs *CommentService) Like(ctx context.Context, postID, commentID string) error {
	return cs.setLike(ctx, postID, commentID, true)
}

// Unlike removes the viewer's like from a comment.
func (cs *CommentService) Unlike(ctx context.Context, postID, commentID string) error {
	return cs.setLike(ctx, postID, commentID, false)
}

func (cs *CommentService) setLike(ctx context.Context, postID, commentID string, like bool) error {
	if err := requireID("post", postID); err != nil {
		return err
	}
	if err := requireID("comment", commentID); err != nil {
		return err
	}
	if _, err := cs.load(ctx, postID); err != nil {
		return err
	}

	var err error
	if like {
		err = cs.s.Mutations.LikeComment(ctx, postID, commentID)
	} else {
		err = cs.s.Mutations.UnlikeComment(ctx, postID, commentID)
	}
	if err != nil {
		return err
	}

	cs.s.Store.Wait()
	comments, err := cs.cached(postID)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if c.ID == commentID {
			cs.out.Success("✓ Comment %s has %d like%s", c.ID, c.LikeCount, pluralize(c.LikeCount))
			return nil
		}
	}
	return nil
}

func (cs *CommentService) load(ctx context.Context, postID string) ([]api.Comment, error) {
	if err := cs.s.Prefetch(ctx, querykeys.Comments(postID)); err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	return cs.cached(postID)
}

func (cs *CommentService) cached(postID string) ([]api.Comment, error) {
	var comments []api.Comment
	if _, err := cs.s.Store.Get(querykeys.Comments(postID), &comments); err != nil {
		return nil, err
	}
	return comments, nil
}
