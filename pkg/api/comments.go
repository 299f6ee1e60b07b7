package api

import (
	"context"
	"fmt"

	"github.com/zfogg/sidechain/community/pkg/logger"
)

// ListComments retrieves the comments of a post
func (c *Client) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	logger.Debug("Fetching comments", "post_id", postID)

	var comments []Comment
	if err := c.getList(ctx, fmt.Sprintf("/posts/%s/comments", postID), "comments", nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment adds a comment to a post
func (c *Client) CreateComment(ctx context.Context, req CreateCommentRequest) (*Comment, error) {
	logger.Debug("Creating comment", "post_id", req.PostID)

	var comment Comment
	resp, err := c.r(ctx).SetBody(req).SetResult(&comment).Post("/comments")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	if comment.ID == "" {
		return nil, fmt.Errorf("create comment: response carried no comment id")
	}
	return &comment, nil
}

// DeleteComment deletes a comment
func (c *Client) DeleteComment(ctx context.Context, id string) error {
	logger.Debug("Deleting comment", "comment_id", id)

	resp, err := c.r(ctx).Delete("/comments/" + id)
	return CheckResponse(resp, err)
}

// LikeComment likes a comment
func (c *Client) LikeComment(ctx context.Context, id string) (*LikeResponse, error) {
	return c.like(ctx, fmt.Sprintf("/comments/%s/like", id), true)
}

// UnlikeComment removes the viewer's like from a comment
func (c *Client) UnlikeComment(ctx context.Context, id string) (*LikeResponse, error) {
	return c.like(ctx, fmt.Sprintf("/comments/%s/like", id), false)
}
