package optimistic

import (
	"context"

	"github.com/zfogg/sidechain/community/pkg/api"
	"github.com/zfogg/sidechain/community/pkg/querycache"
	"github.com/zfogg/sidechain/community/pkg/querykeys"
)

// LikeComment marks a comment of postID as liked by the viewer.
func (c *Controller) LikeComment(ctx context.Context, postID, commentID string) error {
	return c.setCommentLike(ctx, "like_comment", postID, commentID, false, func(bool) bool { return true })
}

// UnlikeComment removes the viewer's like from a comment of postID.
func (c *Controller) UnlikeComment(ctx context.Context, postID, commentID string) error {
	return c.setCommentLike(ctx, "unlike_comment", postID, commentID, true, func(bool) bool { return false })
}

// ToggleLikeComment flips the viewer's like on a comment, reading the
// direction from the cached comments list when possible.
func (c *Controller) ToggleLikeComment(ctx context.Context, postID, commentID string, wasLiked bool) (bool, error) {
	var liked bool
	err := c.setCommentLike(ctx, "toggle_like_comment", postID, commentID, wasLiked, func(current bool) bool {
		liked = !current
		return liked
	})
	return liked, err
}

func (c *Controller) setCommentLike(ctx context.Context, name, postID, commentID string, uncached bool, decide func(current bool) bool) error {
	listKey := querykeys.Comments(postID)
	var like bool

	return c.Run(ctx, Mutation{
		Name: name,
		Keys: []querycache.Key{listKey},
		Apply: func(tx *querycache.Tx) error {
			var comments []api.Comment
			ok, err := tx.Get(listKey, &comments)
			if err != nil {
				return err
			}
			current, found := uncached, false
			if ok {
				for _, cm := range comments {
					if cm.ID == commentID {
						current, found = cm.Liked, true
						break
					}
				}
			}
			like = decide(current)
			if !found {
				return nil
			}

			for i := range comments {
				cm := &comments[i]
				if cm.ID != commentID || cm.Liked == like {
					continue
				}
				cm.Liked = like
				if like {
					cm.LikeCount++
				} else {
					cm.LikeCount = decrement(cm.LikeCount)
				}
			}
			return tx.Set(listKey, comments)
		},
		Call: func(ctx context.Context) error {
			var err error
			if like {
				_, err = c.backend.LikeComment(ctx, commentID)
			} else {
				_, err = c.backend.UnlikeComment(ctx, commentID)
			}
			return err
		},
	})
}

// CreateComment prepends a placeholder comment with a temporary id to the
// post's comments and bumps the post's comment count. Both changes are rolled
// back together if the server rejects the comment.
func (c *Controller) CreateComment(ctx context.Context, req api.CreateCommentRequest) (*api.Comment, error) {
	listKey := querykeys.Comments(req.PostID)
	postKey := querykeys.Post(req.PostID)
	var created *api.Comment

	err := c.Run(ctx, Mutation{
		Name: "create_comment",
		Keys: []querycache.Key{listKey, postKey},
		Apply: func(tx *querycache.Tx) error {
			placeholder := api.Comment{
				ID:        c.tempID(),
				PostID:    req.PostID,
				ParentID:  req.ParentID,
				Content:   req.Content,
				CreatedAt: c.now(),
			}
			var comments []api.Comment
			if _, err := tx.Get(listKey, &comments); err != nil {
				return err
			}
			if err := tx.Set(listKey, append([]api.Comment{placeholder}, comments...)); err != nil {
				return err
			}
			_, err := querycache.Update(tx, postKey, func(p *api.Post) {
				p.CommentCount++
			})
			return err
		},
		Call: func(ctx context.Context) error {
			var err error
			created, err = c.backend.CreateComment(ctx, req)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteComment removes the comment from the post's comments and decrements
// the post's comment count, never below zero.
func (c *Controller) DeleteComment(ctx context.Context, postID, commentID string) error {
	listKey := querykeys.Comments(postID)
	postKey := querykeys.Post(postID)

	return c.Run(ctx, Mutation{
		Name: "delete_comment",
		Keys: []querycache.Key{listKey, postKey},
		Apply: func(tx *querycache.Tx) error {
			if _, err := querycache.Update(tx, listKey, func(comments *[]api.Comment) {
				out := (*comments)[:0]
				for _, cm := range *comments {
					if cm.ID != commentID {
						out = append(out, cm)
					}
				}
				*comments = out
			}); err != nil {
				return err
			}
			_, err := querycache.Update(tx, postKey, func(p *api.Post) {
				p.CommentCount = decrement(p.CommentCount)
			})
			return err
		},
		Call: func(ctx context.Context) error {
			return c.backend.DeleteComment(ctx, commentID)
		},
	})
}
