package optimistic

import (
	"context"

	"github.com/zfogg/sidechain/community/pkg/api"
	"github.com/zfogg/sidechain/community/pkg/querycache"
	"github.com/zfogg/sidechain/community/pkg/querykeys"
)

// LikePost marks the post as liked by the viewer.
func (c *Controller) LikePost(ctx context.Context, postID string) error {
	return c.setPostLike(ctx, "like_post", postID, false, func(bool) bool { return true })
}

// UnlikePost removes the viewer's like from the post.
func (c *Controller) UnlikePost(ctx context.Context, postID string) error {
	return c.setPostLike(ctx, "unlike_post", postID, true, func(bool) bool { return false })
}

// ToggleLikePost flips the viewer's like. The direction comes from the cached
// post when there is one; wasLiked is only used when the post is not cached.
// It reports the liked state that was sent to the server.
func (c *Controller) ToggleLikePost(ctx context.Context, postID string, wasLiked bool) (bool, error) {
	var liked bool
	err := c.setPostLike(ctx, "toggle_like_post", postID, wasLiked, func(current bool) bool {
		liked = !current
		return liked
	})
	return liked, err
}

// setPostLike reads the current liked flag inside the transaction, falling
// back to uncached when the post is nowhere in the cache, picks the target with
// decide and applies it to the tenant's posts list and the single post entry.
func (c *Controller) setPostLike(ctx context.Context, name, postID string, uncached bool, decide func(current bool) bool) error {
	listKey := querykeys.Posts(c.tenant)
	postKey := querykeys.Post(postID)
	var like bool

	return c.Run(ctx, Mutation{
		Name: name,
		Keys: []querycache.Key{listKey, postKey},
		Apply: func(tx *querycache.Tx) error {
			current, found, err := cachedPostLiked(tx, listKey, postKey, postID)
			if err != nil {
				return err
			}
			if !found {
				current = uncached
			}
			like = decide(current)

			apply := func(p *api.Post) {
				if p.ID != postID || p.Liked == like {
					return
				}
				p.Liked = like
				if like {
					p.LikeCount++
				} else {
					p.LikeCount = decrement(p.LikeCount)
				}
			}
			if _, err := querycache.Update(tx, listKey, func(posts *[]api.Post) {
				for i := range *posts {
					apply(&(*posts)[i])
				}
			}); err != nil {
				return err
			}
			_, err = querycache.Update(tx, postKey, apply)
			return err
		},
		Call: func(ctx context.Context) error {
			var err error
			if like {
				_, err = c.backend.LikePost(ctx, postID)
			} else {
				_, err = c.backend.UnlikePost(ctx, postID)
			}
			return err
		},
	})
}

func cachedPostLiked(tx *querycache.Tx, listKey, postKey querycache.Key, postID string) (liked, found bool, err error) {
	var p api.Post
	ok, err := tx.Get(postKey, &p)
	if err != nil {
		return false, false, err
	}
	if ok {
		return p.Liked, true, nil
	}

	var posts []api.Post
	ok, err = tx.Get(listKey, &posts)
	if err != nil || !ok {
		return false, false, err
	}
	for _, p := range posts {
		if p.ID == postID {
			return p.Liked, true, nil
		}
	}
	return false, false, nil
}

// CreatePost prepends a placeholder post with a temporary id and zero counts
// to the posts list, then creates it on the server.
func (c *Controller) CreatePost(ctx context.Context, req api.CreatePostRequest) (*api.Post, error) {
	listKey := querykeys.Posts(c.tenant)
	var created *api.Post

	err := c.Run(ctx, Mutation{
		Name: "create_post",
		Keys: []querycache.Key{listKey},
		Apply: func(tx *querycache.Tx) error {
			now := c.now()
			placeholder := api.Post{
				ID:         c.tempID(),
				Title:      req.Title,
				Content:    req.Content,
				CategoryID: req.CategoryID,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			var posts []api.Post
			if _, err := tx.Get(listKey, &posts); err != nil {
				return err
			}
			return tx.Set(listKey, append([]api.Post{placeholder}, posts...))
		},
		Call: func(ctx context.Context) error {
			var err error
			created, err = c.backend.CreatePost(ctx, req)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeletePost removes the post from the posts list, then deletes it on the server.
func (c *Controller) DeletePost(ctx context.Context, postID string) error {
	listKey := querykeys.Posts(c.tenant)

	return c.Run(ctx, Mutation{
		Name: "delete_post",
		Keys: []querycache.Key{listKey},
		Apply: func(tx *querycache.Tx) error {
			_, err := querycache.Update(tx, listKey, func(posts *[]api.Post) {
				*posts = filterPosts(*posts, postID)
			})
			return err
		},
		Call: func(ctx context.Context) error {
			return c.backend.DeletePost(ctx, postID)
		},
	})
}

func filterPosts(posts []api.Post, id string) []api.Post {
	out := make([]api.Post, 0, len(posts))
	for _, p := range posts {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
