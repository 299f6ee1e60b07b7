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

// PostService provides post operations through the optimistic controller.
type PostService struct {
	s   *session.Session
	out *output.Printer
}

// NewPostService creates a new post service
func NewPostService(s *session.Session, out *output.Printer) *PostService {
	return &PostService{s: s, out: out}
}

// Show fetches one post and prints it.
func (ps *PostService) Show(ctx context.Context, postID string) error {
	if err := requireID("post", postID); err != nil {
		return err
	}
	post, err := ps.load(ctx, postID)
	if err != nil {
		return err
	}
	return ps.print(post)
}

// List prints the first page of the tenant feed.
func (ps *PostService) List(ctx context.Context) error {
	key := querykeys.Posts(ps.s.Tenant)
	if err := ps.s.Prefetch(ctx, key); err != nil {
		return fmt.Errorf("failed to list posts: %w", err)
	}
	var posts []api.Post
	if _, err := ps.s.Store.Get(key, &posts); err != nil {
		return err
	}
	if ps.out.Format() == output.FormatJSON {
		return ps.out.JSON(posts)
	}
	if len(posts) == 0 {
		ps.out.Info("No posts.")
		return nil
	}

	rows := make([][]string, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, []string{
			p.ID,
			truncate(p.Title, 40),
			p.AuthorName,
			fmt.Sprintf("%d", p.LikeCount),
			fmt.Sprintf("%d", p.CommentCount),
		})
	}
	ps.out.Table([]string{"ID", "Title", "Author", "Likes", "Comments"}, rows)
	return nil
}

// Like likes a post. The cached post shows the change immediately and is
// refreshed from the server afterwards.
func (ps *PostService) Like(ctx context.Context, postID string) error {
	return ps.setLike(ctx, postID, true)
}

// Unlike removes the viewer's like.
func (ps *PostService) Unlike(ctx context.Context, postID string) error {
	return ps.setLike(ctx, postID, false)
}

func (ps *PostService) setLike(ctx context.Context, postID string, like bool) error {
	if err := requireID("post", postID); err != nil {
		return err
	}
	if _, err := ps.load(ctx, postID); err != nil {
		return err
	}

	logger.Debug("Setting post like", "post_id", postID, "like", like)
	var err error
	if like {
		err = ps.s.Mutations.LikePost(ctx, postID)
	} else {
		err = ps.s.Mutations.UnlikePost(ctx, postID)
	}
	if err != nil {
		return err
	}
	return ps.settled(postID)
}

// Toggle flips the viewer's like using the cached state.
func (ps *PostService) Toggle(ctx context.Context, postID string) error {
	if err := requireID("post", postID); err != nil {
		return err
	}
	post, err := ps.load(ctx, postID)
	if err != nil {
		return err
	}
	if _, err := ps.s.Mutations.ToggleLikePost(ctx, postID, post.Liked); err != nil {
		return err
	}
	return ps.settled(postID)
}

// Create publishes a post to the tenant feed.
func (ps *PostService) Create(ctx context.Context, title, content, categoryID string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("post title is required")
	}
	post, err := ps.s.Mutations.CreatePost(ctx, api.CreatePostRequest{
		Title:      title,
		Content:    content,
		CategoryID: categoryID,
	})
	if err != nil {
		return err
	}
	if ps.out.Format() == output.FormatJSON {
		return ps.out.JSON(post)
	}
	ps.out.Success("✓ Created post %s", post.ID)
	return nil
}

// Delete removes a post from the feed.
func (ps *PostService) Delete(ctx context.Context, postID string) error {
	if err := requireID("post", postID); err != nil {
		return err
	}
	if err := ps.s.Mutations.DeletePost(ctx, postID); err != nil {
		return err
	}
	ps.out.Success("✓ Deleted post %s", postID)
	return nil
}

func (ps *PostService) load(ctx context.Context, postID string) (*api.Post, error) {
	key := querykeys.Post(postID)
	if err := ps.s.Prefetch(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	var post api.Post
	ok, err := ps.s.Store.Get(key, &post)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("post %s not found", postID)
	}
	return &post, nil
}

// settled waits for reconciliation and prints the authoritative post.
func (ps *PostService) settled(postID string) error {
	ps.s.Store.Wait()
	var post api.Post
	ok, err := ps.s.Store.Get(querykeys.Post(postID), &post)
	if err != nil || !ok {
		return err
	}
	return ps.print(&post)
}

func (ps *PostService) print(p *api.Post) error {
	if ps.out.Format() == output.FormatJSON {
		return ps.out.JSON(p)
	}
	return ps.out.Record("Post", map[string]interface{}{
		"id":       p.ID,
		"title":    p.Title,
		"author":   p.AuthorName,
		"likes":    p.LikeCount,
		"liked":    p.Liked,
		"comments": p.CommentCount,
	})
}
