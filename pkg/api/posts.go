package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/zfogg/sidechain/community/pkg/logger"
)

// ListPosts retrieves a page of posts for the tenant
func (c *Client) ListPosts(ctx context.Context, limit, offset int) ([]Post, error) {
	logger.Debug("Fetching posts", "limit", limit, "offset", offset)

	var posts []Post
	err := c.getList(ctx, "/posts", "posts", map[string]string{
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
	}, &posts)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost retrieves a single post
func (c *Client) GetPost(ctx context.Context, id string) (*Post, error) {
	logger.Debug("Fetching post", "post_id", id)

	var post Post
	resp, err := c.r(ctx).SetResult(&post).Get("/posts/" + id)
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &post, nil
}

// CreatePost publishes a new post
func (c *Client) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	logger.Debug("Creating post", "title", req.Title)

	var post Post
	resp, err := c.r(ctx).SetBody(req).SetResult(&post).Post("/posts")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	if post.ID == "" {
		return nil, fmt.Errorf("create post: response carried no post id")
	}
	return &post, nil
}

// DeletePost deletes a post
func (c *Client) DeletePost(ctx context.Context, id string) error {
	logger.Debug("Deleting post", "post_id", id)

	resp, err := c.r(ctx).Delete("/posts/" + id)
	return CheckResponse(resp, err)
}

// LikePost likes a post
func (c *Client) LikePost(ctx context.Context, id string) (*LikeResponse, error) {
	return c.like(ctx, fmt.Sprintf("/posts/%s/like", id), true)
}

// UnlikePost removes the viewer's like from a post
func (c *Client) UnlikePost(ctx context.Context, id string) (*LikeResponse, error) {
	return c.like(ctx, fmt.Sprintf("/posts/%s/like", id), false)
}

func (c *Client) like(ctx context.Context, path string, like bool) (*LikeResponse, error) {
	logger.Debug("Toggling like", "path", path, "like", like)

	var out LikeResponse
	req := c.r(ctx).SetResult(&out)
	var err error
	if like {
		resp, reqErr := req.Post(path)
		err = CheckResponse(resp, reqErr)
	} else {
		resp, reqErr := req.Delete(path)
		err = CheckResponse(resp, reqErr)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
