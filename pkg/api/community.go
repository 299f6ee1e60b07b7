package api

import (
	"context"
	"fmt"

	"github.com/zfogg/sidechain/community/pkg/logger"
)

// ListMembers retrieves the tenant's members
func (c *Client) ListMembers(ctx context.Context) ([]Member, error) {
	logger.Debug("Fetching members")

	var members []Member
	if err := c.getList(ctx, "/members", "members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// ListVideos retrieves the tenant's videos
func (c *Client) ListVideos(ctx context.Context) ([]Video, error) {
	logger.Debug("Fetching videos")

	var videos []Video
	if err := c.getList(ctx, "/videos", "videos", nil, &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

// GetVideo retrieves a single video's processing state
func (c *Client) GetVideo(ctx context.Context, id string) (*Video, error) {
	logger.Debug("Fetching video", "video_id", id)

	var video Video
	resp, err := c.r(ctx).SetResult(&video).Get("/videos/" + id)
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &video, nil
}

// UpdateVideoProgress records how far the viewer has watched a lesson video
func (c *Client) UpdateVideoProgress(ctx context.Context, lessonID string, progress VideoProgress) error {
	logger.Debug("Updating video progress", "lesson_id", lessonID, "seconds", progress.WatchDurationSeconds)

	resp, err := c.r(ctx).SetBody(progress).Put(fmt.Sprintf("/learn/lessons/%s/progress", lessonID))
	return CheckResponse(resp, err)
}
