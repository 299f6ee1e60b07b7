package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/zfogg/sidechain/community/pkg/logger"
)

// ListNotifications retrieves a page of the viewer's notifications
func (c *Client) ListNotifications(ctx context.Context, limit, offset int) ([]Notification, error) {
	logger.Debug("Fetching notifications", "limit", limit, "offset", offset)

	var notifications []Notification
	err := c.getList(ctx, "/notifications", "notifications", map[string]string{
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
	}, &notifications)
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// GetUnreadCount retrieves the count of unread notifications
func (c *Client) GetUnreadCount(ctx context.Context) (*UnreadCount, error) {
	logger.Debug("Fetching unread notification count")

	var count UnreadCount
	resp, err := c.r(ctx).SetResult(&count).Get("/notifications/unread/count")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &count, nil
}

// MarkNotificationRead marks a single notification as read
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	logger.Debug("Marking notification as read", "notification_id", id)

	resp, err := c.r(ctx).Post(fmt.Sprintf("/notifications/%s/read", id))
	return CheckResponse(resp, err)
}

// MarkAllNotificationsRead marks every notification as read
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	logger.Debug("Marking all notifications as read")

	resp, err := c.r(ctx).Post("/notifications/read-all")
	return CheckResponse(resp, err)
}
