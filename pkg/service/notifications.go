package service

import (
	"context"
	"fmt"

	"github.com/zfogg/sidechain/community/pkg/api"
	"github.com/zfogg/sidechain/community/pkg/logger"
	"github.com/zfogg/sidechain/community/pkg/output"
	"github.com/zfogg/sidechain/community/pkg/prompter"
	"github.com/zfogg/sidechain/community/pkg/querykeys"
	"github.com/zfogg/sidechain/community/pkg/session"
)

// NotificationService provides notification-related operations
type NotificationService struct {
	s      *session.Session
	out    *output.Printer
	prompt *prompter.Prompter
}

// NewNotificationService creates a new notification service
func NewNotificationService(s *session.Session, out *output.Printer, p *prompter.Prompter) *NotificationService {
	return &NotificationService{s: s, out: out, prompt: p}
}

// List displays the first page of the viewer's notifications.
func (ns *NotificationService) List(ctx context.Context) error {
	key := querykeys.Notifications(ns.s.Tenant)
	if err := ns.s.Prefetch(ctx, key); err != nil {
		return fmt.Errorf("failed to list notifications: %w", err)
	}
	var list []api.Notification
	if _, err := ns.s.Store.Get(key, &list); err != nil {
		return err
	}
	if ns.out.Format() == output.FormatJSON {
		return ns.out.JSON(list)
	}
	if len(list) == 0 {
		ns.out.Info("No notifications.")
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, n := range list {
		status := "unread"
		if n.Read {
			status = "read"
		}
		rows = append(rows, []string{n.ID, status, truncate(n.Title, 30), truncate(n.Message, 50)})
	}
	ns.out.Table([]string{"ID", "Status", "Title", "Message"}, rows)
	return nil
}

// UnreadCount displays the count of unread notifications
func (ns *NotificationService) UnreadCount(ctx context.Context) error {
	logger.Debug("Getting unread notification count")

	count, err := ns.count(ctx)
	if err != nil {
		return fmt.Errorf("failed to get unread count: %w", err)
	}
	if ns.out.Format() == output.FormatJSON {
		return ns.out.JSON(api.UnreadCount{Count: count})
	}
	if count == 0 {
		ns.out.Info("No unread notifications.")
		return nil
	}
	ns.out.Info("📬 %d unread notification%s", count, pluralize(count))
	return nil
}

// MarkRead marks one notification as read and shows the updated count.
func (ns *NotificationService) MarkRead(ctx context.Context, id string) error {
	if err := requireID("notification", id); err != nil {
		return err
	}
	logger.Debug("Marking notification as read", "notification_id", id)

	// Seed the list and count so the optimistic update has values to change.
	if err := ns.s.Prefetch(ctx, querykeys.Notifications(ns.s.Tenant), querykeys.UnreadCount(ns.s.Tenant)); err != nil {
		return fmt.Errorf("failed to load notifications: %w", err)
	}
	if err := ns.s.Mutations.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	ns.s.Store.Wait()

	var count api.UnreadCount
	if _, err := ns.s.Store.Get(querykeys.UnreadCount(ns.s.Tenant), &count); err != nil {
		return err
	}
	ns.out.Success("✓ Notification marked as read (%d unread)", count.Count)
	return nil
}

// MarkAllRead marks every notification as read after confirmation.
func (ns *NotificationService) MarkAllRead(ctx context.Context, skipConfirm bool) error {
	if !skipConfirm {
		confirm, err := ns.prompt.Confirm("Mark all notifications as read?")
		if err != nil {
			return err
		}
		if !confirm {
			ns.out.Info("Cancelled.")
			return nil
		}
	}

	logger.Debug("Marking all notifications as read")
	if err := ns.s.Mutations.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	ns.out.Success("✓ All notifications marked as read.")
	return nil
}

func (ns *NotificationService) count(ctx context.Context) (int, error) {
	key := querykeys.UnreadCount(ns.s.Tenant)
	if err := ns.s.Prefetch(ctx, key); err != nil {
		return 0, err
	}
	var count api.UnreadCount
	if _, err := ns.s.Store.Get(key, &count); err != nil {
		return 0, err
	}
	return count.Count, nil
}
