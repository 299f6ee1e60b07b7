package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/community/pkg/output"
	"github.com/zfogg/sidechain/community/pkg/prompter"
	"github.com/zfogg/sidechain/community/pkg/service"
	"github.com/zfogg/sidechain/community/pkg/session"
)

var notifReadAllYes bool

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "Notification commands",
	Long:    "View and manage notifications",
}

func notificationService(s *session.Session) *service.NotificationService {
	return service.NewNotificationService(s, output.Stdout(), prompter.Stdio())
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications",
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return notificationService(s).List(ctx)
	}),
}

var notificationsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show unread notification count",
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return notificationService(s).UnreadCount(ctx)
	}),
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <notification-id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return notificationService(s).MarkRead(ctx, args[0])
	}),
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark all notifications as read",
	RunE: withSession(func(ctx context.Context, s *session.Session, args []string) error {
		return notificationService(s).MarkAllRead(ctx, notifReadAllYes)
	}),
}

func init() {
	notificationsReadAllCmd.Flags().BoolVarP(&notifReadAllYes, "yes", "y", false, "Skip confirmation")

	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsCountCmd)
	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.AddCommand(notificationsReadAllCmd)
}
