package optimistic

import (
	"context"

	"github.com/zfogg/sidechain/community/pkg/api"
	"github.com/zfogg/sidechain/community/pkg/querycache"
	"github.com/zfogg/sidechain/community/pkg/querykeys"
)

// MarkNotificationRead flags one notification as read and decrements the
// unread count, never below zero. A notification already cached as read
// leaves the count alone. Unless reconciliation of reads is enabled, a
// successful call does not invalidate the keys.
func (c *Controller) MarkNotificationRead(ctx context.Context, id string) error {
	listKey := querykeys.Notifications(c.tenant)
	countKey := querykeys.UnreadCount(c.tenant)

	return c.Run(ctx, Mutation{
		Name:          "mark_notification_read",
		Keys:          []querycache.Key{listKey, countKey},
		SkipReconcile: !c.reconcileReads,
		Apply: func(tx *querycache.Tx) error {
			alreadyRead := false
			if _, err := querycache.Update(tx, listKey, func(list *[]api.Notification) {
				for i := range *list {
					n := &(*list)[i]
					if n.ID != id {
						continue
					}
					alreadyRead = n.Read
					n.Read = true
				}
			}); err != nil {
				return err
			}
			if alreadyRead {
				return nil
			}
			_, err := querycache.Update(tx, countKey, func(u *api.UnreadCount) {
				u.Count = decrement(u.Count)
			})
			return err
		},
		Call: func(ctx context.Context) error {
			return c.backend.MarkNotificationRead(ctx, id)
		},
	})
}

// MarkAllNotificationsRead flags every cached notification as read and zeroes
// the unread count.
func (c *Controller) MarkAllNotificationsRead(ctx context.Context) error {
	listKey := querykeys.Notifications(c.tenant)
	countKey := querykeys.UnreadCount(c.tenant)

	return c.Run(ctx, Mutation{
		Name: "mark_all_notifications_read",
		Keys: []querycache.Key{listKey, countKey},
		Apply: func(tx *querycache.Tx) error {
			if _, err := querycache.Update(tx, listKey, func(list *[]api.Notification) {
				for i := range *list {
					(*list)[i].Read = true
				}
			}); err != nil {
				return err
			}
			_, err := querycache.Update(tx, countKey, func(u *api.UnreadCount) {
				u.Count = 0
			})
			return err
		},
		Call: func(ctx context.Context) error {
			return c.backend.MarkAllNotificationsRead(ctx)
		},
	})
}
