// Package querykeys builds every cache key used by the sync layer, so the
// dispatcher, the optimistic controller and the fetchers agree on shapes.
package querykeys

import "github.com/zfogg/sidechain/community/pkg/querycache"

type Key = querycache.Key

func Posts(tenant string) Key { return Key{"posts", tenant} }
func AllPosts() Key           { return Key{"posts"} }
func Post(id string) Key      { return Key{"post", id} }

func Comments(postID string) Key { return Key{"comments", postID} }
func AllComments() Key           { return Key{"comments"} }

// Notifications is the notification list for a tenant. The unread count lives
// under the same root so invalidating AllNotifications refreshes both.
func Notifications(tenant string) Key { return Key{"notifications", tenant} }
func AllNotifications() Key           { return Key{"notifications"} }
func UnreadCount(tenant string) Key   { return Key{"notifications", "count", tenant} }

func Members(tenant string) Key { return Key{"members", tenant} }
func Videos(tenant string) Key  { return Key{"videos", tenant} }
func Video(id string) Key       { return Key{"video", id} }
