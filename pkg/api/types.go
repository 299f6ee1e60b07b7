package api

import "time"

// Post is a community post as served by GET /posts and GET /posts/{id}.
type Post struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content,omitempty"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	CategoryID   string    `json:"category_id,omitempty"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	Liked        bool      `json:"liked"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Comment belongs to one post and may reply to another comment.
type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	LikeCount  int       `json:"like_count"`
	Liked      bool      `json:"liked"`
	CreatedAt  time.Time `json:"created_at"`
}

// Notification is one entry of the viewer's inbox.
type Notification struct {
	ID               string                 `json:"id"`
	NotificationType string                 `json:"notification_type"`
	Title            string                 `json:"title"`
	Message          string                 `json:"message"`
	Data             map[string]interface{} `json:"data,omitempty"`
	Read             bool                   `json:"read"`
	CreatedAt        time.Time              `json:"created_at"`
}

// UnreadCount is the body of GET /notifications/unread/count.
type UnreadCount struct {
	Count int `json:"count"`
}

// Member is a user's membership in a tenant.
type Member struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	RoleName    string    `json:"role_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Video is an uploaded lesson or post video.
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	PlaybackURL  string `json:"playback_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	CategoryID string `json:"category_id,omitempty"`
}

// CreateCommentRequest is the body of POST /comments.
type CreateCommentRequest struct {
	PostID   string `json:"post_id"`
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
}

// LikeResponse carries the authoritative counter after a like toggle.
type LikeResponse struct {
	LikeCount int  `json:"like_count"`
	Liked     bool `json:"liked"`
}

// VideoProgress is the body of PUT /learn/lessons/{id}/progress.
type VideoProgress struct {
	WatchDurationSeconds float64  `json:"watch_duration_seconds"`
	VideoTotalSeconds    *float64 `json:"video_total_seconds,omitempty"`
}

// ErrorResponse is the JSON error body returned by the API.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}
