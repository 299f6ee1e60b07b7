package realtime

import (
	"fmt"
	"time"
)

// Event is a decoded server push or a local connection change. The set of
// implementations is closed; switch on the concrete type.
type Event interface {
	Kind() MessageType
	isEvent()
}

// NotificationPayload is the payload of notification:new.
type NotificationPayload struct {
	ID               string                 `json:"id"`
	NotificationType string                 `json:"notification_type"`
	Title            string                 `json:"title"`
	Message          string                 `json:"message"`
	Data             map[string]interface{} `json:"data,omitempty"`
	CreatedAt        string                 `json:"created_at"`
}

// PostPayload is the payload of post:created and post:updated.
type PostPayload struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	CategoryID string `json:"category_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// CommentPayload is the payload of comment:created.
type CommentPayload struct {
	ID         string `json:"id"`
	PostID     string `json:"post_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content,omitempty"`
	ParentID   string `json:"parent_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// LikeTarget is what a like:updated envelope refers to.
type LikeTarget string

const (
	LikeTargetPost    LikeTarget = "post"
	LikeTargetComment LikeTarget = "comment"
)

// LikePayload is the payload of like:updated.
type LikePayload struct {
	TargetType LikeTarget `json:"target_type"`
	TargetID   string     `json:"target_id"`
	LikeCount  int        `json:"like_count"`
	UserID     string     `json:"user_id"`
}

// VideoPayload is the payload of video:ready and video:failed.
type VideoPayload struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	PlaybackURL  string `json:"playback_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// MemberPayload is the payload of member:joined and member:left.
type MemberPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	RoleName string `json:"role_name"`
	Action   string `json:"action"`
}

// ErrorPayload is the payload of a server-pushed error.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type NotificationNew struct{ NotificationPayload }
type PostCreated struct{ PostPayload }
type PostUpdated struct{ PostPayload }
type CommentCreated struct{ CommentPayload }
type LikeUpdated struct{ LikePayload }
type VideoReady struct{ VideoPayload }
type VideoFailed struct{ VideoPayload }
type MemberJoined struct{ MemberPayload }
type MemberLeft struct{ MemberPayload }
type ServerError struct{ ErrorPayload }

type PostDeleted struct {
	ID string `json:"id"`
}

type CommentDeleted struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

// Connected is the server's greeting after the transport opens.
type Connected struct {
	UserID   string `json:"user_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
}

type Ping struct{}
type Pong struct{}

// StateChanged is emitted locally on every connection state transition.
type StateChanged struct {
	From    State
	To      State
	Attempt int
	Err     string
	At      time.Time
}

func (NotificationNew) Kind() MessageType { return TypeNotificationNew }
func (PostCreated) Kind() MessageType     { return TypePostCreated }
func (PostUpdated) Kind() MessageType     { return TypePostUpdated }
func (PostDeleted) Kind() MessageType     { return TypePostDeleted }
func (CommentCreated) Kind() MessageType  { return TypeCommentCreated }
func (CommentDeleted) Kind() MessageType  { return TypeCommentDeleted }
func (LikeUpdated) Kind() MessageType     { return TypeLikeUpdated }
func (VideoReady) Kind() MessageType      { return TypeVideoReady }
func (VideoFailed) Kind() MessageType     { return TypeVideoFailed }
func (MemberJoined) Kind() MessageType    { return TypeMemberJoined }
func (MemberLeft) Kind() MessageType      { return TypeMemberLeft }
func (Connected) Kind() MessageType       { return TypeConnected }
func (Ping) Kind() MessageType            { return TypePing }
func (Pong) Kind() MessageType            { return TypePong }
func (ServerError) Kind() MessageType     { return TypeError }
func (StateChanged) Kind() MessageType    { return "state" }

func (NotificationNew) isEvent() {}
func (PostCreated) isEvent()     {}
func (PostUpdated) isEvent()     {}
func (PostDeleted) isEvent()     {}
func (CommentCreated) isEvent()  {}
func (CommentDeleted) isEvent()  {}
func (LikeUpdated) isEvent()     {}
func (VideoReady) isEvent()      {}
func (VideoFailed) isEvent()     {}
func (MemberJoined) isEvent()    {}
func (MemberLeft) isEvent()      {}
func (Connected) isEvent()       {}
func (Ping) isEvent()            {}
func (Pong) isEvent()            {}
func (ServerError) isEvent()     {}
func (StateChanged) isEvent()    {}

// errUnknownType marks envelopes whose type this client does not understand.
type errUnknownType struct{ t MessageType }

func (e errUnknownType) Error() string { return fmt.Sprintf("unknown message type %q", e.t) }

// decodeEvent maps an envelope to its typed event.
func decodeEvent(env Envelope) (Event, error) {
	var ev Event
	switch env.Type {
	case TypeNotificationNew:
		ev = &NotificationNew{}
	case TypePostCreated:
		ev = &PostCreated{}
	case TypePostUpdated:
		ev = &PostUpdated{}
	case TypePostDeleted:
		ev = &PostDeleted{}
	case TypeCommentCreated:
		ev = &CommentCreated{}
	case TypeCommentDeleted:
		ev = &CommentDeleted{}
	case TypeLikeUpdated:
		ev = &LikeUpdated{}
	case TypeVideoReady:
		ev = &VideoReady{}
	case TypeVideoFailed:
		ev = &VideoFailed{}
	case TypeMemberJoined:
		ev = &MemberJoined{}
	case TypeMemberLeft:
		ev = &MemberLeft{}
	case TypeConnected:
		ev = &Connected{}
	case TypePing:
		return Ping{}, nil
	case TypePong:
		return Pong{}, nil
	case TypeError:
		ev = &ServerError{}
	default:
		return nil, errUnknownType{env.Type}
	}

	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, ev); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return deref(ev), nil
}

// deref turns the decode target back into a value so listeners can switch
// on value types.
func deref(ev Event) Event {
	switch e := ev.(type) {
	case *NotificationNew:
		return *e
	case *PostCreated:
		return *e
	case *PostUpdated:
		return *e
	case *PostDeleted:
		return *e
	case *CommentCreated:
		return *e
	case *CommentDeleted:
		return *e
	case *LikeUpdated:
		return *e
	case *VideoReady:
		return *e
	case *VideoFailed:
		return *e
	case *MemberJoined:
		return *e
	case *MemberLeft:
		return *e
	case *Connected:
		return *e
	case *ServerError:
		return *e
	}
	return ev
}
