package realtime

import (
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MessageType tags an envelope and determines the shape of its payload.
type MessageType string

const (
	TypeNotificationNew MessageType = "notification:new"
	TypePostCreated     MessageType = "post:created"
	TypePostUpdated     MessageType = "post:updated"
	TypePostDeleted     MessageType = "post:deleted"
	TypeCommentCreated  MessageType = "comment:created"
	TypeCommentDeleted  MessageType = "comment:deleted"
	TypeLikeUpdated     MessageType = "like:updated"
	TypeVideoReady      MessageType = "video:ready"
	TypeVideoFailed     MessageType = "video:failed"
	TypeMemberJoined    MessageType = "member:joined"
	TypeMemberLeft      MessageType = "member:left"
	TypeConnected       MessageType = "connected"
	TypePing            MessageType = "ping"
	TypePong            MessageType = "pong"
	TypeError           MessageType = "error"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type      MessageType        `json:"type"`
	Payload   jsoniter.RawMessage `json:"payload,omitempty"`
	Timestamp string             `json:"timestamp,omitempty"`
}

// Time parses Timestamp. The zero time is returned when it is missing or invalid.
func (e Envelope) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

var errMissingType = errors.New("envelope has no type")

// DecodeEnvelope parses one inbound frame.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errMissingType
	}
	return env, nil
}

// NewEnvelope encodes payload and stamps the envelope with now.
func NewEnvelope(t MessageType, payload interface{}, now time.Time) (Envelope, error) {
	env := Envelope{Type: t, Timestamp: now.UTC().Format(time.RFC3339Nano)}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// Encode serializes the envelope for the transport.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// pingFrame is the minimal heartbeat form.
var pingFrame = []byte(`{"type":"ping"}`)
