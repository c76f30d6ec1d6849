package bus

import (
	"encoding/json"
	"time"
)

// Event types carried on the post topic.
const (
	EventPostCreated    = "post.created"
	EventLikeCreated    = "like.created"
	EventCommentCreated = "comment.created"
)

// Envelope is the wire format shared with the producing services:
// {eventType, timestamp, data}.
type Envelope struct {
	EventType string          `json:"eventType"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// PostCreated is the payload of a post.created event.
type PostCreated struct {
	PostID   string `json:"postId"`
	AuthorID string `json:"authorId"`
	Username string `json:"username"`
}

// Engagement is the payload of like.created / comment.created events.
type Engagement struct {
	PostID string `json:"postId"`
	UserID string `json:"userId"`
}

func (e *Envelope) Encode() (string, error) {
	b, err := json.Marshal(e)
	return string(b), err
}

func Decode(raw string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, err
	}
	return &env, nil
}
