package storage

import "time"

// Reply statuses recorded in the journal.
const (
	StatusPosted          = "posted"
	StatusGenerationError = "generation_error"
	StatusSubmitError     = "submit_error"
	StatusDryRun          = "dry_run"
)

// ReplyEvent is one processed post: what we saw, what we answered, and how it went.
// Events are expected to be appended in chronological order.
type ReplyEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Handle    string    `json:"handle"`
	PostID    string    `json:"post_id"`
	PostText  string    `json:"post_text"`
	Reply     string    `json:"reply,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// Recorder abstracts persistence of reply events.
// LoadReplies should return events in chronological order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendReply(event ReplyEvent) error
	LoadReplies() ([]ReplyEvent, error)
}
