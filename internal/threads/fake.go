package threads

import (
	"context"
	"fmt"
	"sync"
)

// Reply is a reply recorded by Fake.
type Reply struct {
	PostID string
	Text   string
}

// Fake is an in-memory API used by tests across packages.
type Fake struct {
	mu sync.Mutex

	Users       map[string]string // handle -> user id
	Posts       map[string][]Post // user id -> posts, most recent first
	ResolveErrs map[string]error  // handle -> error
	ListErrs    map[string]error  // user id -> error
	SubmitErrs  map[string]error  // post id -> error

	Replies     []Reply
	ListCalls   []string
	ResolveHits int
}

var _ API = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{
		Users:       map[string]string{},
		Posts:       map[string][]Post{},
		ResolveErrs: map[string]error{},
		ListErrs:    map[string]error{},
		SubmitErrs:  map[string]error{},
	}
}

func (f *Fake) ResolveHandle(_ context.Context, username string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResolveHits++
	if err := f.ResolveErrs[username]; err != nil {
		return "", err
	}
	id, ok := f.Users[username]
	if !ok {
		return "", &TransportError{Op: "resolve handle", Status: 404, Err: fmt.Errorf("unknown handle %q", username)}
	}
	return id, nil
}

func (f *Fake) ListRecentPosts(_ context.Context, userID string, count int) ([]Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls = append(f.ListCalls, userID)
	if err := f.ListErrs[userID]; err != nil {
		return nil, err
	}
	posts := f.Posts[userID]
	if count < len(posts) {
		posts = posts[:count]
	}
	return append([]Post(nil), posts...), nil
}

func (f *Fake) SubmitReply(_ context.Context, postID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SubmitErrs[postID]; err != nil {
		return err
	}
	f.Replies = append(f.Replies, Reply{PostID: postID, Text: text})
	return nil
}

// Submitted returns a copy of the recorded replies.
func (f *Fake) Submitted() []Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Reply(nil), f.Replies...)
}
