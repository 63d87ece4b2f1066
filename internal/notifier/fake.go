package notifier

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Notifier test double.
type Fake struct {
	mu       sync.Mutex
	Posts    []FakePost
	FailNext bool
	nextRef  int
}

// FakePost records one Post invocation.
type FakePost struct {
	Text      string
	ThreadRef string
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Post(ctx context.Context, text string, threadRef string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailNext {
		f.FailNext = false
		return "", fmt.Errorf("fake notifier: simulated failure")
	}

	f.Posts = append(f.Posts, FakePost{Text: text, ThreadRef: threadRef})
	if threadRef != "" {
		return threadRef, nil
	}
	f.nextRef++
	return fmt.Sprintf("THREAD%d", f.nextRef), nil
}
