package logging

import (
	"sync"
	"unicode/utf8"
)

// DefaultFeedLimit is the number of characters a Feed keeps.
const DefaultFeedLimit = 500

// Feed keeps the newest debug lines, newest first, truncated to a fixed
// number of characters.
type Feed struct {
	mu    sync.Mutex
	limit int
	text  string
}

func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return &Feed{limit: limit}
}

// Add prepends line to the feed.
func (f *Feed) Add(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = truncate(line+"\n"+f.text, f.limit)
}

func (f *Feed) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text
}

func (f *Feed) Clear() {
	f.mu.Lock()
	f.text = ""
	f.mu.Unlock()
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}
