// Package events provides the publish-subscribe boundary between the core
// coordinators and any consumer (CLI output, a UI, tests). Publishing never
// blocks: events for slow consumers are dropped.
package events

import (
	"sync"
	"time"
)

// Event phases emitted by the coordinators.
const (
	PhaseTransferArrived  = "transfer-arrived"
	PhaseUploadStarted    = "upload-started"
	PhaseUploadProgress   = "upload-progress"
	PhaseUploadDone       = "upload-done"
	PhaseDownloadProgress = "download-progress"
	PhaseInstallStarted   = "install-started"
	PhaseInstallProgress  = "install-progress"
	PhaseInstalled        = "installed"
	PhaseInstallFailed    = "install-failed"
	PhaseDiscarded        = "discarded"
	PhaseRestoreProgress  = "restore-progress"
	PhaseDone             = "done"
	PhaseError            = "error"
)

// Event is one progress or lifecycle notification.
type Event struct {
	Phase      string
	Digest     string
	FolderName string
	Msg        string

	// Transferred/Total carry byte counts for progress phases; Fraction is
	// the derived overall completion in [0,1] where the publisher knows it.
	Transferred int64
	Total       int64
	Fraction    float64

	Timestamp time.Time
}

// Broadcaster fans events out to all subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[chan Event]struct{})}
}

// Subscribe adds a subscriber and returns its event channel. The caller must
// call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers without blocking.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop for slow consumer.
		}
	}
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
