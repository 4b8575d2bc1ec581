package messaging

import (
	"context"
	"sync"

	"github.com/vimbiso/vimbiso-chatserver/internal/models"
)

// SentMessage records one outbound message captured by a Recorder.
type SentMessage struct {
	To         string
	Body       string
	Items      []models.MenuItem
	ButtonText string
}

// Recorder implements Service by recording every send. Used in tests to
// assert on component side effects.
type Recorder struct {
	mu   sync.Mutex
	Sent []SentMessage
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SendText records a text send.
func (r *Recorder) SendText(ctx context.Context, to string, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, SentMessage{To: to, Body: body})
	return nil
}

// SendInteractive records an interactive send.
func (r *Recorder) SendInteractive(ctx context.Context, to string, body string, items []models.MenuItem, buttonText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, SentMessage{To: to, Body: body, Items: items, ButtonText: buttonText})
	return nil
}

// Last returns the most recent send, if any.
func (r *Recorder) Last() (SentMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Sent) == 0 {
		return SentMessage{}, false
	}
	return r.Sent[len(r.Sent)-1], true
}

// Reset clears recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = nil
}
