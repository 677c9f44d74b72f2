package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// Message: отправленное сообщение.
type Message struct {
	To   string
	Text string
}

// Reaction: поставленная реакция.
type Reaction struct {
	To        string
	MessageID string
	Emoji     string
}

// Recorder запоминает исходящие сообщения. Потокобезопасен.
type Recorder struct {
	mu        sync.Mutex
	sent      []Message
	reactions []Reaction

	// SendErr, если задан, возвращается из Send (сообщение всё равно запоминается).
	SendErr error
}

// NewRecorder создаёт пустой рекордер.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send запоминает сообщение.
func (r *Recorder) Send(_ context.Context, to, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Message{To: to, Text: text})
	return r.SendErr
}

// React запоминает реакцию.
func (r *Recorder) React(_ context.Context, to, messageID, emoji string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactions = append(r.reactions, Reaction{To: to, MessageID: messageID, Emoji: emoji})
	return nil
}

// Sent возвращает копию отправленных сообщений.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// SentTo возвращает тексты, отправленные получателю.
func (r *Recorder) SentTo(to string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.sent {
		if m.To == to {
			out = append(out, m.Text)
		}
	}
	return out
}

// Count считает сообщения, содержащие substr.
func (r *Recorder) Count(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.sent {
		if strings.Contains(m.Text, substr) {
			n++
		}
	}
	return n
}

// Reactions возвращает копию поставленных реакций.
func (r *Recorder) Reactions() []Reaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reaction, len(r.reactions))
	copy(out, r.reactions)
	return out
}

// Reset очищает историю.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.reactions = nil
}

var (
	_ domain.Messenger = (*Recorder)(nil)
	_ Reactor          = (*Recorder)(nil)
)
