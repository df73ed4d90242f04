// Package notify collects transient user-facing messages.
package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultCapacity is how many recent messages a Center keeps.
const DefaultCapacity = 50

// Message is one transient notification.
type Message struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Center logs notifications, keeps the most recent ones and fans them out to subscribers.
type Center struct {
	log logrus.FieldLogger
	cap int
	now func() time.Time

	mu   sync.Mutex
	msgs []Message
	subs []func(Message)
}

// NewCenter returns a Center keeping up to capacity messages.
func NewCenter(capacity int, log logrus.FieldLogger) *Center {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Center{log: log, cap: capacity, now: time.Now}
}

// Notify records msg. Subscribers are called synchronously.
func (c *Center) Notify(msg string) {
	m := Message{Text: msg, At: c.now()}
	c.log.WithField("notification", msg).Warn("user notified")

	c.mu.Lock()
	c.msgs = append(c.msgs, m)
	if over := len(c.msgs) - c.cap; over > 0 {
		c.msgs = append([]Message(nil), c.msgs[over:]...)
	}
	subs := append([]func(Message){}, c.subs...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(m)
	}
}

// Recent returns the kept messages, oldest first.
func (c *Center) Recent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message{}, c.msgs...)
}

// Subscribe registers fn for every later message.
func (c *Center) Subscribe(fn func(Message)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}
