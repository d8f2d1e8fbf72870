// Package notify keeps the in-app notification feed and fans important
// events out to external channels.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/merridale/bookline/internal/domain"
)

const DefaultTTL = 5 * time.Second

// Center holds active notifications. Non-persistent entries dismiss
// themselves after the TTL; persistent ones stay until dismissed.
type Center struct {
	mu     sync.Mutex
	items  []domain.Notification
	timers map[string]*time.Timer
	ttl    time.Duration
	sender Sender
	log    zerolog.Logger
}

// Sender delivers a notification to an external channel. Delivery is best
// effort; a failure never blocks the in-app feed.
type Sender interface {
	Send(n domain.Notification) error
}

func NewCenter(ttl time.Duration, sender Sender, log zerolog.Logger) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{
		timers: make(map[string]*time.Timer),
		ttl:    ttl,
		sender: sender,
		log:    log,
	}
}

// Push adds a notification and returns its id. Non-persistent entries are
// scheduled for auto-dismissal.
func (c *Center) Push(severity domain.Severity, title, message string, persistent bool) string {
	n := domain.Notification{
		ID:         uuid.NewString(),
		Severity:   severity,
		Title:      title,
		Message:    message,
		Persistent: persistent,
		CreatedAt:  time.Now(),
	}

	c.mu.Lock()
	c.items = append(c.items, n)
	if !persistent {
		id := n.ID
		c.timers[id] = time.AfterFunc(c.ttl, func() { c.Dismiss(id) })
	}
	c.mu.Unlock()

	if c.sender != nil && severity != domain.SeverityInfo {
		if err := c.sender.Send(n); err != nil {
			c.log.Warn().Err(err).Str("title", title).Msg("external notification delivery failed")
		}
	}
	return n.ID
}

func (c *Center) Info(title, message string) string {
	return c.Push(domain.SeverityInfo, title, message, false)
}

func (c *Center) Success(title, message string) string {
	return c.Push(domain.SeveritySuccess, title, message, false)
}

func (c *Center) Warning(title, message string) string {
	return c.Push(domain.SeverityWarning, title, message, false)
}

func (c *Center) Error(title, message string) string {
	return c.Push(domain.SeverityError, title, message, true)
}

// Dismiss removes a notification by id. Dismissing an already expired id is
// a no-op.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Active returns the current notifications, oldest first.
func (c *Center) Active() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Clear drops every notification and cancels pending dismissals.
func (c *Center) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.items = nil
}
