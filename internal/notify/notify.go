// Package notify carries user-visible messages from controllers to the page.
package notify

import "sync"

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one message shown to the user.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// Warn sends a warning through n.
func Warn(n Notifier, msg string) {
	n.Notify(Notification{Level: LevelWarning, Message: msg})
}

// Error sends an error through n.
func Error(n Notifier, msg string) {
	n.Notify(Notification{Level: LevelError, Message: msg})
}

// Info sends an informational message through n.
func Info(n Notifier, msg string) {
	n.Notify(Notification{Level: LevelInfo, Message: msg})
}

// Queue buffers notifications until the next response drains them.
type Queue struct {
	mu    sync.Mutex
	items []Notification
}

// Notify appends n to the queue.
func (q *Queue) Notify(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
}

// Drain returns the queued notifications in order and empties the queue.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	if items == nil {
		return []Notification{}
	}
	return items
}

// Len reports how many notifications are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
