package toast

import (
	"time"

	"github.com/google/uuid"
)

// Severities
const (
	Success = "success"
	Error   = "error"
	Warning = "warning"
	Info    = "info"
)

// DefaultDuration applies when a toast is pushed without a duration.
const DefaultDuration = 5 * time.Second

type Toast struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Severity  string        `json:"severity"`
	Duration  time.Duration `json:"duration"` // 0: sticky until dismissed
	CreatedAt time.Time     `json:"createdAt"`
}

// Expired reports whether the toast timed out at `now`.
func (t Toast) Expired(now time.Time) bool {
	return t.Duration > 0 && !now.Before(t.CreatedAt.Add(t.Duration))
}

// Millis is the duration in milliseconds, as consumed by the page script.
func (t Toast) Millis() int64 {
	return t.Duration.Milliseconds()
}

// Queue holds the pending toasts of a session.
type Queue struct {
	Items    []Toast       `json:"items"`
	Duration time.Duration `json:"-"` // default duration; DefaultDuration if zero
}

// Push queues a toast; a negative duration selects the default one, zero makes it sticky.
func (q *Queue) Push(now time.Time, severity, message string, duration time.Duration) Toast {
	if duration < 0 {
		duration = q.Duration
		if duration <= 0 {
			duration = DefaultDuration
		}
	}
	t := Toast{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		Duration:  duration,
		CreatedAt: now,
	}
	q.Items = append(q.Items, t)
	return t
}

func (q *Queue) Success(now time.Time, msg string) Toast { return q.Push(now, Success, msg, -1) }
func (q *Queue) Error(now time.Time, msg string) Toast   { return q.Push(now, Error, msg, -1) }
func (q *Queue) Warning(now time.Time, msg string) Toast { return q.Push(now, Warning, msg, -1) }
func (q *Queue) Info(now time.Time, msg string) Toast    { return q.Push(now, Info, msg, -1) }

// Active drops the expired toasts and returns the remaining ones, oldest first.
func (q *Queue) Active(now time.Time) []Toast {
	kept := q.Items[:0]
	for _, t := range q.Items {
		if !t.Expired(now) {
			kept = append(kept, t)
		}
	}
	q.Items = kept
	return append([]Toast(nil), kept...)
}

// Dismiss removes the toast with the given id; it reports whether one was removed.
func (q *Queue) Dismiss(id string) bool {
	for i, t := range q.Items {
		if t.ID == id {
			q.Items = append(q.Items[:i], q.Items[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) Len() int {
	return len(q.Items)
}
