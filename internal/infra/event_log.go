package infra

import (
	"sort"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

// Event log defaults.
const (
	DefaultEventRetention = time.Minute
	DefaultEventCapacity  = 1024
)

// EventLog is a rolling in-memory domain.UsageEventSource. The focus
// recorder appends to it and the detector queries it.
type EventLog struct {
	mu        sync.Mutex
	events    []domain.UsageEvent
	retention time.Duration
	capacity  int
}

// NewEventLog creates a log keeping at most capacity events no older than
// retention (relative to the newest event).
func NewEventLog(retention time.Duration, capacity int) *EventLog {
	if retention <= 0 {
		retention = DefaultEventRetention
	}
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventLog{retention: retention, capacity: capacity}
}

// Record appends e and drops expired events.
func (l *EventLog) Record(e domain.UsageEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Keep chronological order even if clocks hiccup.
	i := sort.Search(len(l.events), func(i int) bool {
		return l.events[i].Timestamp.After(e.Timestamp)
	})
	l.events = append(l.events, domain.UsageEvent{})
	copy(l.events[i+1:], l.events[i:])
	l.events[i] = e

	cutoff := l.events[len(l.events)-1].Timestamp.Add(-l.retention)
	drop := sort.Search(len(l.events), func(i int) bool {
		return !l.events[i].Timestamp.Before(cutoff)
	})
	if over := len(l.events) - l.capacity; over > drop {
		drop = over
	}
	if drop > 0 {
		l.events = append(l.events[:0:0], l.events[drop:]...)
	}
}

// QueryEvents returns events with start <= Timestamp <= end in chronological order.
func (l *EventLog) QueryEvents(start, end time.Time) ([]domain.UsageEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := sort.Search(len(l.events), func(i int) bool {
		return !l.events[i].Timestamp.Before(start)
	})
	to := sort.Search(len(l.events), func(i int) bool {
		return l.events[i].Timestamp.After(end)
	})
	if from >= to {
		return nil, nil
	}
	out := make([]domain.UsageEvent, to-from)
	copy(out, l.events[from:to])
	return out, nil
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

var _ domain.UsageEventSource = (*EventLog)(nil)
