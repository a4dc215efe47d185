package audit

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentplatform/internal/shared/id"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// DefaultSubscriberBuffer is the channel size handed to subscribers
const DefaultSubscriberBuffer = 64

// Log is the append-only audit history
type Log struct {
	mu          sync.RWMutex
	events      []types.Event
	subscribers map[int]chan types.Event
	nextSub     int

	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewLog creates an empty history
func NewLog() *Log {
	return &Log{
		events:      make([]types.Event, 0, 256),
		subscribers: make(map[int]chan types.Event),
		logger:      zap.NewNop(),
	}
}

// WithMetrics sets the metrics collector
func (l *Log) WithMetrics(metrics *monitoring.Metrics) *Log {
	l.metrics = metrics
	return l
}

// WithLogger sets the logger
func (l *Log) WithLogger(logger *zap.Logger) *Log {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Append stores an event, assigning its ID and timestamp, and returns it
func (l *Log) Append(e types.Event) types.Event {
	if e.ID == "" {
		e.ID = id.NewEventID().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	l.events = append(l.events, e)
	for _, ch := range l.subscribers {
		select {
		case ch <- e:
		default:
			l.logger.Warn("Audit subscriber is lagging, dropping event", zap.String("event_id", e.ID))
		}
	}
	l.mu.Unlock()

	if l.metrics != nil {
		method := ""
		if e.Method != nil {
			method = *e.Method
		}
		l.metrics.RecordAuditEvent(string(e.Type), method)
	}
	return e
}

// Events returns a copy of the history in append order
func (l *Log) Events() []types.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Since returns the events appended after the first n
func (l *Log) Since(n int) []types.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	if n >= len(l.events) {
		return []types.Event{}
	}
	out := make([]types.Event, len(l.events)-n)
	copy(out, l.events[n:])
	return out
}

// Len returns the number of recorded events
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Subscribe delivers every event appended from now on. Slow subscribers
// miss events rather than blocking writers. The returned function
// unsubscribes and closes the channel.
func (l *Log) Subscribe(buffer int) (<-chan types.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan types.Event, buffer)

	l.mu.Lock()
	key := l.nextSub
	l.nextSub++
	l.subscribers[key] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subscribers, key)
			l.mu.Unlock()
			close(ch)
		})
	}
}
