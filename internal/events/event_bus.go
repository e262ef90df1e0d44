// internal/events/event_bus.go
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types published by the discovery service
const (
	ScanStarted        = "scan.started"
	ScanCompleted      = "scan.completed"
	ScanFailed         = "scan.failed"
	DeviceConnected    = "device.connected"
	DeviceDisconnected = "device.disconnected"

	// AllEvents subscribes to every event type
	AllEvents = "*"
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates an event stamped with an id and the current time
func NewEvent(eventType, source string, data map[string]interface{}) Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher is the producer side of the bus
type Publisher interface {
	Publish(event Event)
}

// EventBus manages event distribution
type EventBus struct {
	subscribers map[string][]chan Event
	events      chan Event
	done        chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		subscribers: make(map[string][]chan Event),
		events:      make(chan Event, 1000),
		done:        make(chan struct{}),
		logger:      logger.With(zap.String("component", "event_bus")),
	}
}

// Start distributes events until Stop is called. It blocks.
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			eb.closeSubscribers()
			return
		}
	}
}

// Stop ends distribution and closes every subscriber channel
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() { close(eb.done) })
}

// Publish publishes an event without blocking
func (eb *EventBus) Publish(event Event) {
	select {
	case <-eb.done:
		return
	default:
	}

	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", event.Type),
		)
	}
}

// Subscribe subscribes to events of a specific type, or AllEvents
func (eb *EventBus) Subscribe(eventType string) <-chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan Event, 100)
	select {
	case <-eb.done:
		close(subscriber)
		return subscriber
	default:
	}

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	return subscriber
}

// Unsubscribe removes and closes a subscription
func (eb *EventBus) Unsubscribe(eventType string, sub <-chan Event) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	list := eb.subscribers[eventType]
	for i, ch := range list {
		if ch == sub {
			eb.subscribers[eventType] = append(list[:i], list[i+1:]...)
			close(ch)
			return
		}
	}
}

// SubscriberCount returns the number of live subscriptions
func (eb *EventBus) SubscriberCount() int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	n := 0
	for _, list := range eb.subscribers {
		n += len(list)
	}
	return n
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, topic := range []string{event.Type, AllEvents} {
		for _, subscriber := range eb.subscribers[topic] {
			select {
			case subscriber <- event:
			default:
				eb.logger.Debug("Slow subscriber, event skipped", zap.String("event_type", event.Type))
			}
		}
	}
}

func (eb *EventBus) closeSubscribers() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for topic, list := range eb.subscribers {
		for _, ch := range list {
			close(ch)
		}
		delete(eb.subscribers, topic)
	}
}
