package catalog

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Event types
const (
	EventRegistryReloaded   = "registry_reloaded"
	EventDescriptorSaved    = "descriptor_saved"
	EventDescriptorDeleted  = "descriptor_deleted"
	EventConverterPublished = "converter_published"
	EventInterviewChecked   = "interview_checked"
)

// Event is something that changed in the registry or at the bridge.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

type EventHandler func(Event)

type subscription struct {
	id      uint64
	typ     string // empty matches every event
	handler EventHandler
}

// EventBus fans events out to subscribers in subscription order.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger *slog.Logger
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{logger: logger}
}

// On subscribes handler to events of one type and returns the unsubscribe
// function.
func (eb *EventBus) On(eventType string, handler EventHandler) func() {
	return eb.subscribe(eventType, handler)
}

// OnAll subscribes handler to every event.
func (eb *EventBus) OnAll(handler EventHandler) func() {
	return eb.subscribe("", handler)
}

func (eb *EventBus) subscribe(typ string, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.subs = append(eb.subs, subscription{id: id, typ: typ, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			eb.mu.Lock()
			defer eb.mu.Unlock()
			eb.subs = slices.DeleteFunc(eb.subs, func(s subscription) bool { return s.id == id })
		})
	}
}

// Emit delivers event synchronously. A zero Time is set to now. A panicking
// handler is logged and does not stop delivery to the others.
func (eb *EventBus) Emit(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	eb.mu.RLock()
	var handlers []EventHandler
	for _, s := range eb.subs {
		if s.typ == "" || s.typ == event.Type {
			handlers = append(handlers, s.handler)
		}
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		eb.deliver(h, event)
	}
}

func (eb *EventBus) deliver(h EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "type", event.Type, "panic", r)
		}
	}()
	h(event)
}
