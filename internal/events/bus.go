package events

import (
	"github.com/kelindar/event"

	"github.com/smazurov/ffpanel/internal/logging"
)

// Publisher is the publishing half of Bus.
type Publisher interface {
	Publish(ev Event)
}

// Bus fans events out to typed subscribers on a kelindar/event dispatcher.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// routes maps each event type id to a publish call for its concrete type.
var routes = map[uint32]func(*event.Dispatcher, Event){
	TypeOptionsChanged:    route[OptionsChangedEvent],
	TypeAnalysisCompleted: route[AnalysisCompletedEvent],
	TypeJobStarted:        route[JobStartedEvent],
	TypeJobProgress:       route[JobProgressEvent],
	TypeFileFinished:      route[FileFinishedEvent],
	TypeJobFinished:       route[JobFinishedEvent],
	TypePresetsReloaded:   route[PresetsReloadedEvent],
}

func route[T Event](d *event.Dispatcher, ev Event) {
	if e, ok := ev.(T); ok {
		event.Publish(d, e)
	}
}

// Publish delivers ev to the subscribers of its concrete type.
func (b *Bus) Publish(ev Event) {
	publish, ok := routes[ev.Type()]
	if !ok {
		logging.GetLogger("events").Warn("Dropping unroutable event", "type", ev.Type())
		return
	}
	publish(b.dispatcher, ev)
}

// On subscribes fn to events of type T and returns the unsubscribe func.
func On[T Event](b *Bus, fn func(T)) func() {
	return event.Subscribe(b.dispatcher, fn)
}

// Subscribe registers handler, a func taking one of the event types, and
// returns its unsubscribe func. Other handler types get a no-op.
//
//	unsub := bus.Subscribe(func(e JobProgressEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(OptionsChangedEvent):
		return On(b, h)
	case func(AnalysisCompletedEvent):
		return On(b, h)
	case func(JobStartedEvent):
		return On(b, h)
	case func(JobProgressEvent):
		return On(b, h)
	case func(FileFinishedEvent):
		return On(b, h)
	case func(JobFinishedEvent):
		return On(b, h)
	case func(PresetsReloadedEvent):
		return On(b, h)
	}
	logging.GetLogger("events").Warn("Ignoring subscription for unknown handler type")
	return func() {}
}

// SubscribeToChannel forwards events of type T into ch for select loops,
// dropping them while ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return On(bus, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
