package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

const quiet = 20 * time.Millisecond

func expect[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	var zero T
	return zero
}

func expectNone[T any](t *testing.T, ch chan T, why string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("%s: got %+v", why, v)
	case <-time.After(quiet):
	}
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	bus := New()
	a := make(chan JobStartedEvent, 1)
	b := make(chan JobStartedEvent, 1)
	defer bus.Subscribe(func(e JobStartedEvent) { a <- e })()
	defer On(bus, func(e JobStartedEvent) { b <- e })()

	want := JobStartedEvent{JobID: "job-1", Mode: "onepass", Files: 3}
	bus.Publish(want)

	for _, ch := range []chan JobStartedEvent{a, b} {
		if got := expect(t, ch); got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	got := make(chan FileFinishedEvent, 1)
	unsub := bus.Subscribe(func(e FileFinishedEvent) { got <- e })

	bus.Publish(FileFinishedEvent{File: "a.mkv"})
	if e := expect(t, got); e.File != "a.mkv" {
		t.Errorf("File = %q", e.File)
	}

	unsub()
	bus.Publish(FileFinishedEvent{File: "b.mkv"})
	expectNone(t, got, "delivery after unsubscribe")
}

func TestSubscribersOnlySeeTheirType(t *testing.T) {
	bus := New()
	progress := make(chan JobProgressEvent, 1)
	finished := make(chan JobFinishedEvent, 1)
	defer bus.Subscribe(func(e JobProgressEvent) { progress <- e })()
	defer bus.Subscribe(func(e JobFinishedEvent) { finished <- e })()

	bus.Publish(JobProgressEvent{JobID: "j", Pass: 2})
	if e := expect(t, progress); e.Pass != 2 {
		t.Errorf("Pass = %d", e.Pass)
	}
	expectNone(t, finished, "finished subscriber saw progress")

	bus.Publish(JobFinishedEvent{JobID: "j", Completed: 1})
	expect(t, finished)
	expectNone(t, progress, "progress subscriber saw finished")
}

func TestSubscribeUnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("expected a no-op unsubscribe")
	}
	unsub()
}

type strayEvent struct{}

func (strayEvent) Type() uint32 { return 999 }

func TestPublishUnroutableEvent(t *testing.T) {
	bus := New()
	got := make(chan JobStartedEvent, 1)
	defer bus.Subscribe(func(e JobStartedEvent) { got <- e })()

	bus.Publish(strayEvent{})
	expectNone(t, got, "stray event delivered")
}

func TestConcurrentPublish(t *testing.T) {
	const publishers, each = 10, 100

	bus := New()
	got := make(chan struct{}, publishers*each)
	defer bus.Subscribe(func(JobProgressEvent) { got <- struct{}{} })()

	var wg sync.WaitGroup
	for range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				bus.Publish(JobProgressEvent{Frame: 1, Timestamp: time.Now()})
			}
		}()
	}
	wg.Wait()

	for range publishers * each {
		expect(t, got)
	}
}

func TestEveryEventTypeIsRouted(t *testing.T) {
	all := []Event{
		OptionsChangedEvent{Operation: "pass"},
		AnalysisCompletedEvent{Mode: "PEAK", Files: 1},
		JobStartedEvent{JobID: "j"},
		JobProgressEvent{JobID: "j", Pass: 1},
		FileFinishedEvent{JobID: "j", File: "a"},
		JobFinishedEvent{JobID: "j", Completed: 1},
		PresetsReloadedEvent{Dir: "/tmp", Presets: 2},
	}
	if len(routes) != len(all) {
		t.Errorf("routes has %d entries, want %d", len(routes), len(all))
	}

	bus := New()
	ch := make(chan any, len(all))
	defer SubscribeToChannel[OptionsChangedEvent](bus, ch)()
	defer SubscribeToChannel[AnalysisCompletedEvent](bus, ch)()
	defer SubscribeToChannel[JobStartedEvent](bus, ch)()
	defer SubscribeToChannel[JobProgressEvent](bus, ch)()
	defer SubscribeToChannel[FileFinishedEvent](bus, ch)()
	defer SubscribeToChannel[JobFinishedEvent](bus, ch)()
	defer SubscribeToChannel[PresetsReloadedEvent](bus, ch)()

	for _, ev := range all {
		if _, ok := routes[ev.Type()]; !ok {
			t.Errorf("%T has no route", ev)
		}
		bus.Publish(ev)
		if got := expect(t, ch); got.(Event).Type() != ev.Type() {
			t.Errorf("published %T, received %T", ev, got)
		}

		data, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal %T: %v", ev, err)
		}
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil || len(fields) == 0 {
			t.Errorf("%T encodes to %s", ev, data)
		}
	}
}

func TestSubscribeToChannelDropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any)
	defer SubscribeToChannel[JobFinishedEvent](bus, ch)()

	done := make(chan struct{})
	go func() {
		bus.Publish(JobFinishedEvent{JobID: "j"})
		close(done)
	}()
	expect(t, done)
}
