package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Publish("hello")
	v := <-ch
	if v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
}

func TestBusClose(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	bus.Publish("ignored")
}

func TestListenStopsOnCancel(t *testing.T) {
	bus := New()
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Event, 1)
	done := Listen[Event](ctx, bus, func(e Event) { got <- e })
	bus.Publish(1)
	select {
	case v := <-got:
		if v != 1 {
			t.Fatalf("unexpected event %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListenStopsOnClose(t *testing.T) {
	bus := New()
	done := Listen[Event](context.Background(), bus, func(Event) {})
	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}
