package api

import (
    "testing"
    "time"

    "refillplan/internal/model"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    rid := "run1"
    ch := b.Subscribe(rid)

    evt := model.RunEvent{Type: "pass.completed", Data: map[string]any{"pass": 1}}
    b.Publish(rid, evt)
    b.Publish("other", model.RunEvent{Type: "ignored"})

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["pass"].(int) != 1 { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(rid, ch)
    if _, ok := <-ch; ok { t.Fatal("channel should be closed after unsubscribe") }
    // second unsubscribe and publish after unsubscribe must not panic
    b.Unsubscribe(rid, ch)
    b.Publish(rid, evt)
}

func TestBrokerDropsWhenSubscriberIsSlow(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe("r")
    defer b.Unsubscribe("r", ch)
    for i := 0; i < cap(ch)+10; i++ {
        b.Publish("r", model.RunEvent{Type: "component.solved"})
    }
    if len(ch) != cap(ch) { t.Fatalf("buffered %d events, want %d", len(ch), cap(ch)) }
}

func TestRouteLabel(t *testing.T) {
    cases := map[string]string{
        "/v1/runs":                "/v1/runs",
        "/v1/runs/abc":            "/v1/runs/{id}",
        "/v1/runs/abc/events/ws":  "/v1/runs/{id}/events/ws",
        "/healthz":                "/healthz",
    }
    for in, want := range cases {
        if got := routeLabel(in); got != want { t.Fatalf("routeLabel(%q) = %q, want %q", in, got, want) }
    }
}
