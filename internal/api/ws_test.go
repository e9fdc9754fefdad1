package api

import (
    "context"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"

    "refillplan/internal/model"
)

func dialRun(t *testing.T, srv *httptest.Server, runID string) *websocket.Conn {
    t.Helper()
    u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/runs/" + runID + "/events/ws"
    c, resp, err := websocket.DefaultDialer.Dial(u, nil)
    if err != nil {
        code := 0
        if resp != nil { code = resp.StatusCode }
        t.Fatalf("dial: %v (status %d)", err, code)
    }
    t.Cleanup(func() { _ = c.Close() })
    _ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
    return c
}

func TestRunEventsStream(t *testing.T) {
    s := newTestServer(t)
    srv := httptest.NewServer(s.Routes())
    defer srv.Close()

    run, err := s.Store.CreateRun(context.Background(), model.Run{MapName: "town", Status: "running"})
    if err != nil { t.Fatalf("create run: %v", err) }
    c := dialRun(t, srv, run.ID)

    var snap model.RunEvent
    if err := c.ReadJSON(&snap); err != nil { t.Fatalf("read snapshot: %v", err) }
    if snap.Type != "run.snapshot" { t.Fatalf("first frame %s", snap.Type) }

    // the handler subscribed before upgrading, so these are not lost
    s.Broker.Publish(run.ID, model.RunEvent{Type: "pass.started", Data: map[string]any{"pass": 0}})
    s.Broker.Publish(run.ID, model.RunEvent{Type: "run.completed", Data: map[string]any{"runId": run.ID}})

    var got []string
    for {
        var evt model.RunEvent
        if err := c.ReadJSON(&evt); err != nil {
            if !websocket.IsCloseError(err, websocket.CloseNormalClosure) { t.Fatalf("read: %v", err) }
            break
        }
        got = append(got, evt.Type)
    }
    if strings.Join(got, ",") != "pass.started,run.completed" { t.Fatalf("events %v", got) }
}

func TestRunEventsFinishedRun(t *testing.T) {
    s := newTestServer(t)
    srv := httptest.NewServer(s.Routes())
    defer srv.Close()

    run, err := s.Store.CreateRun(context.Background(), model.Run{MapName: "town", Status: "completed"})
    if err != nil { t.Fatalf("create run: %v", err) }
    c := dialRun(t, srv, run.ID)

    var snap model.RunEvent
    if err := c.ReadJSON(&snap); err != nil { t.Fatalf("read snapshot: %v", err) }
    r, ok := snap.Data["run"].(map[string]any)
    if !ok || r["status"] != "completed" { t.Fatalf("snapshot %+v", snap) }
    var evt model.RunEvent
    if err := c.ReadJSON(&evt); !websocket.IsCloseError(err, websocket.CloseNormalClosure) { t.Fatalf("expected normal close, got %v", err) }
}

func TestRunEventsUnknownRun(t *testing.T) {
    s := newTestServer(t)
    srv := httptest.NewServer(s.Routes())
    defer srv.Close()

    u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/runs/missing/events/ws"
    _, resp, err := websocket.DefaultDialer.Dial(u, nil)
    if err == nil { t.Fatal("expected dial to fail") }
    if resp == nil || resp.StatusCode != http.StatusNotFound { t.Fatalf("expected 404, got %+v", resp) }
}
