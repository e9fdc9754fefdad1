package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"refillplan/internal/model"
)

func TestMemoryRunRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	run, err := m.CreateRun(ctx, model.Run{MapName: "linkoping", Status: "running"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID == "" || run.CreatedAt == "" {
		t.Fatalf("expected id and createdAt, got %+v", run)
	}

	run.Status = "completed"
	run.Solution = model.Solution{"a": model.DeviceA}
	run.Score = &model.ScoreVector{Total: 12.5}
	if err := m.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}
	// mutating the caller's copy must not leak into the store
	run.Solution["b"] = model.DeviceB

	got, err := m.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != "completed" || got.Score.Total != 12.5 || len(got.Solution) != 1 {
		t.Fatalf("unexpected run %+v", got)
	}
}

func TestMemoryRunNotFound(t *testing.T) {
	m := NewMemory()
	if _, err := m.GetRun(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := m.UpdateRun(context.Background(), model.Run{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryListRunsPaging(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		name := "a"
		if i%2 == 1 {
			name = "b"
		}
		if _, err := m.CreateRun(ctx, model.Run{MapName: name, Status: "running"}); err != nil {
			t.Fatal(err)
		}
	}
	page, next, err := m.ListRuns(ctx, "", "", 2)
	if err != nil || len(page) != 2 || next == "" {
		t.Fatalf("first page: %v %d %q", err, len(page), next)
	}
	rest, next, err := m.ListRuns(ctx, "", next, 10)
	if err != nil || len(rest) != 3 || next != "" {
		t.Fatalf("second page: %v %d %q", err, len(rest), next)
	}
	onlyA, _, _ := m.ListRuns(ctx, "a", "", 10)
	if len(onlyA) != 3 {
		t.Fatalf("want 3 runs of map a, got %d", len(onlyA))
	}
}

func TestMemoryOptimizerConfig(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if cfg, err := m.GetOptimizerConfig(ctx, "x"); err != nil || cfg != nil {
		t.Fatalf("expected nil config, got %v %v", cfg, err)
	}
	_ = m.SaveOptimizerConfig(ctx, "x", map[string]any{"beamWidth": 10})
	cfg, _ := m.GetOptimizerConfig(ctx, "x")
	if cfg["beamWidth"] != 10 {
		t.Fatalf("unexpected config %v", cfg)
	}
}

func TestMemoryWebhookLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id, _ := m.EnqueueWebhook(ctx, "run.completed", "http://example.invalid", "s", []byte(`{}`))

	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("expected one due delivery, got %+v", due)
	}
	later := time.Now().Add(time.Hour)
	_ = m.MarkWebhookDelivery(ctx, id, false, &later, "boom", 500, 3)
	if due, _ := m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatalf("retry scheduled in the future must not be due")
	}
	items, _, _ := m.ListWebhookDeliveries(ctx, "retry", "", 10)
	if len(items) != 1 || items[0]["lastError"] != "boom" || items[0]["attempts"] != 1 {
		t.Fatalf("unexpected deliveries %+v", items)
	}
	_ = m.FailWebhookDelivery(ctx, id, "gave up", 500, 3)
	if items, _, _ := m.ListWebhookDeliveries(ctx, "failed", "", 10); len(items) != 1 {
		t.Fatalf("expected failed delivery")
	}
}
