package store

import (
	"encoding/hex"
	"testing"

	"refillplan/internal/model"
)

func TestComputeDedupKeyFromID(t *testing.T) {
	body := []byte(`{"id":"evt_123","type":"x"}`)
	got := computeDedupKey(body)
	if got != "evt_123" {
		t.Fatalf("want evt_123, got %s", got)
	}
}

func TestComputeDedupKeyFromHash(t *testing.T) {
	body := []byte(`{"notId":"x"}`)
	got := computeDedupKey(body)
	// hex-encoded first 8 bytes -> 16 hex chars
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}

func TestJSONOrNil(t *testing.T) {
	var sol model.Solution
	if v := jsonOrNil(sol); v != nil {
		t.Fatalf("nil solution -> nil expected, got %v", v)
	}
	var score *model.ScoreVector
	if v := jsonOrNil(score); v != nil {
		t.Fatalf("nil score -> nil expected, got %v", v)
	}
	v := jsonOrNil(model.Solution{"a": model.DeviceA})
	if v != `{"a":{"freestyle3100Count":1,"freestyle9100Count":0}}` {
		t.Fatalf("unexpected encoding %v", v)
	}
}

func TestParseTimeOrNil(t *testing.T) {
	if parseTimeOrNil("") != nil || parseTimeOrNil("yesterday") != nil {
		t.Fatalf("invalid times must map to NULL")
	}
	if parseTimeOrNil("2024-05-01T10:00:00Z") == nil {
		t.Fatalf("valid time dropped")
	}
}
