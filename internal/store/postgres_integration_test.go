//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"

	"refillplan/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	ctx := context.Background()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if err := p.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir: %v", err)
	}
	run, err := p.CreateRun(ctx, model.Run{MapName: "it", Status: "running"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	got, err := p.GetRun(ctx, run.ID)
	if err != nil || got.MapName != "it" {
		t.Fatalf("GetRun: %v %+v", err, got)
	}
}
