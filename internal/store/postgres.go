package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"refillplan/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// MigrateDir applies every .sql file in dir in lexical order. The
// migrations are written to be idempotent.
func (p *Postgres) MigrateDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

const runColumns = `id, map_name, status, params, solution, score, COALESCE(game_id,''), refined, truncated, submitted, COALESCE(error,''), metrics, created_at, finished_at`

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	created := time.Now().UTC()
	if run.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, run.CreatedAt); err == nil {
			created = t
		}
	}
	run.CreatedAt = created.Format(time.RFC3339)
	params, err := json.Marshal(run.Params)
	if err != nil {
		return model.Run{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, map_name, status, params, solution, score, game_id, refined, truncated, submitted, error, metrics, created_at, finished_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		run.ID, run.MapName, run.Status, string(params), jsonOrNil(run.Solution), jsonOrNil(run.Score),
		nullIfEmpty(run.GameID), run.Refined, run.Truncated, run.Submitted, nullIfEmpty(run.Error),
		jsonOrNil(run.Metrics), created, parseTimeOrNil(run.FinishedAt))
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (p *Postgres) UpdateRun(ctx context.Context, run model.Run) error {
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, solution=$3, score=$4, game_id=$5, refined=$6, truncated=$7, submitted=$8, error=$9, metrics=$10, finished_at=$11 WHERE id=$1`,
		run.ID, run.Status, jsonOrNil(run.Solution), jsonOrNil(run.Score), nullIfEmpty(run.GameID),
		run.Refined, run.Truncated, run.Submitted, nullIfEmpty(run.Error), jsonOrNil(run.Metrics), parseTimeOrNil(run.FinishedAt))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, mapName, cursor string, limit int) ([]model.Run, string, error) {
	limit = clampLimit(limit)
	q := `SELECT ` + runColumns + ` FROM runs WHERE ($1 = '' OR map_name = $1)
        AND ($2 = '' OR seq > (SELECT seq FROM runs WHERE id = $2)) ORDER BY seq LIMIT $3`
	rows, err := p.db.QueryContext(ctx, q, mapName, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.Run, error) {
	var (
		r                           model.Run
		params, sol, score, metrics []byte
		created                     time.Time
		finished                    sql.NullTime
	)
	if err := s.Scan(&r.ID, &r.MapName, &r.Status, &params, &sol, &score, &r.GameID, &r.Refined, &r.Truncated, &r.Submitted, &r.Error, &metrics, &created, &finished); err != nil {
		return model.Run{}, err
	}
	if err := json.Unmarshal(params, &r.Params); err != nil {
		return model.Run{}, err
	}
	if len(sol) > 0 {
		if err := json.Unmarshal(sol, &r.Solution); err != nil {
			return model.Run{}, err
		}
	}
	if len(score) > 0 {
		r.Score = &model.ScoreVector{}
		if err := json.Unmarshal(score, r.Score); err != nil {
			return model.Run{}, err
		}
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &r.Metrics); err != nil {
			return model.Run{}, err
		}
	}
	r.CreatedAt = created.UTC().Format(time.RFC3339)
	if finished.Valid {
		r.FinishedAt = finished.Time.UTC().Format(time.RFC3339)
	}
	return r, nil
}

func (p *Postgres) GetOptimizerConfig(ctx context.Context, mapName string) (map[string]any, error) {
	row := p.db.QueryRowContext(ctx, `SELECT config FROM optimizer_config WHERE map_name=$1`, mapName)
	var js []byte
	if err := row.Scan(&js); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var cfg map[string]any
	if err := json.Unmarshal(js, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Postgres) SaveOptimizerConfig(ctx context.Context, mapName string, cfg map[string]any) error {
	js, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO optimizer_config (map_name, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (map_name) DO UPDATE SET config=$2, updated_at=now()`, mapName, string(js))
	return err
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,'pending',0,now(),$6)
        ON CONFLICT (event_type, url, dedup_key) DO NOTHING`, id, eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]map[string]any, string, error) {
	limit = clampLimit(limit)
	rows, err := p.db.QueryContext(ctx, `SELECT id, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url, COALESCE(response_code,0)
        FROM webhook_deliveries WHERE ($1 = '' OR status = $1)
        AND ($2 = '' OR seq > (SELECT seq FROM webhook_deliveries WHERE id = $2)) ORDER BY seq LIMIT $3`, status, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var (
			id, typ, st, lastErr, url string
			attempts, code            int
			next                      time.Time
		)
		if err := rows.Scan(&id, &typ, &st, &attempts, &next, &lastErr, &url, &code); err != nil {
			return nil, "", err
		}
		item := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url, "nextAttemptAt": next}
		if lastErr != "" {
			item["lastError"] = lastErr
		}
		if code != 0 {
			item["responseCode"] = code
		}
		out = append(out, item)
		last = id
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	if len(out) < limit {
		last = ""
	}
	return out, last, nil
}

func computeDedupKey(payload []byte) string {
	// try to parse JSON and use id
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// jsonOrNil encodes v as a JSON string, or SQL NULL for nil values.
func jsonOrNil(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case model.Solution:
		if t == nil {
			return nil
		}
	case *model.ScoreVector:
		if t == nil {
			return nil
		}
	case map[string]any:
		if t == nil {
			return nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

func parseTimeOrNil(s string) any {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return t
}
