package mapdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refillplan/internal/config"
	"refillplan/internal/model"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
	c.ttls[key] = ttl
	return nil
}

const mapJSON = `{"mapName":"uppsala","border":{"latitudeMin":59.8},"locations":{
 "loc1":{"locationName":"loc1","locationType":"Grocery-store","latitude":59.85,"longitude":17.63,"footfall":12.5,"footfallScale":3,"salesVolume":140},
 "loc2":{"latitude":59.86,"longitude":17.64,"salesVolume":70}}}`

func gameServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.Header.Get("x-api-key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/game/getmapdata":
			if r.URL.Query().Get("mapName") != "uppsala" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(mapJSON))
		case "/api/game/getgeneralgamedata":
			_, _ = w.Write([]byte(`{"co2PricePerKiloInSek":2,"willingnessToTravelInMeters":250,"freestyle3100Data":{"refillCapacityPerWeek":70}}`))
		case "/api/game/submit":
			var body model.SubmitSolution
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(model.ScoredSolution{GameID: "g-1", MapName: r.URL.Query().Get("mapName"), GameScore: model.ScoreVector{Total: float64(len(body.Locations))}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestClientMapDataUsesCache(t *testing.T) {
	var hits int32
	srv := gameServer(t, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, "key", 1000, 10)
	c.Cache = newMemCache()
	c.TTL = time.Minute

	md, err := c.MapData(context.Background(), "uppsala")
	require.NoError(t, err)
	assert.Equal(t, "uppsala", md.MapName)
	require.Len(t, md.Locations, 2)
	assert.Equal(t, 12.5, md.Locations["loc1"].Footfall)
	assert.Equal(t, "loc2", md.Locations["loc2"].Name, "missing names fall back to the key")

	_, err = c.MapData(context.Background(), "uppsala")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, time.Minute, c.Cache.(*memCache).ttls["map:uppsala"])
}

func TestClientGeneralData(t *testing.T) {
	var hits int32
	srv := gameServer(t, &hits)
	defer srv.Close()

	gd, err := NewClient(srv.URL, "key", 1000, 10).GeneralData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250.0, gd.WillingnessToTravelInMeters)
	assert.Equal(t, 70.0, gd.Freestyle3100Data.RefillCapacityPerWeek)
}

func TestClientErrors(t *testing.T) {
	var hits int32
	srv := gameServer(t, &hits)
	defer srv.Close()

	_, err := NewClient(srv.URL, "key", 1000, 10).MapData(context.Background(), "atlantis")
	assert.ErrorIs(t, err, ErrMapNotFound)

	_, err = NewClient(srv.URL, "wrong", 1000, 10).GeneralData(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClientRateLimiterHonoursContext(t *testing.T) {
	var hits int32
	srv := gameServer(t, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, "key", 0.001, 1)
	_, err := c.GeneralData(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.GeneralData(ctx)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClientSubmit(t *testing.T) {
	var hits int32
	srv := gameServer(t, &hits)
	defer srv.Close()

	sol := model.Solution{"loc1": model.DeviceA, "loc2": model.DeviceB}
	got, err := NewClient(srv.URL, "key", 1000, 10).Submit(context.Background(), "uppsala", sol)
	require.NoError(t, err)
	assert.Equal(t, "g-1", got.GameID)
	assert.Equal(t, 2.0, got.GameScore.Total)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uppsala.json"), []byte(mapJSON), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "general.json"), []byte(`{"refillSalesFactor":0.5}`), 0o600))

	fs := FileSource{Dir: dir}
	md, err := fs.MapData(context.Background(), "uppsala")
	require.NoError(t, err)
	assert.Len(t, md.Locations, 2)

	gd, err := fs.GeneralData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.5, gd.RefillSalesFactor)

	_, err = fs.MapData(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrMapNotFound)
	_, err = fs.MapData(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrMapNotFound)
}

func TestFromConfig(t *testing.T) {
	_, _, err := FromConfig(config.Game{}, config.Redis{}, nil)
	require.Error(t, err)

	src, sub, err := FromConfig(config.Game{DataDir: t.TempDir()}, config.Redis{}, nil)
	require.NoError(t, err)
	assert.IsType(t, FileSource{}, src)
	assert.Nil(t, sub)

	src, sub, err = FromConfig(config.Game{APIURL: "http://game.invalid/", RateRPS: 1, RateBurst: 1, Timeout: time.Second}, config.Redis{}, nil)
	require.NoError(t, err)
	c, ok := src.(*Client)
	require.True(t, ok)
	assert.Equal(t, "http://game.invalid", c.BaseURL)
	assert.Equal(t, time.Second, c.HTTP.Timeout)
	assert.NotNil(t, sub)
}
