package opt

import "sync"

// MetricsPerMap bounds how many runs are remembered for each map.
const MetricsPerMap = 50

type mapMetrics struct {
	order []string // run ids, oldest first
	byRun map[string]Metrics
}

var (
	mu    sync.Mutex
	store = map[string]*mapMetrics{}
)

// RecordMetrics keeps the latest metrics for a run of mapName. Once a map
// holds MetricsPerMap runs the oldest one is forgotten.
func RecordMetrics(mapName, runID string, m Metrics) {
	mu.Lock()
	defer mu.Unlock()
	mm := store[mapName]
	if mm == nil {
		mm = &mapMetrics{byRun: map[string]Metrics{}}
		store[mapName] = mm
	}
	if _, ok := mm.byRun[runID]; !ok {
		mm.order = append(mm.order, runID)
	}
	mm.byRun[runID] = m
	for len(mm.order) > MetricsPerMap {
		delete(mm.byRun, mm.order[0])
		mm.order = mm.order[1:]
	}
}

// GetMetrics returns the recorded metrics of the remembered runs of
// mapName, keyed by run id.
func GetMetrics(mapName string) map[string]Metrics {
	mu.Lock()
	defer mu.Unlock()
	out := map[string]Metrics{}
	if mm := store[mapName]; mm != nil {
		for id, m := range mm.byRun {
			out[id] = m
		}
	}
	return out
}
