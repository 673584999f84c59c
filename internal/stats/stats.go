package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// StatsUpdater maintains server counters in an expvar map. Deltas are
// applied by a single goroutine, so callers never contend on the map.
type StatsUpdater struct {
	vars   *expvar.Map
	deltas chan statDelta
}

type statDelta struct {
	name  string
	value int64
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		vars:   expvar.NewMap("messenger-stats"),
		deltas: make(chan statDelta, 512),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return int64(time.Since(startTime).Seconds())
	}))

	return su
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	data := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		data[kv.Key] = value
	})

	json.NewEncoder(w).Encode(data)
}

// RegisterMetric seeds a counter at zero so it appears in /debug/vars
// before the first update.
func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Incr(name string) {
	su.deltas <- statDelta{name: name, value: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.deltas <- statDelta{name: name, value: -1}
}

func (su *StatsUpdater) Run() {
	go func() {
		// Map.Add creates the counter if it was never registered
		for d := range su.deltas {
			su.vars.Add(d.name, d.value)
		}
	}()
}

func (su *StatsUpdater) Stop() {
	close(su.deltas)
}
