package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sauna-briefing/internal/model"
)

// Window is the span of event dates a gather run is interested in.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether an event window overlaps w. Undated events are kept.
func (w Window) Contains(ev *model.EventWindow) bool {
	if ev == nil || w.Start.IsZero() || w.End.IsZero() {
		return true
	}
	return !ev.Last().Before(w.Start) && ev.Start.Before(w.End)
}

// Collector produces raw records for one source type.
type Collector interface {
	Name() string
	Collect(ctx context.Context, w Window) ([]model.RawRecord, error)
}

// Manager fans collectors out concurrently and waits for all of them.
type Manager struct {
	collectors []Collector
	Timeout    time.Duration
}

func NewManager(timeout time.Duration, cs ...Collector) *Manager {
	return &Manager{collectors: cs, Timeout: timeout}
}

// Collected is the union of every collector's output.
type Collected struct {
	Records []model.RawRecord
	Counts  map[string]int
}

type collectResult struct {
	recs []model.RawRecord
	err  error
}

// Run starts every collector under its own timeout. A collector that errors
// or times out contributes zero records; Run itself never fails. A collector
// that ignores its context is abandoned at the deadline and whatever it
// returns later is dropped.
func (m *Manager) Run(ctx context.Context, w Window) Collected {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	results := make([][]model.RawRecord, len(m.collectors))
	var wg sync.WaitGroup
	for i, c := range m.collectors {
		wg.Add(1)
		go func(i int, c Collector) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			done := make(chan collectResult, 1)
			go func() {
				recs, err := c.Collect(cctx, w)
				done <- collectResult{recs: recs, err: err}
			}()
			var res collectResult
			select {
			case res = <-done:
				if res.err == nil && cctx.Err() != nil {
					res.err = cctx.Err()
				}
			case <-cctx.Done():
				res.err = cctx.Err()
				slog.Warn("gather: collector ignored its deadline; abandoning it", "collector", c.Name())
			}
			if res.err != nil {
				slog.Warn("gather: collector failed; contributing no records", "collector", c.Name(), "err", res.err)
				return
			}
			results[i] = res.recs
			slog.Info("gather: collector done", "collector", c.Name(), "records", len(res.recs), "took", time.Since(start).Round(time.Millisecond))
		}(i, c)
	}
	wg.Wait()

	out := Collected{Counts: make(map[string]int, len(m.collectors))}
	for i, c := range m.collectors {
		out.Counts[c.Name()] += len(results[i])
		out.Records = append(out.Records, results[i]...)
	}
	return out
}
