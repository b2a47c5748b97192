package models

import (
	"crypto/md5"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// PlayerPool is the validated, read-only set of players a run optimises over.
// It is never mutated after construction, so concurrent runs may share it.
type PlayerPool struct {
	players []PlayerRecord
	index   map[string]int
	clubs   []string
	metrics []string
}

// NewPlayerPool checks the record invariants and freezes the records.
func NewPlayerPool(records []PlayerRecord) (*PlayerPool, error) {
	pool := &PlayerPool{
		players: make([]PlayerRecord, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}

	seenClubs := make(map[string]bool)
	seenMetrics := make(map[string]bool)
	for i, rec := range records {
		row := i + 1
		if rec.ID == "" {
			return nil, &ValidationError{Field: "id", Row: row, Reason: "missing player id"}
		}
		if _, dup := pool.index[rec.ID]; dup {
			return nil, &ValidationError{Field: "id", Row: row, Value: rec.ID, Reason: "duplicate player id"}
		}
		if !rec.Position.Valid() {
			return nil, &ValidationError{Field: "position", Row: row, Value: string(rec.Position), Reason: "unknown position"}
		}
		if rec.Cost < 0 || math.IsNaN(rec.Cost) || math.IsInf(rec.Cost, 0) {
			return nil, &ValidationError{Field: "cost", Row: row, Value: strconv.FormatFloat(rec.Cost, 'f', -1, 64), Reason: "cost must be a finite non-negative number"}
		}
		if rec.Club == "" {
			return nil, &ValidationError{Field: "club", Row: row, Reason: "missing club"}
		}

		frozen := rec
		frozen.Metrics = make(map[string]float64, len(rec.Metrics))
		for name, v := range rec.Metrics {
			key := NormalizeMetric(name)
			if _, dup := frozen.Metrics[key]; dup {
				return nil, &ValidationError{Field: key, Row: row, Value: rec.ID, Reason: "metric given twice with different case"}
			}
			frozen.Metrics[key] = v
		}

		pool.index[rec.ID] = len(pool.players)
		pool.players = append(pool.players, frozen)

		if !seenClubs[rec.Club] {
			seenClubs[rec.Club] = true
			pool.clubs = append(pool.clubs, rec.Club)
		}
		for name := range frozen.Metrics {
			seenMetrics[name] = true
		}
	}

	for name := range seenMetrics {
		pool.metrics = append(pool.metrics, name)
	}
	sort.Strings(pool.metrics)

	return pool, nil
}

// Len returns the number of players.
func (p *PlayerPool) Len() int {
	return len(p.players)
}

// At returns a copy of the i-th player in iteration order.
func (p *PlayerPool) At(i int) PlayerRecord {
	return p.players[i].clone()
}

// Players returns a copy of every player in iteration order.
func (p *PlayerPool) Players() []PlayerRecord {
	out := make([]PlayerRecord, len(p.players))
	for i, rec := range p.players {
		out[i] = rec.clone()
	}
	return out
}

// ByID looks a player up by id.
func (p *PlayerPool) ByID(id string) (PlayerRecord, bool) {
	i, ok := p.index[id]
	if !ok {
		return PlayerRecord{}, false
	}
	return p.players[i].clone(), true
}

// IndexOf returns the iteration index of a player id.
func (p *PlayerPool) IndexOf(id string) (int, bool) {
	i, ok := p.index[id]
	return i, ok
}

// Clubs returns distinct clubs in first-seen order.
func (p *PlayerPool) Clubs() []string {
	return append([]string(nil), p.clubs...)
}

// MetricNames returns every metric carried by at least one player, sorted.
func (p *PlayerPool) MetricNames() []string {
	return append([]string(nil), p.metrics...)
}

// NormalizeMetric is the form metric names are stored and looked up in.
func NormalizeMetric(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MetricValues resolves a metric column once. Every player must carry it.
func (p *PlayerPool) MetricValues(name string) ([]float64, error) {
	name = NormalizeMetric(name)
	if name == "" {
		return nil, &ValidationError{Field: "metric", Reason: "optimisation metric name is empty"}
	}
	values := make([]float64, len(p.players))
	for i, rec := range p.players {
		v, ok := rec.Metrics[name]
		if !ok {
			return nil, &ValidationError{Field: name, Row: i + 1, Value: rec.ID, Reason: "metric column missing for player"}
		}
		values[i] = v
	}
	return values, nil
}

// AvailableCount returns the number of available players per position.
func (p *PlayerPool) AvailableCount() map[Position]int {
	counts := make(map[Position]int, len(Positions))
	for _, rec := range p.players {
		if rec.Available {
			counts[rec.Position]++
		}
	}
	return counts
}

// WithAvailability returns a new pool with availability overridden for the
// given ids. Ids that are not in the pool are returned as unknown.
func (p *PlayerPool) WithAvailability(overrides map[string]bool) (*PlayerPool, []string) {
	next := &PlayerPool{
		players: make([]PlayerRecord, len(p.players)),
		index:   p.index,
		clubs:   p.clubs,
		metrics: p.metrics,
	}
	for i, rec := range p.players {
		next.players[i] = rec.clone()
	}

	var unknown []string
	for id, available := range overrides {
		i, ok := p.index[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		next.players[i].Available = available
	}
	sort.Strings(unknown)
	return next, unknown
}

// Fingerprint identifies the pool contents, used as part of cache keys.
func (p *PlayerPool) Fingerprint() string {
	h := md5.New()
	for _, rec := range p.players {
		fmt.Fprintf(h, "%s|%s|%s|%g|%t", rec.ID, rec.Position, rec.Club, rec.Cost, rec.Available)
		for _, name := range p.metrics {
			if v, ok := rec.Metrics[name]; ok {
				fmt.Fprintf(h, "|%s=%g", name, v)
			}
		}
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
