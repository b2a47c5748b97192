package models

// Roster is the outcome of one optimisation run.
type Roster struct {
	Status       string         `json:"status"`
	Feasible     bool           `json:"feasible"`
	Metric       string         `json:"metric"`
	Players      []PlayerRecord `json:"players"`
	TotalCost    float64        `json:"total_cost"`
	TotalMetric  float64        `json:"total_metric"`
	BenchReserve float64        `json:"bench_reserve"`
}

// CountByPosition counts the roster players per position.
func (r *Roster) CountByPosition() map[Position]int {
	counts := make(map[Position]int, len(Positions))
	for _, p := range r.Players {
		counts[p.Position]++
	}
	return counts
}

// CountByClub counts the roster players per club.
func (r *Roster) CountByClub() map[string]int {
	counts := make(map[string]int)
	for _, p := range r.Players {
		counts[p.Club]++
	}
	return counts
}
