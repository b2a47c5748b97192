package models

import (
	"time"

	"gorm.io/datatypes"
)

// OptimisationRun is the persisted summary of one build -> solve -> extract run.
type OptimisationRun struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	Metric          string         `gorm:"not null;index" json:"metric"`
	Solver          string         `gorm:"not null" json:"solver"`
	Status          string         `gorm:"not null;index" json:"status"`
	Feasible        bool           `gorm:"not null" json:"feasible"`
	TotalCost       float64        `json:"total_cost"`
	TotalMetric     float64        `json:"total_metric"`
	BenchReserve    float64        `json:"bench_reserve"`
	PoolSize        int            `json:"pool_size"`
	PoolFingerprint string         `gorm:"size:32;index" json:"pool_fingerprint"`
	NodesExplored   int            `json:"nodes_explored"`
	DurationMs      int64          `json:"duration_ms"`
	Players         datatypes.JSON `json:"players"`
	Rules           datatypes.JSON `json:"rules"`
	CreatedAt       time.Time      `json:"created_at"`
}

// TableName specifies the table name for GORM
func (OptimisationRun) TableName() string {
	return "optimisation_runs"
}
