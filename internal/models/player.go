package models

import (
	"fmt"
	"strings"
)

// Position is one of the four outfield/goalkeeper roles a player is listed under.
type Position string

const (
	Goalkeeper Position = "GK"
	Defender   Position = "DEF"
	Midfielder Position = "MID"
	Forward    Position = "FWD"
)

// Positions lists every position in formation order.
var Positions = []Position{Goalkeeper, Defender, Midfielder, Forward}

// ParsePosition maps a source position code onto a Position.
// FPL publishes goalkeepers as "GKP".
func ParsePosition(code string) (Position, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "GKP", "GK":
		return Goalkeeper, nil
	case "DEF":
		return Defender, nil
	case "MID":
		return Midfielder, nil
	case "FWD":
		return Forward, nil
	}
	return "", fmt.Errorf("unknown position code %q", code)
}

// PositionFromElementType maps the FPL element_type id onto a Position.
func PositionFromElementType(elementType int) (Position, error) {
	if elementType < 1 || elementType > len(Positions) {
		return "", fmt.Errorf("unknown element type %d", elementType)
	}
	return Positions[elementType-1], nil
}

// Lower returns the lower-case code, used in variable and constraint names.
func (p Position) Lower() string {
	return strings.ToLower(string(p))
}

// Valid reports whether p is one of the four known positions.
func (p Position) Valid() bool {
	for _, known := range Positions {
		if p == known {
			return true
		}
	}
	return false
}

// PlayerRecord is one eligible player with everything the optimiser scores on
type PlayerRecord struct {
	ID        string             `json:"id"`
	Name      string             `json:"name,omitempty"`
	Position  Position           `json:"position"`
	Club      string             `json:"club"`
	Cost      float64            `json:"cost"`
	Available bool               `json:"available"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// Metric returns the named metric for the player.
func (p PlayerRecord) Metric(name string) (float64, bool) {
	v, ok := p.Metrics[name]
	return v, ok
}

// DisplayName falls back to the id when the source carried no name.
func (p PlayerRecord) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

func (p PlayerRecord) clone() PlayerRecord {
	metrics := make(map[string]float64, len(p.Metrics))
	for k, v := range p.Metrics {
		metrics[k] = v
	}
	p.Metrics = metrics
	return p
}
