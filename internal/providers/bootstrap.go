package providers

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stitts-dev/ff-epl/internal/models"
)

// BootstrapStatic is the subset of bootstrap-static the optimiser reads.
type BootstrapStatic struct {
	Elements     []Element     `json:"elements"`
	Teams        []Team        `json:"teams"`
	ElementTypes []ElementType `json:"element_types"`
}

type Element struct {
	ID                       int    `json:"id"`
	FirstName                string `json:"first_name"`
	SecondName               string `json:"second_name"`
	WebName                  string `json:"web_name"`
	TeamCode                 int    `json:"team_code"`
	ElementType              int    `json:"element_type"`
	NowCost                  int    `json:"now_cost"`
	Status                   string `json:"status"`
	ChanceOfPlayingNextRound *int   `json:"chance_of_playing_next_round"`
	TotalPoints              int    `json:"total_points"`
	Minutes                  int    `json:"minutes"`
	GoalsScored              int    `json:"goals_scored"`
	Assists                  int    `json:"assists"`
	CleanSheets              int    `json:"clean_sheets"`
	Bonus                    int    `json:"bonus"`
	PointsPerGame            string `json:"points_per_game"`
	Form                     string `json:"form"`
	ICTIndex                 string `json:"ict_index"`
	SelectedByPercent        string `json:"selected_by_percent"`
}

type Team struct {
	ID        int    `json:"id"`
	Code      int    `json:"code"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

type ElementType struct {
	ID                int    `json:"id"`
	SingularNameShort string `json:"singular_name_short"`
}

// ElementSummary is the element-summary payload; only past seasons are kept.
type ElementSummary struct {
	HistoryPast []SeasonHistory `json:"history_past"`
}

// SeasonHistory is one completed season for a player.
type SeasonHistory struct {
	SeasonName      string `json:"season_name"`
	ElementCode     int    `json:"element_code"`
	StartCost       int    `json:"start_cost"`
	EndCost         int    `json:"end_cost"`
	TotalPoints     int    `json:"total_points"`
	Minutes         int    `json:"minutes"`
	GoalsScored     int    `json:"goals_scored"`
	Assists         int    `json:"assists"`
	CleanSheets     int    `json:"clean_sheets"`
	GoalsConceded   int    `json:"goals_conceded"`
	OwnGoals        int    `json:"own_goals"`
	PenaltiesSaved  int    `json:"penalties_saved"`
	PenaltiesMissed int    `json:"penalties_missed"`
	YellowCards     int    `json:"yellow_cards"`
	RedCards        int    `json:"red_cards"`
	Saves           int    `json:"saves"`
	Bonus           int    `json:"bonus"`
	BPS             int    `json:"bps"`
	Influence       string `json:"influence"`
	Creativity      string `json:"creativity"`
	Threat          string `json:"threat"`
	ICTIndex        string `json:"ict_index"`
}

// PlayersHeader is the column layout of players.csv.
var PlayersHeader = []string{
	"id", "first_name", "second_name", "web_name", "now_cost", "name", "short_name",
	"position", "status", "total_points", "points_per_game", "form", "minutes",
	"goals_scored", "assists", "clean_sheets", "bonus", "ict_index", "selected_by_percent",
}

// doubtfulThreshold is the minimum chance of playing for a doubtful player to
// count as available.
const doubtfulThreshold = 50

// IsAvailable maps the FPL status flag onto availability. "a" is available;
// "d" (doubtful) is available when the published chance of playing is at
// least 50% or unknown. Injured, suspended and departed players are not.
func (e Element) IsAvailable() bool {
	switch e.Status {
	case "a", "":
		return true
	case "d":
		return e.ChanceOfPlayingNextRound == nil || *e.ChanceOfPlayingNextRound >= doubtfulThreshold
	}
	return false
}

// PlayerRows joins elements to teams on team_code and to positions on
// element_type, one row per element in PlayersHeader order. Rows are sorted
// by player id so the file is stable across fetches.
func (b *BootstrapStatic) PlayerRows() ([][]string, error) {
	teams := make(map[int]Team, len(b.Teams))
	for _, t := range b.Teams {
		teams[t.Code] = t
	}
	positions := make(map[int]string, len(b.ElementTypes))
	for _, et := range b.ElementTypes {
		positions[et.ID] = et.SingularNameShort
	}

	elements := make([]Element, len(b.Elements))
	copy(elements, b.Elements)
	sort.SliceStable(elements, func(i, j int) bool { return elements[i].ID < elements[j].ID })

	rows := make([][]string, 0, len(elements))
	for _, e := range elements {
		team, ok := teams[e.TeamCode]
		if !ok {
			return nil, fmt.Errorf("player %d: unknown team code %d", e.ID, e.TeamCode)
		}
		position, ok := positions[e.ElementType]
		if !ok {
			pos, err := models.PositionFromElementType(e.ElementType)
			if err != nil {
				return nil, fmt.Errorf("player %d: %w", e.ID, err)
			}
			position = string(pos)
		}

		rows = append(rows, []string{
			strconv.Itoa(e.ID),
			e.FirstName,
			e.SecondName,
			e.WebName,
			strconv.Itoa(e.NowCost),
			team.Name,
			team.ShortName,
			position,
			e.Status,
			strconv.Itoa(e.TotalPoints),
			numeric(e.PointsPerGame),
			numeric(e.Form),
			strconv.Itoa(e.Minutes),
			strconv.Itoa(e.GoalsScored),
			strconv.Itoa(e.Assists),
			strconv.Itoa(e.CleanSheets),
			strconv.Itoa(e.Bonus),
			numeric(e.ICTIndex),
			numeric(e.SelectedByPercent),
		})
	}
	return rows, nil
}

// Availability returns live availability keyed by player id.
func (b *BootstrapStatic) Availability() map[string]bool {
	out := make(map[string]bool, len(b.Elements))
	for _, e := range b.Elements {
		out[strconv.Itoa(e.ID)] = e.IsAvailable()
	}
	return out
}

// PlayerIDs returns every element id in ascending order.
func (b *BootstrapStatic) PlayerIDs() []int {
	ids := make([]int, 0, len(b.Elements))
	for _, e := range b.Elements {
		ids = append(ids, e.ID)
	}
	sort.Ints(ids)
	return ids
}

// numeric keeps decimal strings from the API loadable as metrics; blanks
// become zero.
func numeric(s string) string {
	s = strings.TrimSpace(s)
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return "0"
	}
	return s
}

// HistoryHeader is the column layout of p_<id>.csv.
var HistoryHeader = []string{
	"season_name", "element_code", "start_cost", "end_cost", "total_points", "minutes",
	"goals_scored", "assists", "clean_sheets", "goals_conceded", "own_goals",
	"penalties_saved", "penalties_missed", "yellow_cards", "red_cards", "saves",
	"bonus", "bps", "influence", "creativity", "threat", "ict_index",
}

func (h SeasonHistory) row() []string {
	return []string{
		h.SeasonName,
		strconv.Itoa(h.ElementCode),
		strconv.Itoa(h.StartCost),
		strconv.Itoa(h.EndCost),
		strconv.Itoa(h.TotalPoints),
		strconv.Itoa(h.Minutes),
		strconv.Itoa(h.GoalsScored),
		strconv.Itoa(h.Assists),
		strconv.Itoa(h.CleanSheets),
		strconv.Itoa(h.GoalsConceded),
		strconv.Itoa(h.OwnGoals),
		strconv.Itoa(h.PenaltiesSaved),
		strconv.Itoa(h.PenaltiesMissed),
		strconv.Itoa(h.YellowCards),
		strconv.Itoa(h.RedCards),
		strconv.Itoa(h.Saves),
		strconv.Itoa(h.Bonus),
		strconv.Itoa(h.BPS),
		h.Influence,
		h.Creativity,
		h.Threat,
		h.ICTIndex,
	}
}
