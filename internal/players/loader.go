// Package players loads tabular player data into a validated PlayerPool.
package players

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/stitts-dev/ff-epl/internal/models"
)

// LoadOptions control how rows become PlayerRecords.
type LoadOptions struct {
	// Metric, when set, must be a numeric column present for every row.
	Metric string
	// NowCostDivisor converts FPL now_cost (tenths) to budget units.
	NowCostDivisor float64
	// DefaultAvailable is used when a row carries no availability signal.
	// Treating missing data as "available" is a policy, so it is explicit.
	DefaultAvailable bool
}

// DefaultLoadOptions matches the FPL export: tenths for now_cost and every
// player available unless the data says otherwise.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{NowCostDivisor: 10, DefaultAvailable: true}
}

var (
	idColumns       = []string{"id"}
	positionColumns = []string{"position", "pos"}
	clubColumns     = []string{"club", "team", "short_name"}
	costColumns     = []string{"cost", "now_cost"}
	nameColumns     = []string{"web_name", "player_name"}
)

// reserved columns never become metrics
var reserved = map[string]bool{
	"id": true, "position": true, "pos": true, "club": true, "team": true, "short_name": true,
	"club_name": true, "cost": true, "now_cost": true, "web_name": true, "player_name": true,
	"first_name": true, "second_name": true, "name": true, "available": true, "injured": true,
	"status": true, "element_type": true, "team_code": true,
}

// LoadFile opens path and calls Load.
func LoadFile(path string, opts LoadOptions) (*models.PlayerPool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open players file: %w", err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Load reads a CSV with a header row.
func Load(r io.Reader, opts LoadOptions) (*models.PlayerPool, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &models.ValidationError{Reason: fmt.Sprintf("malformed csv: %v", err)}
	}
	if len(records) == 0 {
		return nil, &models.ValidationError{Reason: "csv has no header row"}
	}
	return FromRows(records[0], records[1:], opts)
}

type layout struct {
	header  []string
	index   map[string]int
	metrics []int
}

func (l *layout) find(names []string) (int, string) {
	for _, n := range names {
		if i, ok := l.index[n]; ok {
			return i, n
		}
	}
	return -1, ""
}

// FromRows converts already tabular data. Rows are 1-based in errors.
func FromRows(header []string, rows [][]string, opts LoadOptions) (*models.PlayerPool, error) {
	if opts.NowCostDivisor <= 0 {
		opts.NowCostDivisor = 10
	}
	opts.Metric = models.NormalizeMetric(opts.Metric)

	l := &layout{header: make([]string, len(header)), index: make(map[string]int, len(header))}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if _, dup := l.index[name]; dup {
			return nil, &models.ValidationError{Field: name, Reason: "duplicate column"}
		}
		l.header[i] = name
		l.index[name] = i
	}

	if len(rows) == 0 {
		return nil, &models.ValidationError{Field: "players", Reason: "no player rows"}
	}

	posCol, _ := l.find(positionColumns)
	if posCol < 0 {
		return nil, &models.ValidationError{Field: "position", Reason: "required column missing"}
	}
	clubCol, _ := l.find(clubColumns)
	if clubCol < 0 {
		return nil, &models.ValidationError{Field: "club", Reason: "required column missing"}
	}
	costCol, costName := l.find(costColumns)
	if costCol < 0 {
		return nil, &models.ValidationError{Field: "cost", Reason: "required column missing"}
	}
	if opts.Metric != "" {
		if _, ok := l.index[opts.Metric]; !ok {
			return nil, &models.ValidationError{Field: opts.Metric, Reason: "metric column missing"}
		}
	}

	for i, name := range l.header {
		if reserved[name] {
			continue
		}
		if numericColumn(rows, i) {
			l.metrics = append(l.metrics, i)
		} else if name == opts.Metric {
			row, value := firstNonNumeric(rows, i)
			return nil, &models.ValidationError{Field: name, Row: row, Value: value, Reason: "metric is not numeric"}
		}
	}

	idCol, _ := l.find(idColumns)
	records := make([]models.PlayerRecord, 0, len(rows))
	for n, row := range rows {
		rowNum := n + 1
		if len(row) != len(header) {
			return nil, &models.ValidationError{Row: rowNum, Reason: fmt.Sprintf("expected %d columns, got %d", len(header), len(row))}
		}

		rec := models.PlayerRecord{
			ID:      strconv.Itoa(rowNum),
			Club:    strings.TrimSpace(row[clubCol]),
			Metrics: make(map[string]float64, len(l.metrics)),
		}
		if idCol >= 0 && strings.TrimSpace(row[idCol]) != "" {
			rec.ID = strings.TrimSpace(row[idCol])
		}

		pos, err := models.ParsePosition(row[posCol])
		if err != nil {
			return nil, &models.ValidationError{Field: "position", Row: rowNum, Value: row[posCol], Reason: "unknown position code"}
		}
		rec.Position = pos

		cost, err := strconv.ParseFloat(strings.TrimSpace(row[costCol]), 64)
		if err != nil {
			return nil, &models.ValidationError{Field: costName, Row: rowNum, Value: row[costCol], Reason: "cost is not numeric"}
		}
		if costName == "now_cost" {
			cost /= opts.NowCostDivisor
		}
		rec.Cost = cost

		available, err := l.availability(row, opts.DefaultAvailable)
		if err != nil {
			return nil, &models.ValidationError{Field: "available", Row: rowNum, Value: err.Error(), Reason: "unrecognised availability value"}
		}
		rec.Available = available
		rec.Name = l.playerName(row)

		for _, i := range l.metrics {
			v, _ := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			rec.Metrics[l.header[i]] = v
		}
		records = append(records, rec)
	}

	return models.NewPlayerPool(records)
}

// availability reads "available" first, then "injured", then the FPL
// "status" flag. A blank cell or a missing column falls back to def.
func (l *layout) availability(row []string, def bool) (bool, error) {
	if i, ok := l.index["available"]; ok {
		if v := strings.TrimSpace(row[i]); v != "" {
			b, ok := parseBool(v)
			if !ok {
				return false, fmt.Errorf("%s", v)
			}
			return b, nil
		}
	}
	if i, ok := l.index["injured"]; ok {
		if v := strings.TrimSpace(row[i]); v != "" {
			b, ok := parseBool(v)
			if !ok {
				return false, fmt.Errorf("%s", v)
			}
			return !b, nil
		}
	}
	if i, ok := l.index["status"]; ok {
		switch strings.ToLower(strings.TrimSpace(row[i])) {
		case "":
		case "a", "d":
			return true, nil
		case "i", "s", "u", "n":
			return false, nil
		default:
			return false, fmt.Errorf("%s", row[i])
		}
	}
	return def, nil
}

func (l *layout) playerName(row []string) string {
	if i, _ := l.find(nameColumns); i >= 0 && strings.TrimSpace(row[i]) != "" {
		return strings.TrimSpace(row[i])
	}
	var parts []string
	for _, col := range []string{"first_name", "second_name"} {
		if i, ok := l.index[col]; ok && strings.TrimSpace(row[i]) != "" {
			parts = append(parts, strings.TrimSpace(row[i]))
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	// "name" is the team name in FPL exports, so only trust it when a
	// separate club column exists.
	if i, ok := l.index["name"]; ok {
		if _, hasClub := l.index["club"]; hasClub {
			return strings.TrimSpace(row[i])
		}
	}
	return ""
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes", "y":
		return true, true
	case "0", "false", "f", "no", "n":
		return false, true
	}
	return false, false
}

func numericColumn(rows [][]string, col int) bool {
	if len(rows) == 0 {
		return false
	}
	row, _ := firstNonNumeric(rows, col)
	return row == 0
}

// firstNonNumeric returns the 1-based row and value of the first cell in col
// that does not parse as a number, or 0 when every cell does.
func firstNonNumeric(rows [][]string, col int) (int, string) {
	for n, row := range rows {
		if col >= len(row) {
			return n + 1, ""
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64); err != nil {
			return n + 1, row[col]
		}
	}
	return 0, ""
}

// ApplyAvailability overlays explicit availability onto pool. IDs absent
// from the pool are returned, not treated as errors.
func ApplyAvailability(pool *models.PlayerPool, overrides map[string]bool) (*models.PlayerPool, []string) {
	return pool.WithAvailability(overrides)
}
