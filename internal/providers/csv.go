package providers

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

const PlayersFile = "players.csv"

// HistoryFile is the file name for one player's past seasons.
func HistoryFile(playerID int) string {
	return fmt.Sprintf("p_%d.csv", playerID)
}

// WritePlayersCSV writes players.csv into dir and returns its path.
func WritePlayersCSV(dir string, rows [][]string) (string, error) {
	path := filepath.Join(dir, PlayersFile)
	return path, writeCSV(path, PlayersHeader, rows)
}

// CSVHistorySink returns a HistorySink writing p_<id>.csv files into dir.
func CSVHistorySink(dir string) HistorySink {
	return func(playerID int, seasons []SeasonHistory) error {
		rows := make([][]string, 0, len(seasons))
		for _, s := range seasons {
			rows = append(rows, s.row())
		}
		return writeCSV(filepath.Join(dir, HistoryFile(playerID)), HistoryHeader, rows)
	}
}

// CleanDataDir deletes every CSV in dir and reports how many were removed.
func CleanDataDir(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return 0, err
	}
	for i, m := range matches {
		if err := os.Remove(m); err != nil {
			return i, fmt.Errorf("remove %s: %w", m, err)
		}
	}
	return len(matches), nil
}

// writeCSV writes through a temp file so readers never see a partial file.
func writeCSV(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
