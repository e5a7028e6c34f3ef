package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/example/podium/internal/ports/secondary"
)

func init() {
	Register("replay", NewReplay)
}

// Replay is the adapter that reads standings from local JSON snapshot
// files, one per contest key. It backs dry runs, diagnostics and tests;
// network adapters follow the same contract out of tree.
type Replay struct {
	dir string
}

// NewReplay builds a replay adapter. Settings require "dir", the snapshot
// directory.
func NewReplay(settings map[string]any) (secondary.SourceAdapter, error) {
	dir, _ := settings["dir"].(string)
	if dir == "" {
		return nil, errors.New("replay adapter requires a dir setting")
	}
	return &Replay{dir: dir}, nil
}

// snapshot is the on-disk shape of one standings file.
type snapshot struct {
	Rows map[string]struct {
		Place       string         `json:"place"`
		Solving     float64        `json:"solving"`
		Addition    map[string]any `json:"addition"`
		SkipInStats bool           `json:"skip_in_stats"`
		Account     struct {
			Name    *string `json:"name"`
			Country *string `json:"country"`
			Rating  *int64  `json:"rating"`
		} `json:"account"`
	} `json:"rows"`
	Problems         []map[string]any `json:"problems"`
	HasHiddenResults bool             `json:"has_hidden_results"`
	URL              string           `json:"url"`
	Action           string           `json:"action"`
	Invisible        bool             `json:"invisible"`
}

// FetchStandings reads the snapshot for the contest key. A missing file
// means the standings are not published yet (transient); a malformed file
// is a structural failure.
func (r *Replay) FetchStandings(ctx context.Context, contest *secondary.ContestRecord, known map[string]*secondary.StatisticsRecord) (*secondary.StandingsResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &secondary.TransientError{Err: err}
	}

	path := filepath.Join(r.dir, contest.Key+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &secondary.TransientError{Err: fmt.Errorf("snapshot %s not published yet", path)}
	}
	if err != nil {
		return nil, &secondary.TransientError{Err: err}
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &secondary.StructuralError{Err: fmt.Errorf("snapshot %s: %w", path, err)}
	}

	result := &secondary.StandingsResult{
		Problems:         snap.Problems,
		HasHiddenResults: snap.HasHiddenResults,
		URL:              snap.URL,
		Action:           secondary.Action(snap.Action),
		Invisible:        snap.Invisible,
	}
	if len(snap.Rows) > 0 {
		result.Rows = make(map[string]secondary.StandingsRow, len(snap.Rows))
		for key, row := range snap.Rows {
			result.Rows[key] = secondary.StandingsRow{
				Place:       row.Place,
				Solving:     row.Solving,
				Addition:    row.Addition,
				SkipInStats: row.SkipInStats,
				Account: secondary.AccountDelta{
					Name:    row.Account.Name,
					Country: row.Account.Country,
					Rating:  row.Account.Rating,
				},
			}
		}
	}
	return result, nil
}
