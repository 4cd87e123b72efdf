package mosquitto

import (
	"encoding/json"
	"fmt"

	"bvstrack/internal/position"
)

// FixMsg is the JSON payload published for every fix.
type FixMsg struct {
	RunID     string  `json:"run_id,omitempty"`
	Time      string  `json:"time"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func EncodeFix(runID string, fix position.ResolvedFix) ([]byte, error) {
	b, err := json.Marshal(FixMsg{
		RunID:     runID,
		Time:      fix.Time,
		Latitude:  fix.Position.Latitude,
		Longitude: fix.Position.Longitude,
	})
	if err != nil {
		return nil, fmt.Errorf("encode fix %s: %w", fix.Time, err)
	}
	return b, nil
}
