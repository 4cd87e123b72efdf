package recorder

import (
	"context"
	"encoding/csv"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"bvstrack/internal/position"
)

// Sink receives every fix as it is recorded.
type Sink interface {
	Record(fix position.ResolvedFix) error
}

// Recorder drains a fix sequence into a CSV track file and any extra sinks,
// optionally pacing one fix per interval.
type Recorder struct {
	file     *os.File
	writer   *csv.Writer
	interval time.Duration
	sinks    []Sink
	log      *slog.Logger
}

// NewRecorder creates filename (and its directory). An empty filename records
// to the sinks only.
func NewRecorder(filename string, interval time.Duration, log *slog.Logger, sinks ...Sink) (*Recorder, error) {
	r := &Recorder{
		interval: interval,
		sinks:    sinks,
		log:      log,
	}
	if filename == "" {
		return r, nil
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create track dir: %w", err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create track file: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"time", "longitude", "latitude"}); err != nil {
		file.Close()
		return nil, fmt.Errorf("write track header: %w", err)
	}
	writer.Flush()

	r.file = file
	r.writer = writer
	return r, nil
}

// Run records fixes until the sequence ends or ctx is cancelled and returns
// what was recorded.
func (r *Recorder) Run(ctx context.Context, fixes iter.Seq[position.ResolvedFix]) (position.Track, error) {
	var ticker *time.Ticker
	if r.interval > 0 {
		ticker = time.NewTicker(r.interval)
		defer ticker.Stop()
	}

	var track position.Track
	for fix := range fixes {
		if err := ctx.Err(); err != nil {
			return track, err
		}
		if err := r.write(fix); err != nil {
			return track, err
		}
		track = append(track, fix)

		for _, s := range r.sinks {
			if err := s.Record(fix); err != nil {
				r.log.Error("sink failed", slog.String("time", fix.Time), slog.Any("error", err))
			}
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return track, ctx.Err()
			case <-ticker.C:
			}
		}
	}
	return track, nil
}

func (r *Recorder) write(fix position.ResolvedFix) error {
	if r.writer == nil {
		return nil
	}
	record := []string{
		fix.Time,
		strconv.FormatFloat(fix.Position.Longitude, 'f', 6, 64),
		strconv.FormatFloat(fix.Position.Latitude, 'f', 6, 64),
	}
	if err := r.writer.Write(record); err != nil {
		return fmt.Errorf("write track record: %w", err)
	}
	r.writer.Flush()
	return r.writer.Error()
}

func (r *Recorder) Close() error {
	if r.file == nil {
		return nil
	}
	r.writer.Flush()
	return r.file.Close()
}
