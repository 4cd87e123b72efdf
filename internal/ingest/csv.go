package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"bvstrack/internal/geo"
	"bvstrack/internal/position"
)

// Columns lists the header fields every input file must carry.
var Columns = []string{"time", "lon1", "lat1", "r1", "lon2", "lat2", "r2"}

var (
	ErrMissingColumns = errors.New("missing columns")
	ErrNoRows         = errors.New("no data rows")
)

// Options tune the CSV reader.
type Options struct {
	// Delimiter separates fields. Zero means ';'.
	Delimiter rune
	Log       *slog.Logger
}

// Dataset is a decoded input file.
type Dataset struct {
	Anchors position.AnchorPair
	Samples []position.RangeSample
	// AnchorDrift lists the 1-based data rows whose anchor coordinates differ
	// from the first row. They are still located against the first-row anchors.
	AnchorDrift []int
}

// ReadFile opens path and decodes it with ReadCSV.
func ReadFile(path string, opts Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("input file %q not found: %w", path, err)
		}
		return nil, fmt.Errorf("open input %q: %w", path, err)
	}
	defer f.Close()

	ds, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return ds, nil
}

// ReadCSV decodes every row of r before returning, so a malformed field fails
// the whole run up front.
func ReadCSV(r io.Reader, opts Options) (*Dataset, error) {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cr := csv.NewReader(r)
	cr.Comma = ';'
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input: %w", ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var (
		ds    Dataset
		first row
	)
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		rw, err := parseRow(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}

		if n == 1 {
			first = rw
			ds.Anchors, err = position.NewAnchorPair(rw.p1, rw.p2)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", n, err)
			}
		} else if rw.p1 != first.p1 || rw.p2 != first.p2 {
			ds.AnchorDrift = append(ds.AnchorDrift, n)
			log.Warn("anchor coordinates differ from first row, using first row",
				slog.Int("row", n),
				slog.String("p1", rw.p1.String()),
				slog.String("p2", rw.p2.String()),
			)
		}
		ds.Samples = append(ds.Samples, rw.sample)
	}

	if len(ds.Samples) == 0 {
		return nil, ErrNoRows
	}
	log.Info("input loaded",
		slog.Int("rows", len(ds.Samples)),
		slog.String("p1", ds.Anchors.P1().String()),
		slog.String("p2", ds.Anchors.P2().String()),
		slog.Float64("d", ds.Anchors.Separation()),
	)
	return &ds, nil
}

type row struct {
	p1, p2 geo.GeoPoint
	sample position.RangeSample
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var missing []string
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w %v: need %v, found %v", ErrMissingColumns, missing, Columns, header)
	}
	return idx, nil
}

func parseRow(rec []string, idx map[string]int) (row, error) {
	field := func(name string) (string, error) {
		i := idx[name]
		if i >= len(rec) {
			return "", fmt.Errorf("column %q missing", name)
		}
		return strings.TrimSpace(rec[i]), nil
	}
	num := func(name string) (float64, error) {
		s, err := field(name)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("column %q: %w", name, err)
		}
		return v, nil
	}

	var (
		vals = make(map[string]float64, len(Columns)-1)
		err  error
	)
	for _, c := range Columns[1:] {
		if vals[c], err = num(c); err != nil {
			return row{}, err
		}
	}
	ts, err := field("time")
	if err != nil {
		return row{}, err
	}

	return row{
		p1: geo.Point(vals["lon1"], vals["lat1"]),
		p2: geo.Point(vals["lon2"], vals["lat2"]),
		sample: position.RangeSample{
			Time: ts,
			R1:   vals["r1"],
			R2:   vals["r2"],
		},
	}, nil
}
