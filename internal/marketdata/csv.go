package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"backtester/internal/domain"
)

// Compile-time interface check.
var _ Source = (*CSVSource)(nil)

// CSVSource reads daily bars from CSV files in the Yahoo Finance export
// layout: Date,Open,High,Low,Close[,Adj Close],Volume. Path is either a
// directory holding one <SYMBOL>.csv per symbol or a single file used for
// every symbol.
type CSVSource struct {
	Path string
}

// NewCSVSource creates a CSVSource reading from path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// Name returns "csv".
func (s *CSVSource) Name() string { return "csv" }

// Bars reads the file for symbol and keeps the rows within [start, end].
func (s *CSVSource) Bars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	path, err := s.file(symbol)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", domain.ErrData, path, err)
	}
	defer f.Close()

	all, err := ReadCSV(f, strings.ToUpper(symbol))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var bars []domain.Bar
	for _, b := range all {
		if !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			bars = append(bars, b)
		}
	}
	return normalize(symbol, bars)
}

func (s *CSVSource) file(symbol string) (string, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return "", fmt.Errorf("%w: csv path %s: %v", domain.ErrData, s.Path, err)
	}
	if !info.IsDir() {
		return s.Path, nil
	}
	for _, name := range []string{strings.ToUpper(symbol), strings.ToLower(symbol), symbol} {
		p := filepath.Join(s.Path, name+".csv")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w for symbol %s in %s", domain.ErrNoData, strings.ToUpper(symbol), s.Path)
}

// ReadCSV parses a Yahoo-style price file. Columns are matched by header
// name, case-insensitively; Date and Close are required. Rows holding
// "null" placeholders (non-trading days in Yahoo exports) are skipped.
func ReadCSV(r io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", domain.ErrData, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"date", "close"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%w: missing %q column", domain.ErrData, required)
		}
	}

	get := func(rec []string, name string) (string, bool) {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return "", false
		}
		v := strings.TrimSpace(rec[i])
		return v, v != "" && !strings.EqualFold(v, "null")
	}
	num := func(rec []string, name string) (float64, error) {
		v, ok := get(rec, name)
		if !ok {
			return 0, nil
		}
		return strconv.ParseFloat(v, 64)
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrData, line, err)
		}

		ds, ok := get(rec, "date")
		if !ok {
			continue
		}
		if _, ok := get(rec, "close"); !ok {
			continue
		}
		ts, err := parseDate(ds)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrData, line, err)
		}

		b := domain.Bar{Symbol: symbol, Timestamp: ts}
		fields := []struct {
			name string
			dst  *float64
		}{
			{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close}, {"vwap", &b.VWAP},
		}
		for _, fld := range fields {
			if *fld.dst, err = num(rec, fld.name); err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", domain.ErrData, line, fld.name, err)
			}
		}
		vol, err := num(rec, "volume")
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: volume: %v", domain.ErrData, line, err)
		}
		b.Volume = int64(vol)
		bars = append(bars, b)
	}
	return bars, nil
}

// parseDate accepts a plain date or an RFC 3339 timestamp and returns the
// UTC calendar day.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
