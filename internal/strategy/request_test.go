package strategy

import (
	"errors"
	"testing"
	"time"

	"backtester/internal/config"
	"backtester/internal/domain"
)

func TestRequestFromConfig(t *testing.T) {
	req, err := RequestFromConfig(config.Backtest{
		Symbol:         "MSFT",
		Strategy:       "sma-cross",
		StartDate:      "2023-01-03",
		InitialCapital: 25000,
		StopLossPct:    0,
		ShortWindow:    10,
		LongWindow:     30,
	})
	if err != nil {
		t.Fatalf("RequestFromConfig: %v", err)
	}
	if req.Symbol != "MSFT" || req.Strategy != "sma-cross" || req.InitialCapital != 25000 {
		t.Errorf("req = %+v", req)
	}
	if req.Params != (Params{ShortWindow: 10, LongWindow: 30}) {
		t.Errorf("Params = %+v", req.Params)
	}
	if !req.Start.Equal(time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v", req.Start)
	}
	if !req.End.IsZero() {
		t.Errorf("End = %v, want zero", req.End)
	}

	_, err = RequestFromConfig(config.Backtest{EndDate: "3/1/2023"})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("bad date: err = %v, want ErrConfiguration", err)
	}
}

func TestRunDefaultsRange(t *testing.T) {
	now := time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)
	src := &recordingSource{}
	r := NewRegistry()
	r.Register(&stubStrategy{name: "Stub", id: "stub"})
	bt := NewBacktester(src, r)
	bt.now = func() time.Time { return now }

	_, _ = bt.Run(t.Context(), Request{Symbol: "X", Strategy: "stub", InitialCapital: 1})
	if !src.start.Equal(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v, want 2024-06-15", src.start)
	}
	if src.end.Format("2006-01-02") != "2025-06-15" {
		t.Errorf("end = %v, want end of 2025-06-15", src.end)
	}

	// With only an end date the start is a year before that end.
	end := time.Date(2020, 6, 30, 0, 0, 0, 0, time.UTC)
	_, _ = bt.Run(t.Context(), Request{Symbol: "X", Strategy: "stub", InitialCapital: 1, End: end})
	if !src.start.Equal(time.Date(2019, 6, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v, want 2019-06-30", src.start)
	}
	if src.end.Format("2006-01-02") != "2020-06-30" {
		t.Errorf("end = %v, want end of 2020-06-30", src.end)
	}
}
