package strategy_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"backtester/internal/domain"
	"backtester/internal/strategy"
	"backtester/internal/strategy/builtins"
)

type fakeSource struct {
	bars  []domain.Bar
	err   error
	calls int

	gotStart, gotEnd time.Time
}

func (f *fakeSource) Bars(_ context.Context, _ string, start, end time.Time) ([]domain.Bar, error) {
	f.calls++
	f.gotStart, f.gotEnd = start, end
	return f.bars, f.err
}

func dailyBars(closes ...float64) []domain.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Symbol: "AAPL", Timestamp: start.AddDate(0, 0, i), Close: c}
	}
	return bars
}

func baseRequest() strategy.Request {
	return strategy.Request{
		Symbol:          "AAPL",
		Start:           time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC),
		End:             time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
		Strategy:        "buy-and-hold",
		Params:          strategy.DefaultParams(),
		InitialCapital:  100000,
		StopLossPercent: 5,
	}
}

func TestBacktesterRunBuyAndHold(t *testing.T) {
	src := &fakeSource{bars: dailyBars(100, 110, 90, 120)}
	bt := strategy.NewBacktester(src, builtins.Registry())

	rep, err := bt.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Strategy != "Buy and Hold" {
		t.Errorf("Strategy = %q", rep.Strategy)
	}
	if got := rep.Result.TotalReturnPct(); math.Abs(got-20) > 1e-9 {
		t.Errorf("TotalReturnPct = %v, want 20", got)
	}
	if rep.Metrics.TradeCount != 1 {
		t.Errorf("TradeCount = %d, want 1", rep.Metrics.TradeCount)
	}
	if len(rep.Signals) != 4 {
		t.Errorf("got %d signals, want 4", len(rep.Signals))
	}

	// The range handed to the source is whole UTC days, end inclusive.
	if !src.gotStart.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("source start = %v", src.gotStart)
	}
	if src.gotEnd.Before(time.Date(2024, 1, 5, 23, 59, 0, 0, time.UTC)) {
		t.Errorf("source end = %v, want end of 2024-01-05", src.gotEnd)
	}
}

func TestBacktesterRunSMACross(t *testing.T) {
	src := &fakeSource{bars: dailyBars(10, 9, 8, 9, 11, 13, 12, 9, 7, 6)}
	bt := strategy.NewBacktester(src, builtins.Registry())

	req := baseRequest()
	req.Strategy = "Simple Moving Average Crossover"
	req.Params = strategy.Params{ShortWindow: 2, LongWindow: 3}
	req.StopLossPercent = 50

	rep, err := bt.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := rep.Frame.Column("SMA_2"); !ok {
		t.Error("report frame is missing SMA_2")
	}
	if rep.Metrics.RoundTrips != 1 {
		t.Errorf("RoundTrips = %d, want 1", rep.Metrics.RoundTrips)
	}
}

func TestBacktesterRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*strategy.Request)
		src    *fakeSource
		want   error
		// fetched reports whether the source should have been called.
		fetched bool
	}{
		{
			name:   "unknown strategy",
			mutate: func(r *strategy.Request) { r.Strategy = "Momentum" },
			src:    &fakeSource{bars: dailyBars(1, 2)},
			want:   domain.ErrConfiguration,
		},
		{
			name: "bad window",
			mutate: func(r *strategy.Request) {
				r.Strategy = "sma-cross"
				r.Params.ShortWindow = 0
			},
			src:  &fakeSource{bars: dailyBars(1, 2)},
			want: domain.ErrConfiguration,
		},
		{
			name:   "bad capital",
			mutate: func(r *strategy.Request) { r.InitialCapital = 0 },
			src:    &fakeSource{bars: dailyBars(1, 2)},
			want:   domain.ErrConfiguration,
		},
		{
			name:   "inverted range",
			mutate: func(r *strategy.Request) { r.Start, r.End = r.End, r.Start },
			src:    &fakeSource{bars: dailyBars(1, 2)},
			want:   domain.ErrConfiguration,
		},
		{
			name:    "no data",
			mutate:  func(r *strategy.Request) {},
			src:     &fakeSource{},
			want:    domain.ErrData,
			fetched: true,
		},
		{
			name:    "source error",
			mutate:  func(r *strategy.Request) {},
			src:     &fakeSource{err: domain.ErrData},
			want:    domain.ErrData,
			fetched: true,
		},
		{
			name:    "bad close",
			mutate:  func(r *strategy.Request) {},
			src:     &fakeSource{bars: dailyBars(100, 0, 90)},
			want:    domain.ErrComputation,
			fetched: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(&req)
			bt := strategy.NewBacktester(tt.src, builtins.Registry())

			rep, err := bt.Run(context.Background(), req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if rep != nil {
				t.Error("got a partial report alongside an error")
			}
			if fetched := tt.src.calls > 0; fetched != tt.fetched {
				t.Errorf("source called = %v, want %v", fetched, tt.fetched)
			}
		})
	}
}

func TestBacktesterRunFrameReusesFrame(t *testing.T) {
	bt := strategy.NewBacktester(&fakeSource{}, builtins.Registry())
	frame := domain.NewFrame("AAPL", dailyBars(10, 9, 8, 9, 11, 13, 12, 9, 7, 6))

	req := baseRequest()
	req.Strategy = "sma-cross"
	req.Params = strategy.Params{ShortWindow: 2, LongWindow: 3}

	first, err := bt.RunFrame(frame, req)
	if err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	second, err := bt.RunFrame(frame, req)
	if err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if first.Result.FinalValue() != second.Result.FinalValue() {
		t.Errorf("final values differ: %v vs %v", first.Result.FinalValue(), second.Result.FinalValue())
	}
	if len(frame.ColumnNames()) != 0 {
		t.Errorf("input frame was annotated in place: %v", frame.ColumnNames())
	}
}
