package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"backtester/internal/domain"
)

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	got := ps.barPath("aapl", domain.MarketUS, 2024)
	want := filepath.Join("/data", "us", "daily", "AAPL", "2024.parquet")
	if got != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{
			Symbol:     "AAPL",
			Timestamp:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Open:       185.0,
			High:       186.5,
			Low:        184.0,
			Close:      185.5,
			Volume:     50000000,
			TradeCount: 500000,
			VWAP:       185.25,
		},
		{
			Symbol:     "AAPL",
			Timestamp:  time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Open:       185.5,
			High:       187.0,
			Low:        185.0,
			Close:      186.0,
			Volume:     45000000,
			TradeCount: 450000,
			VWAP:       185.75,
		},
	}

	if err := ps.WriteBars(ctx, domain.MarketUS, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, domain.MarketUS, "AAPL", start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 185.5 || got[1].Close != 186.0 {
		t.Errorf("closes = %v, %v; want 185.5, 186.0", got[0].Close, got[1].Close)
	}
	if !got[0].Timestamp.Equal(bars[0].Timestamp) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, bars[0].Timestamp)
	}
	if got[1].VWAP != 185.75 || got[1].TradeCount != 450000 {
		t.Errorf("second bar = %+v", got[1])
	}

	// The range is inclusive on both ends.
	one, err := ps.ReadBars(ctx, domain.MarketUS, "AAPL", bars[1].Timestamp, bars[1].Timestamp)
	if err != nil {
		t.Fatalf("ReadBars single day: %v", err)
	}
	if len(one) != 1 {
		t.Errorf("single-day read returned %d bars, want 1", len(one))
	}
}

func TestParquetStoreReadMissing(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	got, err := ps.ReadBars(context.Background(), domain.MarketUS, "NOPE",
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadBars returned %d bars for an unknown symbol", len(got))
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars1 := []domain.Bar{
		{
			Symbol:    "MSFT",
			Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Open:      400.0, High: 405.0, Low: 399.0, Close: 403.0,
			Volume: 30000000, TradeCount: 300000, VWAP: 402.0,
		},
	}
	if err := ps.WriteBars(ctx, domain.MarketUS, bars1); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// Same symbol and year: merged, and the repeated day is replaced.
	bars2 := []domain.Bar{
		{
			Symbol:    "MSFT",
			Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Open:      400.0, High: 405.0, Low: 399.0, Close: 404.0,
		},
		{
			Symbol:    "MSFT",
			Timestamp: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			Open:      403.0, High: 410.0, Low: 402.0, Close: 408.0,
			Volume: 35000000, TradeCount: 350000, VWAP: 406.0,
		},
	}
	if err := ps.WriteBars(ctx, domain.MarketUS, bars2); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, domain.MarketUS, "MSFT", start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
	if got[0].Close != 404.0 {
		t.Errorf("merged bar Close = %v, want the newer 404", got[0].Close)
	}
}

func TestParquetStoreAcrossYears(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "SPY", Timestamp: time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC), Close: 475},
		{Symbol: "SPY", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 472},
	}
	if err := ps.WriteBars(ctx, domain.MarketUS, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	got, err := ps.ReadBars(ctx, domain.MarketUS, "SPY",
		time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 || got[0].Close != 475 || got[1].Close != 472 {
		t.Errorf("ReadBars across years = %+v", got)
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "AAPL", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 185.0, High: 186.0, Low: 184.0, Close: 185.5, Volume: 50000000},
		{Symbol: "GOOGL", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 140.0, High: 141.0, Low: 139.0, Close: 140.5, Volume: 20000000},
	}
	if err := ps.WriteBars(ctx, domain.MarketUS, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err := ps.ListSymbols(ctx, domain.MarketUS)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "GOOGL" {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", symbols)
	}

	none, err := ps.ListSymbols(ctx, domain.MarketIN)
	if err != nil || len(none) != 0 {
		t.Errorf("ListSymbols(empty market) = %v, %v", none, err)
	}
}

func TestSQLiteStoreFetchLog(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache", "fetch.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) returned error: %v", dbPath, err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	}()
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)

	if _, ok, err := s.LastFetch(ctx, "alpaca", "AAPL", start, end); err != nil || ok {
		t.Fatalf("LastFetch on empty log = ok %v, err %v", ok, err)
	}

	first := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	if err := s.RecordFetch(ctx, Fetch{Source: "alpaca", Symbol: "aapl", Start: start, End: end, Bars: 124, FetchedAt: first}); err != nil {
		t.Fatalf("RecordFetch: %v", err)
	}

	f, ok, err := s.LastFetch(ctx, "alpaca", "AAPL", start, end)
	if err != nil || !ok {
		t.Fatalf("LastFetch = ok %v, err %v", ok, err)
	}
	if f.Bars != 124 || !f.FetchedAt.Equal(first) || f.Symbol != "AAPL" {
		t.Errorf("LastFetch = %+v", f)
	}

	// Re-recording the same range replaces the entry.
	second := first.Add(2 * time.Hour)
	if err := s.RecordFetch(ctx, Fetch{Source: "alpaca", Symbol: "AAPL", Start: start, End: end, Bars: 125, FetchedAt: second}); err != nil {
		t.Fatalf("RecordFetch (again): %v", err)
	}
	f, _, _ = s.LastFetch(ctx, "alpaca", "AAPL", start, end)
	if f.Bars != 125 || !f.FetchedAt.Equal(second) {
		t.Errorf("LastFetch after upsert = %+v", f)
	}

	// Other sources and ranges are independent.
	if _, ok, _ := s.LastFetch(ctx, "csv", "AAPL", start, end); ok {
		t.Error("LastFetch matched a different source")
	}
	if _, ok, _ := s.LastFetch(ctx, "alpaca", "AAPL", start, end.AddDate(0, 0, 1)); ok {
		t.Error("LastFetch matched a different range")
	}
}

func TestSQLiteStoreInMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore(:memory:): %v", err)
	}
	defer s.Close()
	if err := s.db.Ping(); err != nil {
		t.Fatalf("db.Ping() returned error: %v", err)
	}
}
