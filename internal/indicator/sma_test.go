package indicator

import (
	"math"
	"testing"
	"time"

	"backtester/internal/domain"
)

func TestColumnName(t *testing.T) {
	if got := ColumnName(20); got != "SMA_20" {
		t.Errorf("ColumnName(20) = %q, want %q", got, "SMA_20")
	}
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{math.NaN(), math.NaN(), 2, 3, 4}

	if len(got) != len(want) {
		t.Fatalf("SMA returned %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if math.IsNaN(want[i]) {
			if !math.IsNaN(got[i]) {
				t.Errorf("SMA[%d] = %v, want NaN", i, got[i])
			}
			continue
		}
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("SMA[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSMAFlatSeriesIsExact(t *testing.T) {
	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 101.37
	}
	for _, w := range []int{7, 20, 23, 50} {
		for i, v := range SMA(flat, w) {
			if i < w-1 {
				continue
			}
			if v != 101.37 {
				t.Fatalf("SMA(window=%d)[%d] = %v, want exactly 101.37", w, i, v)
			}
		}
	}
}

func TestSMALongSeriesDoesNotDrift(t *testing.T) {
	// A long noisy run followed by a flat tail: the tail average must not
	// carry error from earlier windows.
	x := make([]float64, 0, 3000)
	for i := 0; i < 2900; i++ {
		x = append(x, 100+float64(i%17)*0.37-float64(i%5)*1.1)
	}
	for i := 0; i < 100; i++ {
		x = append(x, 42.42)
	}
	got := SMA(x, 30)
	if last := got[len(got)-1]; last != 42.42 {
		t.Errorf("SMA tail = %v, want exactly 42.42", last)
	}
}

func TestSMAEdgeCases(t *testing.T) {
	if got := SMA(nil, 3); len(got) != 0 {
		t.Errorf("SMA(nil) returned %d values, want 0", len(got))
	}

	// Window longer than the series: every value is undefined.
	for i, v := range SMA([]float64{1, 2}, 5) {
		if !math.IsNaN(v) {
			t.Errorf("SMA(short series)[%d] = %v, want NaN", i, v)
		}
	}

	for i, v := range SMA([]float64{1, 2, 3}, 0) {
		if !math.IsNaN(v) {
			t.Errorf("SMA(window=0)[%d] = %v, want NaN", i, v)
		}
	}

	// Window of one is the series itself.
	got := SMA([]float64{4, 5, 6}, 1)
	if got[0] != 4 || got[1] != 5 || got[2] != 6 {
		t.Errorf("SMA(window=1) = %v, want [4 5 6]", got)
	}
}

func TestAnnotate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []domain.Bar
	for i, c := range []float64{10, 11, 12, 13} {
		bars = append(bars, domain.Bar{Symbol: "TCS", Timestamp: start.AddDate(0, 0, i), Close: c})
	}
	frame := domain.NewFrame("TCS", bars)

	got := Annotate(frame, 2, 3, 2)

	short, ok := got.Column("SMA_2")
	if !ok {
		t.Fatal("SMA_2 column missing")
	}
	if short[3] != 12.5 {
		t.Errorf("SMA_2[3] = %v, want 12.5", short[3])
	}
	long, ok := got.Column("SMA_3")
	if !ok {
		t.Fatal("SMA_3 column missing")
	}
	if !math.IsNaN(long[1]) || long[2] != 11 {
		t.Errorf("SMA_3 = %v, want [NaN NaN 11 12]", long)
	}
	if n := len(got.ColumnNames()); n != 2 {
		t.Errorf("Annotate produced %d columns, want 2", n)
	}
	if _, ok := frame.Column("SMA_2"); ok {
		t.Error("Annotate modified its input frame")
	}

	empty := Annotate(domain.NewFrame("X", nil), 5)
	col, ok := empty.Column("SMA_5")
	if !ok || len(col) != 0 {
		t.Errorf("Annotate on empty frame: column = %v, ok = %v", col, ok)
	}
}
