package backtest_test

import (
	"math"
	"testing"

	"github.com/atlas-desktop/strategy-backtester/internal/backtest"
)

func TestRollingMean(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := backtest.RollingMean(values, 3)

	if len(out) != len(values) {
		t.Fatalf("Expected %d entries, got %d", len(values), len(out))
	}

	// Warm-up prefix is undefined.
	for i := 0; i < 2; i++ {
		if out[i].Valid {
			t.Errorf("Entry %d should be invalid during warm-up", i)
		}
	}

	expected := []float64{2, 3, 4}
	for i, want := range expected {
		got := out[i+2]
		if !got.Valid {
			t.Fatalf("Entry %d should be valid", i+2)
		}
		if math.Abs(got.Float64-want) > 1e-9 {
			t.Errorf("Entry %d: expected %v, got %v", i+2, want, got.Float64)
		}
	}
}

func TestRollingMeanShortSeries(t *testing.T) {
	out := backtest.RollingMean([]float64{1, 2}, 5)
	for i, v := range out {
		if v.Valid {
			t.Errorf("Entry %d should be invalid when series is shorter than window", i)
		}
	}
}

func TestRollingStdSampleDivisor(t *testing.T) {
	// Sample std of [2, 4, 4, 4, 5, 5, 7, 9] over the full window.
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	out := backtest.RollingStd(values, 8)

	last := out[len(out)-1]
	if !last.Valid {
		t.Fatal("Final entry should be valid")
	}
	// mean = 5, sum of squared deviations = 32, sample variance = 32/7.
	want := math.Sqrt(32.0 / 7.0)
	if math.Abs(last.Float64-want) > 1e-9 {
		t.Errorf("Expected std %v, got %v", want, last.Float64)
	}
}

func TestZScores(t *testing.T) {
	// Alternating series, then a sharp drop at the end.
	values := []float64{100, 102, 100, 102, 100, 102, 100, 102, 100, 102, 80}
	out := backtest.ZScores(values, 10)

	for i := 0; i < 9; i++ {
		if out[i].Valid {
			t.Errorf("Entry %d should be invalid during warm-up", i)
		}
	}
	if !out[10].Valid {
		t.Fatal("Entry 10 should be valid")
	}
	if out[10].Float64 >= -2 {
		t.Errorf("Sharp drop should score strongly negative, got %v", out[10].Float64)
	}
}

func TestZScoresFlatSeries(t *testing.T) {
	// Zero deviation makes the score undefined, not infinite.
	values := []float64{50, 50, 50, 50, 50, 50, 50}
	out := backtest.ZScores(values, 5)
	for i, v := range out {
		if v.Valid {
			t.Errorf("Entry %d should be invalid for a flat series", i)
		}
	}
}
