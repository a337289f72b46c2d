package optm

import (
	"math"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateImprovement_Direction(t *testing.T) {
	if got := CalculateImprovement(90, 100, true); !approxEqual(got, 10) {
		t.Errorf("lower-is-better drop: expected 10, got %v", got)
	}
	if got := CalculateImprovement(110, 100, false); !approxEqual(got, 10) {
		t.Errorf("higher-is-better rise: expected 10, got %v", got)
	}
	if got := CalculateImprovement(110, 100, true); !approxEqual(got, -10) {
		t.Errorf("lower-is-better rise: expected -10, got %v", got)
	}
	if got := CalculateImprovement(90, 100, false); !approxEqual(got, -10) {
		t.Errorf("higher-is-better drop: expected -10, got %v", got)
	}
}

func TestCalculateImprovement_ZeroPrevious(t *testing.T) {
	for _, lower := range []bool{true, false} {
		got := CalculateImprovement(5, 0, lower)
		if got != 0 || math.IsNaN(got) || math.IsInf(got, 0) {
			t.Errorf("lowerIsBetter=%v: expected 0 for zero previous, got %v", lower, got)
		}
	}
}

func TestCalculateImprovement_Unchanged(t *testing.T) {
	if got := CalculateImprovement(42, 42, true); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestCalculateImprovementCategory(t *testing.T) {
	tests := []struct {
		pct  float64
		want ImprovementCategory
	}{
		{150, ImprovementSignificant},
		{75, ImprovementSignificant},
		{74.99, ImprovementModerate},
		{50, ImprovementModerate},
		{49.9, ImprovementMinimal},
		{25, ImprovementMinimal},
		{24.9, ImprovementNoChange},
		{0.01, ImprovementNoChange},
		{0, ImprovementDeterioration},
		{-30, ImprovementDeterioration},
	}
	for _, tt := range tests {
		if got := CalculateImprovementCategory(tt.pct); got != tt.want {
			t.Errorf("CalculateImprovementCategory(%v) = %s, want %s", tt.pct, got, tt.want)
		}
	}
}

func TestImprovementPhrase(t *testing.T) {
	if got := improvementPhrase(ImprovementModerate, 50); got != "Moderate improvement of 50.0% since the previous assessment." {
		t.Errorf("unexpected phrase: %q", got)
	}
	if got := improvementPhrase(ImprovementDeterioration, 0); got != "Unchanged since the previous assessment." {
		t.Errorf("unexpected phrase: %q", got)
	}
	if got := improvementPhrase(ImprovementDeterioration, -12.5); got != "Deterioration of 12.5% since the previous assessment." {
		t.Errorf("unexpected phrase: %q", got)
	}
}
