package math

import (
	"math"
	"testing"
)

func TestNormalQuantile(t *testing.T) {
	tests := []struct {
		p    float64
		want float64
	}{
		{0.5, 0},
		{0.975, 1.959963984540054},
		{0.025, -1.959963984540054},
	}

	for _, tt := range tests {
		got := NormalQuantile(tt.p)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalQuantile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if !math.IsInf(NormalQuantile(1), 1) {
		t.Errorf("NormalQuantile(1) should be +Inf")
	}
	if !math.IsInf(NormalQuantile(0), -1) {
		t.Errorf("NormalQuantile(0) should be -Inf")
	}
	for _, p := range []float64{-0.1, 1.1, math.NaN()} {
		if !math.IsNaN(NormalQuantile(p)) {
			t.Errorf("NormalQuantile(%v) should be NaN", p)
		}
	}
}

func TestCumSum(t *testing.T) {
	got := CumSum([]float64{1, 2, 3.5})
	want := []float64{1, 3, 6.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CumSum[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if len(CumSum(nil)) != 0 {
		t.Errorf("CumSum(nil) should be empty")
	}
}


func TestIsNonIncreasing(t *testing.T) {
	tests := []struct {
		values []float64
		want   bool
	}{
		{nil, true},
		{[]float64{5}, true},
		{[]float64{5, 5, 3, 1}, true},
		{[]float64{5, 3, 4}, false},
	}

	for _, tt := range tests {
		if got := IsNonIncreasing(tt.values); got != tt.want {
			t.Errorf("IsNonIncreasing(%v) = %v, want %v", tt.values, got, tt.want)
		}
	}
}

func TestRunningMax(t *testing.T) {
	in := []float64{0, 8, 2, 9, 9, 4}
	got := RunningMax(in)
	want := []float64{0, 8, 8, 9, 9, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RunningMax = %v, want %v", got, want)
			break
		}
	}
	if in[2] != 2 {
		t.Errorf("input must not be modified: %v", in)
	}
	if len(RunningMax(nil)) != 0 {
		t.Errorf("RunningMax(nil) should be empty")
	}
}
