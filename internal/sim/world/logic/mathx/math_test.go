package mathx

import (
	"math"
	"testing"
)

func TestFloorDiv(t *testing.T) {
	if FloorDiv(-1, 4) != -1 || FloorDiv(7, 4) != 1 || FloorDiv(-8, 4) != -2 {
		t.Fatalf("unexpected floor division")
	}
}

func TestClamp(t *testing.T) {
	if ClampInt(-3, 0, 5) != 0 || ClampInt(9, 0, 5) != 5 || ClampInt(2, 0, 5) != 2 {
		t.Fatalf("unexpected ClampInt")
	}
	if Clamp01(-0.5) != 0 || Clamp01(1.5) != 1 || Clamp01(math.NaN()) != 0 || Clamp01(0.25) != 0.25 {
		t.Fatalf("unexpected Clamp01")
	}
	if FloorToInt(-0.5) != -1 || FloorToInt(1e20) != math.MaxInt32 {
		t.Fatalf("unexpected FloorToInt")
	}
}
