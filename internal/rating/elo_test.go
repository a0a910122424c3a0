package rating

import (
	"math"
	"testing"
)

func TestExpectedIsSymmetric(t *testing.T) {
	if e := Expected(1000, 1000); math.Abs(e-0.5) > 1e-9 {
		t.Fatalf("Expected(1000,1000) = %v", e)
	}
	a, b := Expected(1200, 1000), Expected(1000, 1200)
	if math.Abs(a+b-1) > 1e-9 || a <= 0.5 {
		t.Fatalf("Expected not complementary: %v + %v", a, b)
	}
}

func TestKFactor(t *testing.T) {
	if KFactor(0) != 40 || KFactor(29) != 40 || KFactor(30) != 20 {
		t.Fatalf("K-factor thresholds wrong")
	}
}

func TestUpdate(t *testing.T) {
	cases := []struct {
		name       string
		w, l       Player
		wantW, wnL int
	}{
		{"equal novices", Player{1000, 0}, Player{1000, 0}, 1020, 980},
		{"equal veterans", Player{1000, 40}, Player{1000, 40}, 1010, 990},
		{"mixed k", Player{1000, 0}, Player{1000, 40}, 1020, 990},
		// E(1000 vs 1200) = 0.2403 -> 1000 + 40*0.7597 = 1030.4
		{"upset", Player{1000, 0}, Player{1200, 0}, 1030, 1170},
		{"loser floor", Player{1000, 0}, Player{800, 0}, 1010, 800},
	}
	for _, tc := range cases {
		w, l := Update(tc.w, tc.l)
		if w != tc.wantW || l != tc.wnL {
			t.Fatalf("%s: got %d/%d want %d/%d", tc.name, w, l, tc.wantW, tc.wnL)
		}
	}
}

func TestFallbacks(t *testing.T) {
	if WinAgainstUnrated(1000) != 1010 {
		t.Fatalf("win fallback")
	}
	if LossAgainstUnrated(1000) != 995 || LossAgainstUnrated(803) != 800 {
		t.Fatalf("loss fallback")
	}
	if Current(nil) != DefaultRating || Current([]int{1000, 1020}) != 1020 {
		t.Fatalf("Current")
	}
}
