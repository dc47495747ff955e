package engine

import "testing"

func TestAdaptiveHint(t *testing.T) {
	cases := []struct {
		name       string
		confidence *int
		want       string
	}{
		{"no confidence reported", nil, ""},
		{"high confidence", intPtr(90), AdjustHarder},
		{"at hard floor", intPtr(75), AdjustHarder},
		{"neutral band", intPtr(60), ""},
		{"at easy ceiling", intPtr(40), AdjustEasier},
		{"low confidence", intPtr(10), AdjustEasier},
		{"zero confidence", intPtr(0), AdjustEasier},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AdaptiveHint(tc.confidence); got != tc.want {
				t.Fatalf("AdaptiveHint(%v) = %q, want %q", tc.confidence, got, tc.want)
			}
		})
	}
}
