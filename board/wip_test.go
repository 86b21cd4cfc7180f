package board

import "testing"

func TestClassifyWip(t *testing.T) {
	cases := []struct {
		name  string
		count int
		limit *int
		want  WipState
	}{
		{name: "nil limit is unlimited", count: 40, limit: nil, want: WipWithinLimit},
		{name: "empty column", count: 0, limit: intp(3), want: WipWithinLimit},
		{name: "under limit", count: 2, limit: intp(3), want: WipWithinLimit},
		{name: "exactly at limit", count: 3, limit: intp(3), want: WipAtLimit},
		{name: "one over", count: 4, limit: intp(3), want: WipOverLimit},
		{name: "far over", count: 12, limit: intp(3), want: WipOverLimit},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyWip(tc.count, tc.limit); got != tc.want {
				t.Fatalf("expected %v got %v", tc.want, got)
			}
		})
	}
}

func TestWipStateLabels(t *testing.T) {
	labels := map[WipState]string{
		WipWithinLimit: "within_limit",
		WipAtLimit:     "at_limit",
		WipOverLimit:   "over_limit",
	}
	for state, want := range labels {
		if got := state.String(); got != want {
			t.Fatalf("expected %q got %q", want, got)
		}
	}
}
