package domain_test

import (
	"math"
	"testing"

	"prohori/internal/domain"
)

func TestPage_NormalizeAndOffset(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		in     domain.Page
		page   int
		limit  int
		offset int
	}{
		{"defaults", domain.Page{}, 1, domain.DefaultPageLimit, 0},
		{"negative", domain.Page{Page: -3, Limit: -1}, 1, domain.DefaultPageLimit, 0},
		{"capped_limit", domain.Page{Page: 2, Limit: 1000}, 2, domain.MaxPageLimit, domain.MaxPageLimit},
		{"third_page", domain.Page{Page: 3, Limit: 10}, 3, 10, 20},
		{"huge_page_saturates", domain.Page{Page: math.MaxInt, Limit: 20}, math.MaxInt, 20, math.MaxInt},
		{"just_below_overflow", domain.Page{Page: math.MaxInt/100 + 1, Limit: 100}, math.MaxInt/100 + 1, 100, math.MaxInt / 100 * 100},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := tc.in.Normalize()
			if p.Page != tc.page || p.Limit != tc.limit {
				t.Fatalf("Normalize(%+v) = %+v", tc.in, p)
			}
			if got := p.Offset(); got != tc.offset {
				t.Fatalf("Offset = %d, want %d", got, tc.offset)
			}
		})
	}
}
