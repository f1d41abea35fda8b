package intake

import "testing"

func TestNormalizeBudget(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected string
		ok       bool
	}{
		{name: "whole amount", raw: "1200", expected: "1200", ok: true},
		{name: "comma separator", raw: "1200,50", expected: "1200.50", ok: true},
		{name: "period separator", raw: "1200.50", expected: "1200.50", ok: true},
		{name: "surrounding spaces", raw: "  500 ", expected: "500", ok: true},
		{name: "words rejected", raw: "abc", ok: false},
		{name: "double separator rejected", raw: "12.5.3", ok: false},
		{name: "negative rejected", raw: "-100", ok: false},
		{name: "empty rejected", raw: "", ok: false},
		{name: "currency suffix rejected", raw: "1000 тг", ok: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeBudget(tc.raw)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if ok && got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}
