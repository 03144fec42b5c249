package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestUnitCost(t *testing.T) {
	cases := []struct {
		total   int64
		members int
		out     int64
		ok      bool
	}{
		{40000, 4, 10000, true}, // 400.00 across 4 -> 100.00 each
		{10000, 3, 3333, true},  // 100.00 across 3 -> 33.33
		{10001, 3, 3334, true},  // rounds half up
		{1, 1, 1, true},
		{100, 0, 0, false},
		{0, 2, 0, false},
	}
	for i, tc := range cases {
		got, err := UnitCost(Money{Cents: tc.total}, tc.members)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("case %d expected %d, got %d (err=%v)", i, tc.out, got.Cents, err)
			}
		} else {
			if err == nil {
				t.Fatalf("case %d expected error", i)
			}
		}
	}
}
