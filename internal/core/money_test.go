package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in      string
		cents   int64
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"0.01", 1, false},
		{"100", 10000, false},
		{"12.345", 1234, false}, // rounds down
		{"12.346", 1235, false}, // rounds up
		{"12.5", 1250, false},
		{".5", 50, false},
		{"", 0, true},
		{"0", 0, true},
		{"0.00", 0, true},
		{"-1.00", 0, true},
		{"+1.00", 0, true},
		{"1.2.3", 0, true},
		{"abc", 0, true},
		{"12.3x", 0, true},
		{"92233720368547758.08", 0, true}, // overflow guard
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDecimalToCents(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDecimalToCents(%q): %v", tc.in, err)
			continue
		}
		if got != tc.cents {
			t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tc.in, got, tc.cents)
		}
	}
}

func TestMoneyDecimal(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{1234, "12.34"},
		{5, "0.05"},
		{100, "1.00"},
		{-3500, "-35.00"},
		{0, "0.00"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).Decimal(); got != tc.want {
			t.Errorf("Money{%d}.Decimal() = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, cents := range []int64{1, 99, 100, 101, 123456789} {
		s := Money{Cents: cents}.Decimal()
		back, err := ParseDecimalToCents(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if back != cents {
			t.Fatalf("round trip %d -> %q -> %d", cents, s, back)
		}
	}
}

func TestParseShare(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"0.00", 0, false},
		{"0,0", 0, false},
		{"12.34", 1234, false},
		{"", 0, true},
		{"-1.00", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseShare(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseShare(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseShare(%q) error: %v", tc.in, err)
			continue
		}
		if got.Cents != tc.want {
			t.Errorf("ParseShare(%q) = %d, want %d", tc.in, got.Cents, tc.want)
		}
	}
}
