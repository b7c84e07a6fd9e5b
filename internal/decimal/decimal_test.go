package decimal

import (
	"errors"
	"math"
	"testing"
)

func TestParseStringRoundTrip(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"0", "0"},
		{"1", "1"},
		{"-1", "-1"},
		{"+1.5", "1.5"},
		{"1.50000", "1.5"},
		{"0.000000001", "0.000000001"},
		{"-0.1", "-0.1"},
		{"50000", "50000"},
		{"100.5", "100.5"},
		{"123456789.987654321", "123456789.987654321"},
		{"9223372036.85", "9223372036.85"},
		{"0.5000000001", "0.5"}, // 10th digit truncated
		{".5", "0.5"},
		{"2.", "2"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			d, err := Parse(tc.input)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.input, err)
			}
			if got := d.String(); got != tc.expected {
				t.Fatalf("round trip mismatch: got %s want %s", got, tc.expected)
			}
			again, err := Parse(d.String())
			if err != nil {
				t.Fatalf("reparse %q: %v", d.String(), err)
			}
			if !again.Equal(d) {
				t.Fatalf("reparse changed value: %s != %s", again, d)
			}
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "-", "+", ".", "abc", "1.2.3", "1,5", "1e5", "--1"} {
		if _, err := Parse(input); err == nil {
			t.Fatalf("parse %q should fail", input)
		}
	}
}

func TestArithmetic(t *testing.T) {
	a := MustParse("10.5")
	b := MustParse("2")

	if got := a.Add(b).String(); got != "12.5" {
		t.Fatalf("add: got %s", got)
	}
	if got := a.Sub(b).String(); got != "8.5" {
		t.Fatalf("sub: got %s", got)
	}

	prod, err := a.Mul(b)
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	if got := prod.String(); got != "21" {
		t.Fatalf("mul: got %s", got)
	}

	quo, err := a.Div(b)
	if err != nil {
		t.Fatalf("div: %v", err)
	}
	if got := quo.String(); got != "5.25" {
		t.Fatalf("div: got %s", got)
	}

	if got := MustParse("-3.5").Abs().String(); got != "3.5" {
		t.Fatalf("abs: got %s", got)
	}
	if got := MustParse("3.5").Neg().String(); got != "-3.5" {
		t.Fatalf("neg: got %s", got)
	}
}

func TestDivisionByZero(t *testing.T) {
	_, err := New(1).Div(Zero())
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestMulSigns(t *testing.T) {
	testCases := []struct {
		a, b, expected string
	}{
		{"2", "3", "6"},
		{"-2", "3", "-6"},
		{"2", "-3", "-6"},
		{"-2", "-3", "6"},
		{"0.5", "0.5", "0.25"},
		{"100", "0", "0"},
	}

	for _, tc := range testCases {
		got, err := MustParse(tc.a).Mul(MustParse(tc.b))
		if err != nil {
			t.Fatalf("%s * %s: %v", tc.a, tc.b, err)
		}
		if got.String() != tc.expected {
			t.Fatalf("%s * %s: got %s want %s", tc.a, tc.b, got, tc.expected)
		}
	}
}

func TestMulLargeOperandsNoSilentOverflow(t *testing.T) {
	// 3e9 * 3e9 would overflow a naive (a*b)/scale at the first multiply;
	// the 128-bit intermediate must still detect that a 9e18 product is
	// far outside the representable range.
	big := New(3_000_000_000)
	if _, err := big.Mul(big); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}

	// 3e9 * 2 is fine and must be exact even though 3e9 scaled units
	// already exceed 2^63 when multiplied naively.
	got, err := big.Mul(New(2))
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	if got.String() != "6000000000" {
		t.Fatalf("got %s", got)
	}
}

func TestDivMulRoundTripWithinOneUnit(t *testing.T) {
	testCases := []struct{ a, b string }{
		{"1", "3"},
		{"10", "7"},
		{"123.456", "0.789"},
		{"0.000001", "3"},
		{"99999.99999", "1.000001"},
	}

	for _, tc := range testCases {
		a := MustParse(tc.a)
		b := MustParse(tc.b)

		quo, err := a.Div(b)
		if err != nil {
			t.Fatalf("%s / %s: %v", tc.a, tc.b, err)
		}
		back, err := quo.Mul(b)
		if err != nil {
			t.Fatalf("(%s / %s) * %s: %v", tc.a, tc.b, tc.b, err)
		}
		diff := back.Sub(a).Abs()
		// Truncating the quotient loses under one scaled unit, which the
		// multiply magnifies by at most b before its own truncation.
		tolerance := FromUnits(b.Abs().Units()/New(1).Units() + 2)
		if diff.GreaterThan(tolerance) {
			t.Fatalf("(%s / %s) * %s = %s, drifted %s from %s", tc.a, tc.b, tc.b, back, diff, tc.a)
		}
	}
}

func TestComparisons(t *testing.T) {
	small := MustParse("1.1")
	large := MustParse("1.2")

	if !small.LessThan(large) || !large.GreaterThan(small) {
		t.Fatal("ordering broken")
	}
	if small.Cmp(large) != -1 || large.Cmp(small) != 1 || small.Cmp(small) != 0 {
		t.Fatal("cmp broken")
	}
	if !small.IsPositive() || !small.Neg().IsNegative() || !Zero().IsZero() {
		t.Fatal("sign predicates broken")
	}
	if !Min(small, large).Equal(small) {
		t.Fatal("min broken")
	}
}

func TestParseOverflow(t *testing.T) {
	if _, err := Parse("10000000000000000000"); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	// Just past the largest representable whole-unit magnitude.
	if _, err := Parse("9223372037"); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestNewKeepsLiteralsExact(t *testing.T) {
	if got := New(50000).String(); got != "50000" {
		t.Fatalf("New(50000): got %s", got)
	}
	if !New(50000).Equal(MustParse("50000")) {
		t.Fatal("New and Parse disagree")
	}
	if got := New(-9_223_372_036).String(); got != "-9223372036" {
		t.Fatalf("New at range edge: got %s", got)
	}
}

func TestNewPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unrepresentable literal")
		}
	}()
	New(10_000_000_000)
}

func TestJSONRoundTrip(t *testing.T) {
	d := MustParse("50000.25")
	raw, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"50000.25"` {
		t.Fatalf("marshal: got %s", raw)
	}

	var back Decimal
	if err := back.UnmarshalJSON(raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d) {
		t.Fatalf("json round trip: %s != %s", back, d)
	}
}

func TestFromFloat(t *testing.T) {
	d, err := FromFloat(1.5)
	if err != nil {
		t.Fatalf("from float: %v", err)
	}
	if math.Abs(d.Float64()-1.5) > 1e-9 {
		t.Fatalf("from float: got %s", d)
	}

	for _, v := range []float64{1e12, -1e12, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := FromFloat(v); !errors.Is(err, ErrOverflow) {
			t.Fatalf("FromFloat(%v): expected ErrOverflow, got %v", v, err)
		}
	}
}
