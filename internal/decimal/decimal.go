// Package decimal implements fixed-point arithmetic for prices, quantities
// and monetary amounts. Values are stored as a scaled int64 with 9
// fractional digits: the representable range is about ±9.2 billion whole
// units at nanounit resolution, which covers every price, quantity and
// notional the engine handles while keeping a value one machine word.
//
// Multiplication and division run through a 128-bit intermediate; results
// that leave the representable range return ErrOverflow instead of wrapping.
package decimal

import (
	"errors"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Scale is the number of fractional decimal digits carried by a value.
const Scale = 9

// scaleFactor == 10^Scale.
const scaleFactor = int64(1_000_000_000)

// maxIntegral is the largest whole-unit magnitude that fits in the scaled
// representation: 9_223_372_036.
const maxIntegral = math.MaxInt64 / scaleFactor

var (
	ErrDivisionByZero = errors.New("decimal: division by zero")
	ErrOverflow       = errors.New("decimal: value out of range")
	ErrInvalidFormat  = errors.New("decimal: invalid format")
)

// Decimal is an immutable fixed-point number. The zero value is 0.
type Decimal struct {
	units int64
}

// Zero returns the zero value.
func Zero() Decimal { return Decimal{} }

// New returns the decimal for a whole number of units. Like MustParse it is
// meant for literals; values beyond the representable range panic rather
// than wrap.
func New(v int64) Decimal {
	if v > maxIntegral || v < -maxIntegral {
		panic("decimal: New(" + strconv.FormatInt(v, 10) + "): " + ErrOverflow.Error())
	}
	return Decimal{units: v * scaleFactor}
}

// FromFloat converts a float64, truncating beyond 9 fractional digits.
// Non-finite inputs and values outside the representable range return
// ErrOverflow. Parsed strings are exact, floats are not.
func FromFloat(v float64) (Decimal, error) {
	scaled := v * float64(scaleFactor)
	if math.IsNaN(scaled) || scaled >= float64(math.MaxInt64) || scaled <= -float64(math.MaxInt64) {
		return Decimal{}, ErrOverflow
	}
	return Decimal{units: int64(scaled)}, nil
}

// FromUnits builds a decimal directly from scaled units.
func FromUnits(units int64) Decimal { return Decimal{units: units} }

// Units returns the raw scaled representation.
func (d Decimal) Units() int64 { return d.units }

// Parse reads a decimal string. A leading '+' or '-' is accepted; the
// fractional part is truncated past 9 digits.
func Parse(s string) (Decimal, error) {
	if s == "" {
		return Decimal{}, ErrInvalidFormat
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return Decimal{}, ErrInvalidFormat
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx+1:]
	}
	if intPart == "" && fracPart == "" {
		return Decimal{}, ErrInvalidFormat
	}

	var units int64
	for i := 0; i < len(intPart); i++ {
		c := intPart[i]
		if c < '0' || c > '9' {
			return Decimal{}, ErrInvalidFormat
		}
		digit := int64(c - '0')
		if units > (math.MaxInt64-digit)/10 {
			return Decimal{}, ErrOverflow
		}
		units = units*10 + digit
	}
	if units > maxIntegral {
		return Decimal{}, ErrOverflow
	}
	units *= scaleFactor

	if len(fracPart) > Scale {
		fracPart = fracPart[:Scale]
	}
	var frac int64
	for i := 0; i < len(fracPart); i++ {
		c := fracPart[i]
		if c < '0' || c > '9' {
			return Decimal{}, ErrInvalidFormat
		}
		frac = frac*10 + int64(c-'0')
	}
	for i := len(fracPart); i < Scale; i++ {
		frac *= 10
	}
	if units > math.MaxInt64-frac {
		return Decimal{}, ErrOverflow
	}
	units += frac

	if neg {
		units = -units
	}
	return Decimal{units: units}, nil
}

// MustParse is Parse for literals known to be valid. It panics on error.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic("decimal: MustParse(" + s + "): " + err.Error())
	}
	return d
}

// Add returns d + other.
func (d Decimal) Add(other Decimal) Decimal {
	return Decimal{units: d.units + other.units}
}

// Sub returns d - other.
func (d Decimal) Sub(other Decimal) Decimal {
	return Decimal{units: d.units - other.units}
}

// Neg returns -d.
func (d Decimal) Neg() Decimal { return Decimal{units: -d.units} }

// Abs returns the absolute value.
func (d Decimal) Abs() Decimal {
	if d.units < 0 {
		return Decimal{units: -d.units}
	}
	return d
}

// Mul returns d * other, truncated toward zero at 9 fractional digits.
// The product is computed in 128 bits; ErrOverflow reports results outside
// the representable range.
func (d Decimal) Mul(other Decimal) (Decimal, error) {
	if d.units == 0 || other.units == 0 {
		return Decimal{}, nil
	}
	neg := (d.units < 0) != (other.units < 0)
	a := absU64(d.units)
	b := absU64(other.units)

	hi, lo := bits.Mul64(a, b)
	if hi >= uint64(scaleFactor) {
		return Decimal{}, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, uint64(scaleFactor))
	return fromMagnitude(quo, neg)
}

// Div returns d / other, truncated toward zero at 9 fractional digits.
func (d Decimal) Div(other Decimal) (Decimal, error) {
	if other.units == 0 {
		return Decimal{}, ErrDivisionByZero
	}
	if d.units == 0 {
		return Decimal{}, nil
	}
	neg := (d.units < 0) != (other.units < 0)
	a := absU64(d.units)
	b := absU64(other.units)

	hi, lo := bits.Mul64(a, uint64(scaleFactor))
	if hi >= b {
		return Decimal{}, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, b)
	return fromMagnitude(quo, neg)
}

func fromMagnitude(mag uint64, neg bool) (Decimal, error) {
	if neg {
		if mag > uint64(math.MaxInt64)+1 {
			return Decimal{}, ErrOverflow
		}
		return Decimal{units: -int64(mag)}, nil
	}
	if mag > uint64(math.MaxInt64) {
		return Decimal{}, ErrOverflow
	}
	return Decimal{units: int64(mag)}, nil
}

func absU64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

// Cmp returns -1, 0 or 1 comparing d against other.
func (d Decimal) Cmp(other Decimal) int {
	switch {
	case d.units < other.units:
		return -1
	case d.units > other.units:
		return 1
	default:
		return 0
	}
}

func (d Decimal) Equal(other Decimal) bool          { return d.units == other.units }
func (d Decimal) LessThan(other Decimal) bool       { return d.units < other.units }
func (d Decimal) LessOrEqual(other Decimal) bool    { return d.units <= other.units }
func (d Decimal) GreaterThan(other Decimal) bool    { return d.units > other.units }
func (d Decimal) GreaterOrEqual(other Decimal) bool { return d.units >= other.units }

func (d Decimal) IsZero() bool     { return d.units == 0 }
func (d Decimal) IsPositive() bool { return d.units > 0 }
func (d Decimal) IsNegative() bool { return d.units < 0 }

// Min returns the smaller of a and b.
func Min(a, b Decimal) Decimal {
	if a.units <= b.units {
		return a
	}
	return b
}

// Float64 returns an approximate float value. For display and demo math only.
func (d Decimal) Float64() float64 {
	return float64(d.units) / float64(scaleFactor)
}

// String formats the value with trailing fractional zeros trimmed; the
// fractional part is omitted entirely when zero. Parse(d.String()) == d.
func (d Decimal) String() string {
	return string(d.AppendString(make([]byte, 0, 32)))
}

// AppendString appends the formatted value to buf, avoiding allocation on
// hot logging paths.
func (d Decimal) AppendString(buf []byte) []byte {
	if d.units == 0 {
		return append(buf, '0')
	}

	u := d.units
	if u < 0 {
		buf = append(buf, '-')
		u = -u
	}

	intPart := u / scaleFactor
	fracPart := u % scaleFactor

	buf = appendUint(buf, uint64(intPart))
	if fracPart == 0 {
		return buf
	}

	var frac [Scale]byte
	for i := Scale - 1; i >= 0; i-- {
		frac[i] = byte('0' + fracPart%10)
		fracPart /= 10
	}
	end := Scale
	for end > 0 && frac[end-1] == '0' {
		end--
	}
	buf = append(buf, '.')
	return append(buf, frac[:end]...)
}

func appendUint(buf []byte, v uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	return append(buf, tmp[i:]...)
}

// MarshalJSON encodes the value as its decimal string, the form the
// serialization boundary exchanges.
func (d Decimal) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 34)
	buf = append(buf, '"')
	buf = d.AppendString(buf)
	return append(buf, '"'), nil
}

// UnmarshalJSON accepts both "1.5" and a bare 1.5 literal.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
