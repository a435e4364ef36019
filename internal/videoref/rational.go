package videoref

import "fmt"

// Rational is an exact fraction used for frame rates and frame-grid
// time arithmetic. Per the Design Notes in spec §9, frame-accurate cut
// correctness depends on matching the encoder's PTS grid, so a rate
// like 30000/1001 must never be collapsed to a pre-rounded float until
// the final moment a media tool needs a decimal argument.
type Rational struct {
	Num int64
	Den int64
}

// NewRational reduces num/den by their GCD and normalises the sign onto
// the numerator. Panics on a zero denominator: callers only construct
// Rationals from fixed literals or probe data already validated non-zero.
func NewRational(num, den int64) Rational {
	if den == 0 {
		panic("videoref: rational with zero denominator")
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs64(num), den)
	if g == 0 {
		g = 1
	}
	return Rational{Num: num / g, Den: den / g}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// Float64 converts to a float64, losing exactness. Use only at the
// boundary where a media tool genuinely requires a decimal string.
func (r Rational) Float64() float64 {
	return float64(r.Num) / float64(r.Den)
}

// Mul returns r * other, exactly.
func (r Rational) Mul(other Rational) Rational {
	return NewRational(r.Num*other.Num, r.Den*other.Den)
}

// Div returns r / other, exactly.
func (r Rational) Div(other Rational) Rational {
	return NewRational(r.Num*other.Den, r.Den*other.Num)
}

// MulInt returns r * n, exactly.
func (r Rational) MulInt(n int64) Rational {
	return NewRational(r.Num*n, r.Den)
}

// Add returns r + other, exactly.
func (r Rational) Add(other Rational) Rational {
	return NewRational(r.Num*other.Den+other.Num*r.Den, r.Den*other.Den)
}

// Sub returns r - other, exactly.
func (r Rational) Sub(other Rational) Rational {
	return NewRational(r.Num*other.Den-other.Num*r.Den, r.Den*other.Den)
}

// Inv returns 1/r, exactly.
func (r Rational) Inv() Rational {
	return NewRational(r.Den, r.Num)
}

// Cmp returns -1, 0, or 1 as r is less than, equal to, or greater than
// other.
func (r Rational) Cmp(other Rational) int {
	lhs := r.Num * other.Den
	rhs := other.Num * r.Den
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	default:
		return 0
	}
}

func (r Rational) String() string {
	if r.Den == 1 {
		return fmt.Sprintf("%d", r.Num)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Frame rates accepted at grid ingest (spec §6.4). These are the exact
// rationals; never compare a probed rate against a pre-rounded float.
var (
	FrameRate25     = NewRational(25, 1)
	FrameRate30000  = NewRational(30000, 1001)
	FrameRate50     = NewRational(50, 1)
	FrameRate60000  = NewRational(60000, 1001)
	FrameRate30     = NewRational(30, 1)
)

// AcceptedFrameRates lists every frame rate the acceptance rules allow.
var AcceptedFrameRates = []Rational{FrameRate25, FrameRate30000, FrameRate50, FrameRate60000, FrameRate30}

// IsAcceptedFrameRate reports whether r exactly matches one of the
// accepted rates.
func IsAcceptedFrameRate(r Rational) bool {
	for _, accepted := range AcceptedFrameRates {
		if accepted.Cmp(r) == 0 {
			return true
		}
	}
	return false
}
