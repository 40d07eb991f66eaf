package lending

import "github.com/holiman/uint256"

const (
	basisPoints    = 10_000
	secondsPerYear = 31_536_000
)

func new256(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrMathOverflow
	}
	return a - b, nil
}

// mulDiv computes a*b/den with a 256-bit intermediate so the product cannot
// overflow, and fails when the quotient exceeds the 64-bit amount range.
func mulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrMathOverflow
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quotient := product.Div(product, uint256.NewInt(den))
	if !quotient.IsUint64() {
		return 0, ErrMathOverflow
	}
	return quotient.Uint64(), nil
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
