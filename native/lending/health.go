package lending

import "github.com/holiman/uint256"

// valuePrecisionExpo is the decimal exponent of the shared value unit: every
// asset value is expressed at 10^-12 precision so amounts priced with
// different feed exponents compare directly.
const valuePrecisionExpo = 12

func pow10(n int32) *uint256.Int {
	result := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := int32(0); i < n; i++ {
		result.Mul(result, ten)
	}
	return result
}

// assetValue prices an amount in the shared value unit using a resolved
// observation. The computation stays in 256-bit space so it cannot overflow.
func assetValue(amount uint64, price PriceData) *uint256.Int {
	value := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(price.Price)))
	scale := valuePrecisionExpo + price.Expo
	if scale >= 0 {
		return value.Mul(value, pow10(scale))
	}
	return value.Div(value, pow10(-scale))
}

// amountFromValue inverts assetValue, converting a shared-unit value back into
// token units at the supplied observation. The division truncates.
func amountFromValue(value *uint256.Int, price PriceData) (uint64, error) {
	if price.Price <= 0 {
		return 0, ErrInvalidPrice
	}
	scaled := new(uint256.Int).Set(value)
	scale := valuePrecisionExpo + price.Expo
	if scale >= 0 {
		scaled.Div(scaled, pow10(scale))
	} else {
		scaled.Mul(scaled, pow10(-scale))
	}
	scaled.Div(scaled, uint256.NewInt(uint64(price.Price)))
	if !scaled.IsUint64() {
		return 0, ErrMathOverflow
	}
	return scaled.Uint64(), nil
}

// withinBps reports loanValue <= collateralValue * bps / 10000 without
// dividing, so the comparison is exact.
func withinBps(loanValue, collateralValue *uint256.Int, bps uint64) bool {
	lhs := new(uint256.Int).Mul(loanValue, uint256.NewInt(basisPoints))
	rhs := new(uint256.Int).Mul(collateralValue, uint256.NewInt(bps))
	return !lhs.Gt(rhs)
}

// isHealthy evaluates solvency against the liquidation threshold. A position
// failing this check is eligible for liquidation.
func isHealthy(loanValue, collateralValue *uint256.Int, params PoolParams) bool {
	return withinBps(loanValue, collateralValue, params.LiquidationThresholdBps)
}

// meetsBorrowLimit evaluates the tighter loan-to-value admission check applied
// to borrows and withdrawals.
func meetsBorrowLimit(loanValue, collateralValue *uint256.Int, params PoolParams) bool {
	return withinBps(loanValue, collateralValue, params.LoanToValueRatioBps)
}

// maxBorrowable solves the loan-to-value inequality for the additional amount
// a same-asset position can borrow.
func maxBorrowable(position *Position, params PoolParams) (uint64, error) {
	limit, err := mulDiv(position.Collateral, params.LoanToValueRatioBps, basisPoints)
	if err != nil {
		return 0, err
	}
	if position.Loan >= limit {
		return 0, nil
	}
	return limit - position.Loan, nil
}

// maxWithdrawable solves the loan-to-value inequality for the collateral a
// same-asset position can release while keeping existing debt admissible.
func maxWithdrawable(position *Position, params PoolParams) (uint64, error) {
	if position.Loan == 0 {
		return position.Collateral, nil
	}
	// Smallest collateral for which loan*10000 <= collateral*ltv holds.
	scaled := new(uint256.Int).Mul(uint256.NewInt(position.Loan), uint256.NewInt(basisPoints))
	ltv := uint256.NewInt(params.LoanToValueRatioBps)
	required := new(uint256.Int).Div(scaled, ltv)
	if new(uint256.Int).Mod(scaled, ltv).Sign() != 0 {
		required.AddUint64(required, 1)
	}
	if !required.IsUint64() {
		return 0, ErrMathOverflow
	}
	needed := required.Uint64()
	if needed >= position.Collateral {
		return 0, nil
	}
	return position.Collateral - needed, nil
}
