package lendingd

import (
	"errors"
	"net/http"

	nativecommon "lendledger/native/common"
	"lendledger/native/lending"
)

// statusForError maps engine failures onto HTTP status codes. Anything
// unrecognised is treated as an internal error.
func statusForError(err error) int {
	switch {
	case errors.Is(err, lending.ErrZeroAmount),
		errors.Is(err, lending.ErrInvalidOperation),
		errors.Is(err, lending.ErrInvalidLTV),
		errors.Is(err, lending.ErrInvalidLiquidationThreshold),
		errors.Is(err, lending.ErrInvalidOptimalUtilization):
		return http.StatusBadRequest
	case errors.Is(err, lending.ErrNotGovernance),
		errors.Is(err, lending.ErrCannotLiquidateSelf):
		return http.StatusForbidden
	case errors.Is(err, lending.ErrMarketNotInitialized),
		errors.Is(err, lending.ErrPoolNotFound),
		errors.Is(err, lending.ErrPositionNotFound),
		errors.Is(err, lending.ErrDelegationNotFound):
		return http.StatusNotFound
	case errors.Is(err, lending.ErrMarketAlreadyInitialized),
		errors.Is(err, lending.ErrPoolExists),
		errors.Is(err, lending.ErrPositionExists),
		errors.Is(err, lending.ErrDelegationIsActive):
		return http.StatusConflict
	case errors.Is(err, nativecommon.ErrProtocolPaused),
		errors.Is(err, nativecommon.ErrProtocolNotActive):
		return http.StatusLocked
	case errors.Is(err, lending.ErrInsufficientCollateral),
		errors.Is(err, lending.ErrInsufficientBalance),
		errors.Is(err, lending.ErrInsufficientLiquidity),
		errors.Is(err, lending.ErrPositionWouldBecomeUnhealthy),
		errors.Is(err, lending.ErrPositionHealthy),
		errors.Is(err, lending.ErrInsufficientCollateralForLiquidation),
		errors.Is(err, lending.ErrNoDebtToRepay),
		errors.Is(err, lending.ErrDelegationMismatch),
		errors.Is(err, lending.ErrDelegationExceeded),
		errors.Is(err, lending.ErrMaxAssetsExceeded),
		errors.Is(err, lending.ErrMathOverflow),
		errors.Is(err, lending.ErrFlashLoanNotAvailable),
		errors.Is(err, lending.ErrFlashLoanReentrancy),
		errors.Is(err, lending.ErrFlashLoanRepaymentFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lending.ErrAllOraclesFailed),
		errors.Is(err, lending.ErrPriceTooOld),
		errors.Is(err, lending.ErrConfidenceTooWide),
		errors.Is(err, lending.ErrInvalidPrice):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
