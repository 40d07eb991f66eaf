package lending

import "errors"

var (
	// ErrNilState is returned when the engine is invoked before its
	// persistence layer has been wired.
	ErrNilState = errors.New("lending engine: state not configured")
	// ErrMarketNotInitialized is returned when an operation requires the
	// market config and none exists.
	ErrMarketNotInitialized = errors.New("lending engine: market not initialised")
	// ErrMarketAlreadyInitialized is returned when InitializeMarket is
	// called twice.
	ErrMarketAlreadyInitialized = errors.New("lending engine: market already initialised")
	// ErrNotGovernance is returned when a restricted operation is invoked by
	// an address other than the governance authority.
	ErrNotGovernance = errors.New("lending engine: caller is not the governance authority")
	// ErrZeroAmount is returned when an operation is given a zero amount.
	ErrZeroAmount = errors.New("lending engine: amount must be positive")
	// ErrMathOverflow is returned when ledger arithmetic exceeds the 64-bit
	// token amount range.
	ErrMathOverflow = errors.New("lending engine: arithmetic overflow")
	// ErrInvalidLTV is returned when a loan-to-value ratio is out of range.
	ErrInvalidLTV = errors.New("lending engine: loan-to-value ratio out of range")
	// ErrInvalidLiquidationThreshold is returned when a liquidation
	// threshold does not sit strictly between the LTV and 100%.
	ErrInvalidLiquidationThreshold = errors.New("lending engine: liquidation threshold out of range")
	// ErrInvalidOptimalUtilization is returned when the interest model kink
	// is not below 100% utilisation.
	ErrInvalidOptimalUtilization = errors.New("lending engine: optimal utilisation out of range")
	// ErrMaxAssetsExceeded is returned when the pool registry is full.
	ErrMaxAssetsExceeded = errors.New("lending engine: maximum asset pools exceeded")
	// ErrPoolNotFound is returned when the referenced pool does not exist.
	ErrPoolNotFound = errors.New("lending engine: asset pool not found")
	// ErrPoolExists is returned when adding a pool whose identifier is taken.
	ErrPoolExists = errors.New("lending engine: asset pool already exists")
	// ErrPositionNotFound is returned when the caller has no position in the
	// referenced pool.
	ErrPositionNotFound = errors.New("lending engine: user position not found")
	// ErrPositionExists is returned when creating a position twice.
	ErrPositionExists = errors.New("lending engine: user position already exists")
	// ErrInsufficientCollateral is returned when a withdrawal exceeds the
	// deposited collateral.
	ErrInsufficientCollateral = errors.New("lending engine: insufficient collateral")
	// ErrInsufficientBalance is returned when the caller cannot fund a
	// deposit or repayment.
	ErrInsufficientBalance = errors.New("lending engine: insufficient balance")
	// ErrInsufficientLiquidity is returned when a borrow or flash loan
	// exceeds the pool's idle liquidity.
	ErrInsufficientLiquidity = errors.New("lending engine: insufficient liquidity")
	// ErrPositionWouldBecomeUnhealthy is returned when a borrow or
	// withdrawal would push the position past its loan-to-value limit.
	ErrPositionWouldBecomeUnhealthy = errors.New("lending engine: position would become unhealthy")
	// ErrPositionHealthy is returned when liquidation is attempted against a
	// position above its liquidation threshold.
	ErrPositionHealthy = errors.New("lending engine: position is healthy")
	// ErrCannotLiquidateSelf is returned when a borrower attempts to
	// liquidate their own position.
	ErrCannotLiquidateSelf = errors.New("lending engine: cannot liquidate own position")
	// ErrInsufficientCollateralForLiquidation is returned when the seizure
	// owed to the liquidator exceeds the borrower's collateral.
	ErrInsufficientCollateralForLiquidation = errors.New("lending engine: insufficient collateral for liquidation")
	// ErrNoDebtToRepay is returned when repaying a position with no loan.
	ErrNoDebtToRepay = errors.New("lending engine: no outstanding debt to repay")
	// ErrDelegationNotFound is returned when no matching credit delegation
	// exists.
	ErrDelegationNotFound = errors.New("lending engine: credit delegation not found")
	// ErrDelegationMismatch is returned when a delegated borrow names a
	// delegation whose parties or pool do not match.
	ErrDelegationMismatch = errors.New("lending engine: credit delegation mismatch")
	// ErrDelegationExceeded is returned when a delegated borrow exceeds the
	// remaining approved amount.
	ErrDelegationExceeded = errors.New("lending engine: credit delegation exceeded")
	// ErrDelegationIsActive is returned when revoking a delegation that has
	// already been drawn against.
	ErrDelegationIsActive = errors.New("lending engine: credit delegation is active")
	// ErrInvalidOperation is returned when a batch contains an unknown or
	// malformed operation.
	ErrInvalidOperation = errors.New("lending engine: invalid operation")
	// ErrFlashLoanNotAvailable is returned when flash loans are disabled for
	// the pool.
	ErrFlashLoanNotAvailable = errors.New("lending engine: flash loans not available")
	// ErrFlashLoanReentrancy is returned when a flash loan callback re-enters
	// the engine for another flash loan.
	ErrFlashLoanReentrancy = errors.New("lending engine: flash loan reentrancy")
	// ErrFlashLoanRepaymentFailed is returned when the vault balance after
	// the callback is short of principal plus fee.
	ErrFlashLoanRepaymentFailed = errors.New("lending engine: flash loan repayment failed")
	// ErrAllOraclesFailed is returned when neither the primary nor the
	// secondary price feed yields a usable price.
	ErrAllOraclesFailed = errors.New("lending engine: all price oracles failed")
	// ErrPriceTooOld is returned when a price feed's publish time is beyond
	// the staleness window.
	ErrPriceTooOld = errors.New("lending engine: price is too old")
	// ErrConfidenceTooWide is returned when a price feed's confidence
	// interval exceeds the configured tolerance.
	ErrConfidenceTooWide = errors.New("lending engine: price confidence interval too wide")
	// ErrInvalidPrice is returned when a price feed reports a non-positive
	// price.
	ErrInvalidPrice = errors.New("lending engine: invalid price")
)
