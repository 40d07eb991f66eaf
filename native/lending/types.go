package lending

import (
	"strings"

	"lendledger/crypto"
	nativecommon "lendledger/native/common"
)

// MaxPools caps the number of asset pools a market may register.
const MaxPools = 32

// MarketConfig is the singleton governance record for the lending market.
type MarketConfig struct {
	GovernanceAuthority crypto.Address              `json:"governanceAuthority"`
	Status              nativecommon.ProtocolStatus `json:"status"`
	Pools               []string                    `json:"pools"`
}

// HasPool reports whether the registry already contains the identifier.
func (m *MarketConfig) HasPool(poolID string) bool {
	if m == nil {
		return false
	}
	for _, id := range m.Pools {
		if id == poolID {
			return true
		}
	}
	return false
}

// PoolParams bundles the per-pool risk and rate parameters, all expressed in
// basis points.
type PoolParams struct {
	LoanToValueRatioBps     uint64 `json:"loanToValueRatioBps"`
	LiquidationThresholdBps uint64 `json:"liquidationThresholdBps"`
	BaseRateBps             uint64 `json:"baseRateBps"`
	OptimalUtilizationBps   uint64 `json:"optimalUtilizationBps"`
	Slope1Bps               uint64 `json:"slope1Bps"`
	Slope2Bps               uint64 `json:"slope2Bps"`
	ProtocolFeeBps          uint64 `json:"protocolFeeBps"`
	FlashLoanFeeBps         uint64 `json:"flashLoanFeeBps"`
	FlashLoansEnabled       bool   `json:"flashLoansEnabled"`
}

// Validate enforces parameter sanity: the loan-to-value limit must sit
// strictly below the liquidation threshold, which in turn sits strictly below
// 100%, and the interest kink must fall below full utilisation. A zero
// loan-to-value limit is allowed and makes the pool deposit-only.
func (p PoolParams) Validate() error {
	if p.LoanToValueRatioBps >= basisPoints {
		return ErrInvalidLTV
	}
	if p.LiquidationThresholdBps <= p.LoanToValueRatioBps || p.LiquidationThresholdBps >= basisPoints {
		return ErrInvalidLiquidationThreshold
	}
	if p.OptimalUtilizationBps == 0 || p.OptimalUtilizationBps >= basisPoints {
		return ErrInvalidOptimalUtilization
	}
	return nil
}

// AssetPool tracks aggregate liquidity and accrual state for one asset.
type AssetPool struct {
	ID                  string         `json:"id"`
	Asset               string         `json:"asset"`
	Vault               crypto.Address `json:"vault"`
	PriceFeed           string         `json:"priceFeed"`
	SecondaryPriceFeed  string         `json:"secondaryPriceFeed,omitempty"`
	TotalDeposits       uint64         `json:"totalDeposits"`
	TotalLoans          uint64         `json:"totalLoans"`
	AccruedProtocolFees uint64         `json:"accruedProtocolFees"`
	LastInterestUpdate  int64          `json:"lastInterestUpdate"`
	Params              PoolParams     `json:"params"`
}

// ApplyParams validates and installs a new parameter set on the pool.
func (p *AssetPool) ApplyParams(params PoolParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	p.Params = params
	return nil
}

// Position records one user's collateral and debt within a single pool.
type Position struct {
	Owner      crypto.Address `json:"owner"`
	PoolID     string         `json:"poolId"`
	Collateral uint64         `json:"collateral"`
	Loan       uint64         `json:"loan"`
}

// CreditDelegation lets an owner extend a revocable borrowing line, backed by
// the owner's collateral, to a delegatee.
type CreditDelegation struct {
	Owner           crypto.Address `json:"owner"`
	Delegatee       crypto.Address `json:"delegatee"`
	PoolID          string         `json:"poolId"`
	InitialAmount   uint64         `json:"initialAmount"`
	RemainingAmount uint64         `json:"remainingAmount"`
}

// OperationKind enumerates the position operations a batch may contain.
type OperationKind string

const (
	OpDeposit  OperationKind = "deposit"
	OpWithdraw OperationKind = "withdraw"
	OpBorrow   OperationKind = "borrow"
	OpRepay    OperationKind = "repay"
)

// Operation is one step of an atomic batch.
type Operation struct {
	Kind   OperationKind `json:"kind"`
	Amount uint64        `json:"amount"`
}

func normalizePoolID(poolID string) string {
	return strings.ToLower(strings.TrimSpace(poolID))
}
