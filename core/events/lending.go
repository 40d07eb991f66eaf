package events

import (
	"strconv"

	"lendledger/core/types"
	"lendledger/crypto"
)

const (
	// TypeLendingMarketInitialized is emitted when the market config is created.
	TypeLendingMarketInitialized = "lending.market.initialized"
	// TypeLendingAuthorityChanged is emitted on governance authority transfer.
	TypeLendingAuthorityChanged = "lending.market.authorityChanged"
	// TypeLendingProtocolPaused is emitted when governance pauses the protocol.
	TypeLendingProtocolPaused = "lending.market.paused"
	// TypeLendingProtocolUnpaused is emitted when governance resumes the protocol.
	TypeLendingProtocolUnpaused = "lending.market.unpaused"
	// TypeLendingWithdrawOnly is emitted when withdraw-only mode is enabled.
	TypeLendingWithdrawOnly = "lending.market.withdrawOnly"
	// TypeLendingPoolAdded is emitted when a pool is registered.
	TypeLendingPoolAdded = "lending.pool.added"
	// TypeLendingPoolUpdated is emitted when pool risk parameters change.
	TypeLendingPoolUpdated = "lending.pool.updated"
	// TypeLendingFeesCollected is emitted when protocol fees are swept.
	TypeLendingFeesCollected = "lending.pool.feesCollected"
	// TypeLendingDeposited is emitted on collateral deposits.
	TypeLendingDeposited = "lending.deposited"
	// TypeLendingWithdrawn is emitted on collateral withdrawals.
	TypeLendingWithdrawn = "lending.withdrawn"
	// TypeLendingBorrowed is emitted on borrows.
	TypeLendingBorrowed = "lending.borrowed"
	// TypeLendingRepaid is emitted on repayments.
	TypeLendingRepaid = "lending.repaid"
	// TypeLendingLiquidation is emitted when a position is liquidated.
	TypeLendingLiquidation = "lending.liquidation"
	// TypeLendingFlashLoaned is emitted after a flash loan settles.
	TypeLendingFlashLoaned = "lending.flashLoaned"
	// TypeLendingDelegationUpdated is emitted on delegation approve/revoke.
	TypeLendingDelegationUpdated = "lending.delegation.updated"
	// TypeLendingBorrowedDelegated is emitted when a delegatee draws a credit line.
	TypeLendingBorrowedDelegated = "lending.borrowedDelegated"
	// TypeLendingOperationsExecuted is emitted after a batch completes.
	TypeLendingOperationsExecuted = "lending.operationsExecuted"
	// TypeLendingOracleFailed is emitted when no feed yields a usable price.
	TypeLendingOracleFailed = "lending.oracle.failed"
)

type MarketInitialized struct {
	Authority crypto.Address
}

func (MarketInitialized) EventType() string { return TypeLendingMarketInitialized }

func (e MarketInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingMarketInitialized,
		Attributes: map[string]string{
			"authority": e.Authority.String(),
		},
	}
}

type AuthorityChanged struct {
	OldAuthority crypto.Address
	NewAuthority crypto.Address
}

func (AuthorityChanged) EventType() string { return TypeLendingAuthorityChanged }

func (e AuthorityChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingAuthorityChanged,
		Attributes: map[string]string{
			"oldAuthority": e.OldAuthority.String(),
			"newAuthority": e.NewAuthority.String(),
		},
	}
}

type ProtocolPaused struct{}

func (ProtocolPaused) EventType() string { return TypeLendingProtocolPaused }

type ProtocolUnpaused struct{}

func (ProtocolUnpaused) EventType() string { return TypeLendingProtocolUnpaused }

type WithdrawOnlyEnabled struct{}

func (WithdrawOnlyEnabled) EventType() string { return TypeLendingWithdrawOnly }

type PoolAdded struct {
	PoolID string
	Asset  string
}

func (PoolAdded) EventType() string { return TypeLendingPoolAdded }

func (e PoolAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingPoolAdded,
		Attributes: map[string]string{
			"pool":  e.PoolID,
			"asset": e.Asset,
		},
	}
}

type PoolUpdated struct {
	PoolID string
}

func (PoolUpdated) EventType() string { return TypeLendingPoolUpdated }

type FeesCollected struct {
	PoolID    string
	Recipient crypto.Address
	Amount    uint64
}

func (FeesCollected) EventType() string { return TypeLendingFeesCollected }

func (e FeesCollected) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingFeesCollected,
		Attributes: map[string]string{
			"pool":      e.PoolID,
			"recipient": e.Recipient.String(),
			"amount":    strconv.FormatUint(e.Amount, 10),
		},
	}
}

type Deposited struct {
	PoolID string
	User   crypto.Address
	Amount uint64
}

func (Deposited) EventType() string { return TypeLendingDeposited }

func (e Deposited) Event() *types.Event {
	return positionEvent(TypeLendingDeposited, e.PoolID, e.User, e.Amount)
}

type Withdrawn struct {
	PoolID string
	User   crypto.Address
	Amount uint64
}

func (Withdrawn) EventType() string { return TypeLendingWithdrawn }

func (e Withdrawn) Event() *types.Event {
	return positionEvent(TypeLendingWithdrawn, e.PoolID, e.User, e.Amount)
}

type Borrowed struct {
	PoolID string
	User   crypto.Address
	Amount uint64
}

func (Borrowed) EventType() string { return TypeLendingBorrowed }

func (e Borrowed) Event() *types.Event {
	return positionEvent(TypeLendingBorrowed, e.PoolID, e.User, e.Amount)
}

type Repaid struct {
	PoolID string
	User   crypto.Address
	Amount uint64
}

func (Repaid) EventType() string { return TypeLendingRepaid }

func (e Repaid) Event() *types.Event {
	return positionEvent(TypeLendingRepaid, e.PoolID, e.User, e.Amount)
}

type LiquidationSettled struct {
	CollateralPoolID string
	LoanPoolID       string
	Liquidator       crypto.Address
	Borrower         crypto.Address
	RepayAmount      uint64
	SeizedCollateral uint64
}

func (LiquidationSettled) EventType() string { return TypeLendingLiquidation }

func (e LiquidationSettled) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingLiquidation,
		Attributes: map[string]string{
			"collateralPool": e.CollateralPoolID,
			"loanPool":       e.LoanPoolID,
			"liquidator":     e.Liquidator.String(),
			"borrower":       e.Borrower.String(),
			"repayAmount":    strconv.FormatUint(e.RepayAmount, 10),
			"seizedAmount":   strconv.FormatUint(e.SeizedCollateral, 10),
		},
	}
}

type FlashLoaned struct {
	PoolID   string
	Receiver crypto.Address
	Amount   uint64
	Fee      uint64
}

func (FlashLoaned) EventType() string { return TypeLendingFlashLoaned }

func (e FlashLoaned) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingFlashLoaned,
		Attributes: map[string]string{
			"pool":     e.PoolID,
			"receiver": e.Receiver.String(),
			"amount":   strconv.FormatUint(e.Amount, 10),
			"fee":      strconv.FormatUint(e.Fee, 10),
		},
	}
}

type DelegationUpdated struct {
	Owner     crypto.Address
	Delegatee crypto.Address
	PoolID    string
	Amount    uint64
}

func (DelegationUpdated) EventType() string { return TypeLendingDelegationUpdated }

func (e DelegationUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingDelegationUpdated,
		Attributes: map[string]string{
			"owner":     e.Owner.String(),
			"delegatee": e.Delegatee.String(),
			"pool":      e.PoolID,
			"amount":    strconv.FormatUint(e.Amount, 10),
		},
	}
}

type BorrowedDelegated struct {
	PoolID    string
	Owner     crypto.Address
	Delegatee crypto.Address
	Amount    uint64
}

func (BorrowedDelegated) EventType() string { return TypeLendingBorrowedDelegated }

func (e BorrowedDelegated) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingBorrowedDelegated,
		Attributes: map[string]string{
			"pool":      e.PoolID,
			"owner":     e.Owner.String(),
			"delegatee": e.Delegatee.String(),
			"amount":    strconv.FormatUint(e.Amount, 10),
		},
	}
}

type OperationsExecuted struct {
	PoolID string
	User   crypto.Address
	Count  int
}

func (OperationsExecuted) EventType() string { return TypeLendingOperationsExecuted }

func (e OperationsExecuted) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingOperationsExecuted,
		Attributes: map[string]string{
			"pool":       e.PoolID,
			"user":       e.User.String(),
			"operations": strconv.Itoa(e.Count),
		},
	}
}

type OracleFailed struct {
	PoolID string
	Feed   string
	Reason string
}

func (OracleFailed) EventType() string { return TypeLendingOracleFailed }

func (e OracleFailed) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingOracleFailed,
		Attributes: map[string]string{
			"pool":   e.PoolID,
			"feed":   e.Feed,
			"reason": e.Reason,
		},
	}
}

func positionEvent(eventType, poolID string, user crypto.Address, amount uint64) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"pool":   poolID,
			"user":   user.String(),
			"amount": strconv.FormatUint(amount, 10),
		},
	}
}
