package lending

import (
	"lendledger/core/events"
	"lendledger/crypto"
	nativecommon "lendledger/native/common"
)

// ApproveDelegation opens (or resets) a credit line from owner to delegatee
// against the owner's position in the pool.
func (e *Engine) ApproveDelegation(owner, delegatee crypto.Address, poolID string, amount uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.run(func() error {
		config, err := e.market()
		if err != nil {
			return err
		}
		if err := nativecommon.GuardActive(config.Status); err != nil {
			return err
		}
		pool, err := e.pool(poolID)
		if err != nil {
			return err
		}
		if amount == 0 {
			return ErrZeroAmount
		}
		if owner.Equal(delegatee) || delegatee.IsZero() {
			return ErrDelegationMismatch
		}
		// The owner must hold a position the credit line is drawn against.
		if _, err := e.position(pool.ID, owner); err != nil {
			return err
		}
		existing, err := e.state.Delegation(owner, pool.ID, delegatee)
		if err != nil {
			return err
		}
		if existing != nil && existing.RemainingAmount < existing.InitialAmount {
			return ErrDelegationIsActive
		}
		delegation := &CreditDelegation{
			Owner:           owner,
			Delegatee:       delegatee,
			PoolID:          pool.ID,
			InitialAmount:   amount,
			RemainingAmount: amount,
		}
		if err := e.state.PutDelegation(delegation); err != nil {
			return err
		}
		e.emit(events.DelegationUpdated{Owner: owner, Delegatee: delegatee, PoolID: pool.ID, Amount: amount})
		return nil
	})
}

// RevokeDelegation removes an unused credit line. A line that has been drawn
// against cannot be revoked until the owner's debt is repaid and a fresh
// approval resets it.
func (e *Engine) RevokeDelegation(owner, delegatee crypto.Address, poolID string) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.run(func() error {
		if _, err := e.market(); err != nil {
			return err
		}
		pool, err := e.pool(poolID)
		if err != nil {
			return err
		}
		delegation, err := e.state.Delegation(owner, pool.ID, delegatee)
		if err != nil {
			return err
		}
		if delegation == nil {
			return ErrDelegationNotFound
		}
		if delegation.RemainingAmount < delegation.InitialAmount {
			return ErrDelegationIsActive
		}
		if err := e.state.DeleteDelegation(owner, pool.ID, delegatee); err != nil {
			return err
		}
		e.emit(events.DelegationUpdated{Owner: owner, Delegatee: delegatee, PoolID: pool.ID, Amount: 0})
		return nil
	})
}

// BorrowDelegated lets the delegatee draw the credit line: the owner's
// position takes on the debt, the delegatee receives the funds.
func (e *Engine) BorrowDelegated(delegatee, owner crypto.Address, poolID string, amount uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.run(func() error {
		config, err := e.market()
		if err != nil {
			return err
		}
		if err := nativecommon.GuardActive(config.Status); err != nil {
			return err
		}
		pool, err := e.pool(poolID)
		if err != nil {
			return err
		}
		if amount == 0 {
			return ErrZeroAmount
		}
		delegation, err := e.state.Delegation(owner, pool.ID, delegatee)
		if err != nil {
			return err
		}
		if delegation == nil {
			return ErrDelegationNotFound
		}
		if !delegation.Owner.Equal(owner) || !delegation.Delegatee.Equal(delegatee) {
			return ErrDelegationMismatch
		}
		if amount > delegation.RemainingAmount {
			return ErrDelegationExceeded
		}

		if err := pool.AccrueInterest(e.nowFn()); err != nil {
			return err
		}
		position, err := e.position(pool.ID, owner)
		if err != nil {
			return err
		}
		newLoan, err := checkedAdd(position.Loan, amount)
		if err != nil {
			return err
		}
		available, err := e.vaultBalance(pool)
		if err != nil {
			return err
		}
		if available < amount {
			return ErrInsufficientLiquidity
		}
		price, err := e.resolvePoolPrice(pool)
		if err != nil {
			return err
		}
		loanValue := assetValue(newLoan, price)
		collateralValue := assetValue(position.Collateral, price)
		if !meetsBorrowLimit(loanValue, collateralValue, pool.Params) {
			return ErrPositionWouldBecomeUnhealthy
		}

		if err := e.debitAccount(pool.Vault, pool.Asset, amount); err != nil {
			return err
		}
		if err := e.creditAccount(delegatee, pool.Asset, amount); err != nil {
			return err
		}
		delegation.RemainingAmount -= amount
		position.Loan = newLoan
		if pool.TotalLoans, err = checkedAdd(pool.TotalLoans, amount); err != nil {
			return err
		}
		if err := e.state.PutDelegation(delegation); err != nil {
			return err
		}
		if err := e.state.PutPosition(position); err != nil {
			return err
		}
		if err := e.state.PutPool(pool); err != nil {
			return err
		}
		e.emit(events.BorrowedDelegated{PoolID: pool.ID, Owner: owner, Delegatee: delegatee, Amount: amount})
		return nil
	})
}
