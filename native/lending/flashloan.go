package lending

import (
	"lendledger/core/events"
	"lendledger/crypto"
	nativecommon "lendledger/native/common"
)

// FlashLoanReceiver is the in-process callback a flash loan borrower
// implements. Identity names the account the borrowed funds are credited to;
// ExecuteOperation runs with the funds available and must leave the vault
// repaid (principal plus fee) before returning.
type FlashLoanReceiver interface {
	Identity() crypto.Address
	ExecuteOperation(amount, fee uint64, payload []byte) error
}

// FlashLoan lends vault liquidity to the receiver for the duration of the
// callback. The vault balance is checked after the callback returns: anything
// short of principal plus fee unwinds every mutation the callback made. The
// actual balance delta above principal is kept as protocol fees.
func (e *Engine) FlashLoan(poolID string, receiver FlashLoanReceiver, amount uint64, payload []byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if receiver == nil {
		return 0, ErrInvalidOperation
	}
	if e.flashActive {
		return 0, ErrFlashLoanReentrancy
	}
	e.flashActive = true
	defer func() { e.flashActive = false }()

	var earned uint64
	err := e.run(func() error {
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
		// A non-zero fee or the explicit capability flag enables the pool.
		if !pool.Params.FlashLoansEnabled && pool.Params.FlashLoanFeeBps == 0 {
			return ErrFlashLoanNotAvailable
		}
		identity := receiver.Identity()
		if identity.Equal(e.protocolIdentity) || identity.Equal(pool.Vault) {
			return ErrFlashLoanReentrancy
		}

		fee, err := mulDiv(amount, pool.Params.FlashLoanFeeBps, basisPoints)
		if err != nil {
			return err
		}
		balanceBefore, err := e.vaultBalance(pool)
		if err != nil {
			return err
		}
		if balanceBefore < amount {
			return ErrInsufficientLiquidity
		}

		if err := e.debitAccount(pool.Vault, pool.Asset, amount); err != nil {
			return err
		}
		if err := e.creditAccount(identity, pool.Asset, amount); err != nil {
			return err
		}

		if err := receiver.ExecuteOperation(amount, fee, payload); err != nil {
			return err
		}

		balanceAfter, err := e.vaultBalance(pool)
		if err != nil {
			return err
		}
		expected, err := checkedAdd(balanceBefore, fee)
		if err != nil {
			return err
		}
		if balanceAfter < expected {
			return ErrFlashLoanRepaymentFailed
		}

		// Anything the receiver returned above the pre-loan balance is
		// booked as fee income for depositors and the protocol.
		earned = balanceAfter - balanceBefore
		if pool.AccruedProtocolFees, err = checkedAdd(pool.AccruedProtocolFees, earned); err != nil {
			return err
		}
		if pool.TotalDeposits, err = checkedAdd(pool.TotalDeposits, earned); err != nil {
			return err
		}
		if err := e.state.PutPool(pool); err != nil {
			return err
		}
		e.emit(events.FlashLoaned{PoolID: pool.ID, Receiver: identity, Amount: amount, Fee: earned})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return earned, nil
}
