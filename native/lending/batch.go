package lending

import (
	"lendledger/core/events"
	"lendledger/crypto"
	nativecommon "lendledger/native/common"
)

// ExecuteOperations applies an ordered sequence of position operations
// atomically. Each operation sees the state left by its predecessors, so a
// deposit earlier in the batch backs a borrow later in it. Interest is
// refreshed and the oracle consulted once before the first operation; every
// value check in the batch uses that single observation. Any failure reverts
// the whole batch.
func (e *Engine) ExecuteOperations(user crypto.Address, poolID string, operations []Operation) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.run(func() error {
		if len(operations) == 0 {
			return ErrInvalidOperation
		}
		ctx, err := e.beginUserOp(user, poolID, nativecommon.GuardActive)
		if err != nil {
			return err
		}
		if _, err := e.contextPrice(ctx); err != nil {
			return err
		}
		for _, op := range operations {
			if op.Amount == 0 {
				return ErrInvalidOperation
			}
			switch op.Kind {
			case OpDeposit:
				err = e.applyDeposit(ctx, op.Amount)
			case OpWithdraw:
				err = e.applyWithdraw(ctx, op.Amount)
			case OpBorrow:
				err = e.applyBorrow(ctx, op.Amount)
			case OpRepay:
				// Repaying with nothing owed is a no-op, so batches built
				// around a worst-case debt estimate still settle.
				if ctx.position.Loan > 0 {
					_, err = e.applyRepay(ctx, op.Amount)
				}
			default:
				err = ErrInvalidOperation
			}
			if err != nil {
				return err
			}
		}
		if err := e.persistUserOp(ctx); err != nil {
			return err
		}
		e.emit(events.OperationsExecuted{PoolID: ctx.pool.ID, User: user, Count: len(operations)})
		return nil
	})
}
