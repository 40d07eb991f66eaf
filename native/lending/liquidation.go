package lending

import (
	"github.com/holiman/uint256"

	"lendledger/core/events"
	"lendledger/crypto"
	nativecommon "lendledger/native/common"
)

const (
	// liquidationBonusBps is the incentive margin a liquidator earns on top
	// of the repaid value, expressed in basis points.
	liquidationBonusBps = 500
	// maxLiquidationRatioBps caps how much of the outstanding debt a single
	// liquidation may repay.
	maxLiquidationRatioBps = 5_000
)

// LiquidationResult reports the settled amounts of a liquidation.
type LiquidationResult struct {
	RepaidAmount     uint64
	SeizedCollateral uint64
}

// Liquidate settles an undercollateralized borrower. The liquidator repays up
// to half of the outstanding debt into the loan pool vault and receives the
// equivalent collateral value plus a fixed bonus from the collateral pool
// vault. Collateral and loan pool may be the same pool.
func (e *Engine) Liquidate(liquidator, borrower crypto.Address, collateralPoolID, loanPoolID string, amountToRepay uint64) (*LiquidationResult, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	var result *LiquidationResult
	err := e.run(func() error {
		config, err := e.market()
		if err != nil {
			return err
		}
		if err := nativecommon.GuardActive(config.Status); err != nil {
			return err
		}
		if liquidator.Equal(borrower) {
			return ErrCannotLiquidateSelf
		}

		collateralPool, err := e.pool(collateralPoolID)
		if err != nil {
			return err
		}
		var loanPool *AssetPool
		if collateralPool.ID == normalizePoolID(loanPoolID) {
			loanPool = collateralPool
		} else {
			loanPool, err = e.pool(loanPoolID)
			if err != nil {
				return err
			}
		}
		now := e.nowFn()
		if err := collateralPool.AccrueInterest(now); err != nil {
			return err
		}
		if loanPool != collateralPool {
			if err := loanPool.AccrueInterest(now); err != nil {
				return err
			}
		}

		collateralPosition, err := e.position(collateralPool.ID, borrower)
		if err != nil {
			return err
		}
		var loanPosition *Position
		if loanPool == collateralPool {
			loanPosition = collateralPosition
		} else {
			loanPosition, err = e.position(loanPool.ID, borrower)
			if err != nil {
				return err
			}
		}

		collateralPrice, err := e.resolvePoolPrice(collateralPool)
		if err != nil {
			return err
		}
		var loanPrice PriceData
		if loanPool == collateralPool {
			loanPrice = collateralPrice
		} else {
			loanPrice, err = e.resolvePoolPrice(loanPool)
			if err != nil {
				return err
			}
		}

		loanValue := assetValue(loanPosition.Loan, loanPrice)
		collateralValue := assetValue(collateralPosition.Collateral, collateralPrice)
		if loanValue.IsZero() || isHealthy(loanValue, collateralValue, collateralPool.Params) {
			return ErrPositionHealthy
		}

		maxRepay, err := mulDiv(loanPosition.Loan, maxLiquidationRatioBps, basisPoints)
		if err != nil {
			return err
		}
		repay := minUint64(minUint64(amountToRepay, maxRepay), loanPosition.Loan)
		if repay == 0 {
			return ErrZeroAmount
		}

		// Convert the repaid value into collateral units with the bonus.
		repayValue := assetValue(repay, loanPrice)
		seizeValue := new(uint256.Int).Mul(repayValue, uint256.NewInt(basisPoints+liquidationBonusBps))
		seizeValue.Div(seizeValue, uint256.NewInt(basisPoints))
		seize, err := amountFromValue(seizeValue, collateralPrice)
		if err != nil {
			return err
		}
		if seize > collateralPosition.Collateral {
			return ErrInsufficientCollateralForLiquidation
		}

		if err := e.debitAccount(liquidator, loanPool.Asset, repay); err != nil {
			return err
		}
		if err := e.creditAccount(loanPool.Vault, loanPool.Asset, repay); err != nil {
			return err
		}
		if err := e.debitAccount(collateralPool.Vault, collateralPool.Asset, seize); err != nil {
			return err
		}
		if err := e.creditAccount(liquidator, collateralPool.Asset, seize); err != nil {
			return err
		}

		loanPosition.Loan -= repay
		if collateralPosition.Collateral, err = checkedSub(collateralPosition.Collateral, seize); err != nil {
			return err
		}
		if loanPool.TotalLoans, err = checkedSub(loanPool.TotalLoans, repay); err != nil {
			return err
		}
		if collateralPool.TotalDeposits, err = checkedSub(collateralPool.TotalDeposits, seize); err != nil {
			return err
		}

		if err := e.state.PutPool(collateralPool); err != nil {
			return err
		}
		if loanPool != collateralPool {
			if err := e.state.PutPool(loanPool); err != nil {
				return err
			}
		}
		if err := e.state.PutPosition(collateralPosition); err != nil {
			return err
		}
		if loanPosition != collateralPosition {
			if err := e.state.PutPosition(loanPosition); err != nil {
				return err
			}
		}

		result = &LiquidationResult{RepaidAmount: repay, SeizedCollateral: seize}
		e.emit(events.LiquidationSettled{
			CollateralPoolID: collateralPool.ID,
			LoanPoolID:       loanPool.ID,
			Liquidator:       liquidator,
			Borrower:         borrower,
			RepayAmount:      repay,
			SeizedCollateral: seize,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
