package lending

import "github.com/holiman/uint256"

// utilizationBps reports borrowed funds as a share of total deposits in basis
// points. An empty pool has zero utilisation.
func utilizationBps(totalLoans, totalDeposits uint64) (uint64, error) {
	if totalDeposits == 0 {
		return 0, nil
	}
	return mulDiv(totalLoans, basisPoints, totalDeposits)
}

// borrowRateBps evaluates the kinked rate curve: below the optimal
// utilisation the rate climbs along slope1, above it slope2 takes over from
// the kink rate.
func borrowRateBps(params PoolParams, utilBps uint64) (uint64, error) {
	if utilBps <= params.OptimalUtilizationBps {
		slope, err := mulDiv(params.Slope1Bps, utilBps, params.OptimalUtilizationBps)
		if err != nil {
			return 0, err
		}
		return checkedAdd(params.BaseRateBps, slope)
	}
	kinkRate, err := checkedAdd(params.BaseRateBps, params.Slope1Bps)
	if err != nil {
		return 0, err
	}
	excess := utilBps - params.OptimalUtilizationBps
	span := basisPoints - params.OptimalUtilizationBps
	slope, err := mulDiv(params.Slope2Bps, excess, uint64(span))
	if err != nil {
		return 0, err
	}
	return checkedAdd(kinkRate, slope)
}

// AccrueInterest advances the pool's accrual clock to now, compounding the
// borrow rate linearly over the elapsed seconds. The full interest charge is
// added to outstanding loans; the protocol fee share accrues to fees and the
// remainder to deposits as lender yield.
func (p *AssetPool) AccrueInterest(now int64) error {
	if p.LastInterestUpdate == 0 {
		p.LastInterestUpdate = now
		return nil
	}
	if now <= p.LastInterestUpdate {
		return nil
	}
	elapsed := uint64(now - p.LastInterestUpdate)
	p.LastInterestUpdate = now
	if p.TotalLoans == 0 || p.TotalDeposits == 0 {
		return nil
	}

	utilBps, err := utilizationBps(p.TotalLoans, p.TotalDeposits)
	if err != nil {
		return err
	}
	rateBps, err := borrowRateBps(p.Params, utilBps)
	if err != nil {
		return err
	}

	// interest = loans * rate * elapsed / (year * 10000), computed wide.
	numerator := new(uint256.Int).Mul(uint256.NewInt(p.TotalLoans), uint256.NewInt(rateBps))
	numerator.Mul(numerator, uint256.NewInt(elapsed))
	denominator := uint256.NewInt(uint64(secondsPerYear) * basisPoints)
	interest256 := numerator.Div(numerator, denominator)
	if !interest256.IsUint64() {
		return ErrMathOverflow
	}
	interest := interest256.Uint64()
	if interest == 0 {
		return nil
	}

	protocolShare, err := mulDiv(interest, p.Params.ProtocolFeeBps, basisPoints)
	if err != nil {
		return err
	}
	lenderShare := interest - protocolShare

	if p.TotalLoans, err = checkedAdd(p.TotalLoans, interest); err != nil {
		return err
	}
	if p.TotalDeposits, err = checkedAdd(p.TotalDeposits, lenderShare); err != nil {
		return err
	}
	if p.AccruedProtocolFees, err = checkedAdd(p.AccruedProtocolFees, protocolShare); err != nil {
		return err
	}
	return nil
}
