package lending

import (
	"lendledger/core/events"
	"lendledger/crypto"
	nativecommon "lendledger/native/common"
)

// InitializeMarket creates the singleton market config with the caller as
// governance authority. It can only run once.
func (e *Engine) InitializeMarket(authority crypto.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.run(func() error {
		existing, err := e.state.MarketConfig()
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrMarketAlreadyInitialized
		}
		config := &MarketConfig{
			GovernanceAuthority: authority,
			Status:              nativecommon.StatusActive,
		}
		if err := e.state.PutMarketConfig(config); err != nil {
			return err
		}
		e.emit(events.MarketInitialized{Authority: authority})
		return nil
	})
}

// requireGovernance loads the market config and checks the caller against the
// governance authority.
func (e *Engine) requireGovernance(caller crypto.Address) (*MarketConfig, error) {
	config, err := e.market()
	if err != nil {
		return nil, err
	}
	if !config.GovernanceAuthority.Equal(caller) {
		return nil, ErrNotGovernance
	}
	return config, nil
}

// AddAssetPool registers a new pool. The vault address is derived from the
// protocol identity and pool identifier, so registration carries no custody
// key material.
func (e *Engine) AddAssetPool(caller crypto.Address, poolID, asset, priceFeed, secondaryPriceFeed string, params PoolParams) (*AssetPool, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	var created *AssetPool
	err := e.run(func() error {
		config, err := e.requireGovernance(caller)
		if err != nil {
			return err
		}
		id := normalizePoolID(poolID)
		if id == "" || asset == "" || priceFeed == "" {
			return ErrInvalidOperation
		}
		if len(config.Pools) >= MaxPools {
			return ErrMaxAssetsExceeded
		}
		if config.HasPool(id) {
			return ErrPoolExists
		}
		existing, err := e.state.Pool(id)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrPoolExists
		}
		pool := &AssetPool{
			ID:                 id,
			Asset:              asset,
			Vault:              VaultAddress(e.protocolIdentity, id),
			PriceFeed:          priceFeed,
			SecondaryPriceFeed: secondaryPriceFeed,
			LastInterestUpdate: e.nowFn(),
		}
		if err := pool.ApplyParams(params); err != nil {
			return err
		}
		config.Pools = append(config.Pools, id)
		if err := e.state.PutMarketConfig(config); err != nil {
			return err
		}
		if err := e.state.PutPool(pool); err != nil {
			return err
		}
		created = pool
		e.emit(events.PoolAdded{PoolID: id, Asset: asset})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateAssetPool replaces a pool's risk parameters after accruing interest
// under the outgoing curve.
func (e *Engine) UpdateAssetPool(caller crypto.Address, poolID string, params PoolParams) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.run(func() error {
		if _, err := e.requireGovernance(caller); err != nil {
			return err
		}
		pool, err := e.pool(poolID)
		if err != nil {
			return err
		}
		if err := pool.AccrueInterest(e.nowFn()); err != nil {
			return err
		}
		if err := pool.ApplyParams(params); err != nil {
			return err
		}
		if err := e.state.PutPool(pool); err != nil {
			return err
		}
		e.emit(events.PoolUpdated{PoolID: pool.ID})
		return nil
	})
}

// Pause halts all user operations.
func (e *Engine) Pause(caller crypto.Address) error {
	return e.setStatus(caller, nativecommon.StatusPaused, events.ProtocolPaused{})
}

// Unpause restores the fully active mode.
func (e *Engine) Unpause(caller crypto.Address) error {
	return e.setStatus(caller, nativecommon.StatusActive, events.ProtocolUnpaused{})
}

// EnableWithdrawOnlyMode restricts the market to withdrawals and repayments.
func (e *Engine) EnableWithdrawOnlyMode(caller crypto.Address) error {
	return e.setStatus(caller, nativecommon.StatusWithdrawOnly, events.WithdrawOnlyEnabled{})
}

func (e *Engine) setStatus(caller crypto.Address, status nativecommon.ProtocolStatus, evt events.Event) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.run(func() error {
		config, err := e.requireGovernance(caller)
		if err != nil {
			return err
		}
		config.Status = status
		if err := e.state.PutMarketConfig(config); err != nil {
			return err
		}
		e.emit(evt)
		return nil
	})
}

// UpdateGovernanceAuthority hands control of the market to a new address.
func (e *Engine) UpdateGovernanceAuthority(caller, next crypto.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.run(func() error {
		config, err := e.requireGovernance(caller)
		if err != nil {
			return err
		}
		if next.IsZero() {
			return ErrInvalidOperation
		}
		previous := config.GovernanceAuthority
		config.GovernanceAuthority = next
		if err := e.state.PutMarketConfig(config); err != nil {
			return err
		}
		e.emit(events.AuthorityChanged{OldAuthority: previous, NewAuthority: next})
		return nil
	})
}

// CollectProtocolFees sweeps accrued protocol fees from a pool vault to the
// recipient. The sweep is capped by both the fee accrual and the vault's idle
// liquidity.
func (e *Engine) CollectProtocolFees(caller crypto.Address, poolID string, recipient crypto.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	var swept uint64
	err := e.run(func() error {
		if _, err := e.requireGovernance(caller); err != nil {
			return err
		}
		pool, err := e.pool(poolID)
		if err != nil {
			return err
		}
		if err := pool.AccrueInterest(e.nowFn()); err != nil {
			return err
		}
		available, err := e.vaultBalance(pool)
		if err != nil {
			return err
		}
		amount := minUint64(pool.AccruedProtocolFees, available)
		if amount == 0 {
			swept = 0
			return e.state.PutPool(pool)
		}
		if err := e.debitAccount(pool.Vault, pool.Asset, amount); err != nil {
			return err
		}
		if err := e.creditAccount(recipient, pool.Asset, amount); err != nil {
			return err
		}
		pool.AccruedProtocolFees -= amount
		if err := e.state.PutPool(pool); err != nil {
			return err
		}
		swept = amount
		e.emit(events.FeesCollected{PoolID: pool.ID, Recipient: recipient, Amount: amount})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return swept, nil
}

// FundAccount mints balance into an account. Restricted to governance; it
// exists so deployments can seed liquidity without an external token bridge.
func (e *Engine) FundAccount(caller, recipient crypto.Address, asset string, amount uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.run(func() error {
		if _, err := e.requireGovernance(caller); err != nil {
			return err
		}
		if amount == 0 {
			return ErrZeroAmount
		}
		if asset == "" {
			return ErrInvalidOperation
		}
		return e.creditAccount(recipient, asset, amount)
	})
}
