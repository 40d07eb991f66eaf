package lending

import (
	"time"

	"lendledger/core/events"
	"lendledger/core/types"
	"lendledger/crypto"
	nativecommon "lendledger/native/common"
)

// State is the persistence surface the engine mutates. Getters return
// (nil, nil) when the record does not exist. Snapshot and RevertToSnapshot
// give every engine entry point all-or-nothing semantics.
type State interface {
	MarketConfig() (*MarketConfig, error)
	PutMarketConfig(config *MarketConfig) error
	Pool(poolID string) (*AssetPool, error)
	PutPool(pool *AssetPool) error
	Position(poolID string, owner crypto.Address) (*Position, error)
	PutPosition(position *Position) error
	Delegation(owner crypto.Address, poolID string, delegatee crypto.Address) (*CreditDelegation, error)
	PutDelegation(delegation *CreditDelegation) error
	DeleteDelegation(owner crypto.Address, poolID string, delegatee crypto.Address) error
	Account(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// Engine orchestrates the state transitions of the lending market.
type Engine struct {
	state            State
	emitter          events.Emitter
	nowFn            func() int64
	resolver         *priceResolver
	sources          map[string]PriceSource
	protocolIdentity crypto.Address
	flashActive      bool
}

// NewEngine constructs an engine bound to the protocol identity used for
// vault derivation and flash-loan self-checks.
func NewEngine(protocolIdentity crypto.Address) *Engine {
	return &Engine{
		emitter:          events.NoopEmitter{},
		nowFn:            func() int64 { return time.Now().Unix() },
		resolver:         newPriceResolver(),
		sources:          make(map[string]PriceSource),
		protocolIdentity: protocolIdentity,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state State) { e.state = state }

// SetEmitter configures the event sink. A nil emitter silently drops events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used for accrual and staleness checks.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// SetOracleLimits overrides the staleness window (seconds) and confidence
// tolerance (basis points) applied to every feed observation.
func (e *Engine) SetOracleLimits(maxAge int64, maxConfidenceBps uint64) {
	if e == nil {
		return
	}
	if maxAge > 0 {
		e.resolver.maxAge = maxAge
	}
	if maxConfidenceBps > 0 {
		e.resolver.maxConfidenceBps = maxConfidenceBps
	}
}

// RegisterPriceSource binds a feed identifier to a source. Pools reference
// feeds by identifier, so sources can be swapped without touching pool state.
func (e *Engine) RegisterPriceSource(feedID string, source PriceSource) {
	if e == nil || feedID == "" {
		return
	}
	e.sources[feedID] = source
}

// ProtocolIdentity returns the address the engine derives vaults under.
func (e *Engine) ProtocolIdentity() crypto.Address { return e.protocolIdentity }

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

// run executes fn under a state snapshot, reverting every mutation when fn
// fails. This is what makes batches and flash loans all-or-nothing.
func (e *Engine) run(fn func() error) error {
	snap := e.state.Snapshot()
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	return nil
}

func (e *Engine) market() (*MarketConfig, error) {
	config, err := e.state.MarketConfig()
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, ErrMarketNotInitialized
	}
	return config, nil
}

func (e *Engine) pool(poolID string) (*AssetPool, error) {
	pool, err := e.state.Pool(normalizePoolID(poolID))
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

func (e *Engine) position(poolID string, owner crypto.Address) (*Position, error) {
	position, err := e.state.Position(poolID, owner)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, ErrPositionNotFound
	}
	return position, nil
}

func (e *Engine) account(addr crypto.Address) (*types.Account, error) {
	account, err := e.state.Account(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &types.Account{}
	}
	return account, nil
}

func (e *Engine) creditAccount(addr crypto.Address, asset string, amount uint64) error {
	account, err := e.account(addr)
	if err != nil {
		return err
	}
	balance, err := checkedAdd(account.Balance(asset), amount)
	if err != nil {
		return err
	}
	account.SetBalance(asset, balance)
	return e.state.PutAccount(addr, account)
}

func (e *Engine) debitAccount(addr crypto.Address, asset string, amount uint64) error {
	account, err := e.account(addr)
	if err != nil {
		return err
	}
	if account.Balance(asset) < amount {
		return ErrInsufficientBalance
	}
	account.SetBalance(asset, account.Balance(asset)-amount)
	return e.state.PutAccount(addr, account)
}

func (e *Engine) vaultBalance(pool *AssetPool) (uint64, error) {
	account, err := e.account(pool.Vault)
	if err != nil {
		return 0, err
	}
	return account.Balance(pool.Asset), nil
}

// resolvePoolPrice fetches and validates the pool's price via its registered
// feeds, preferring the primary and falling back to the secondary. Failures
// are surfaced as events so operators can alert on dead feeds.
func (e *Engine) resolvePoolPrice(pool *AssetPool) (PriceData, error) {
	primary := e.sources[pool.PriceFeed]
	var secondary PriceSource
	if pool.SecondaryPriceFeed != "" {
		secondary = e.sources[pool.SecondaryPriceFeed]
	}
	data, err := e.resolver.Resolve(primary, secondary, e.nowFn())
	if err != nil {
		e.emit(events.OracleFailed{PoolID: pool.ID, Feed: pool.PriceFeed, Reason: oracleFailureReason(err)})
		return PriceData{}, err
	}
	return data, nil
}

// CreateUserPosition registers an empty position so the user can operate on
// the pool. Positions are created once and never destroyed.
func (e *Engine) CreateUserPosition(user crypto.Address, poolID string) error {
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
		existing, err := e.state.Position(pool.ID, user)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrPositionExists
		}
		return e.state.PutPosition(&Position{Owner: user, PoolID: pool.ID})
	})
}

// Deposit moves collateral from the user into the pool vault.
func (e *Engine) Deposit(user crypto.Address, poolID string, amount uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.run(func() error {
		ctx, err := e.beginUserOp(user, poolID, nativecommon.GuardActive)
		if err != nil {
			return err
		}
		if err := e.applyDeposit(ctx, amount); err != nil {
			return err
		}
		if err := e.persistUserOp(ctx); err != nil {
			return err
		}
		e.emit(events.Deposited{PoolID: ctx.pool.ID, User: user, Amount: amount})
		return nil
	})
}

// Withdraw releases collateral back to the user, provided the remaining
// position stays within the loan-to-value limit.
func (e *Engine) Withdraw(user crypto.Address, poolID string, amount uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.run(func() error {
		ctx, err := e.beginUserOp(user, poolID, nativecommon.GuardWithdraw)
		if err != nil {
			return err
		}
		if err := e.applyWithdraw(ctx, amount); err != nil {
			return err
		}
		if err := e.persistUserOp(ctx); err != nil {
			return err
		}
		e.emit(events.Withdrawn{PoolID: ctx.pool.ID, User: user, Amount: amount})
		return nil
	})
}

// Borrow draws liquidity from the vault against the user's collateral.
func (e *Engine) Borrow(user crypto.Address, poolID string, amount uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.run(func() error {
		ctx, err := e.beginUserOp(user, poolID, nativecommon.GuardActive)
		if err != nil {
			return err
		}
		if err := e.applyBorrow(ctx, amount); err != nil {
			return err
		}
		if err := e.persistUserOp(ctx); err != nil {
			return err
		}
		e.emit(events.Borrowed{PoolID: ctx.pool.ID, User: user, Amount: amount})
		return nil
	})
}

// Repay returns borrowed funds, clamped to the outstanding debt.
func (e *Engine) Repay(user crypto.Address, poolID string, amount uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	var repaid uint64
	err := e.run(func() error {
		ctx, err := e.beginUserOp(user, poolID, nativecommon.GuardWithdraw)
		if err != nil {
			return err
		}
		repaid, err = e.applyRepay(ctx, amount)
		if err != nil {
			return err
		}
		if err := e.persistUserOp(ctx); err != nil {
			return err
		}
		e.emit(events.Repaid{PoolID: ctx.pool.ID, User: user, Amount: repaid})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return repaid, nil
}

// Market returns the current market config.
func (e *Engine) Market() (*MarketConfig, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.market()
}

// PoolByID returns the pool record for the identifier.
func (e *Engine) PoolByID(poolID string) (*AssetPool, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.pool(poolID)
}

// PositionFor returns the owner's position in the pool.
func (e *Engine) PositionFor(poolID string, owner crypto.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pool, err := e.pool(poolID)
	if err != nil {
		return nil, err
	}
	return e.position(pool.ID, owner)
}

// AccountFor returns the token balances held by an address. Unknown addresses
// read as empty accounts.
func (e *Engine) AccountFor(addr crypto.Address) (*types.Account, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.account(addr)
}

// MaxBorrowable reports the additional amount the user could borrow right now.
func (e *Engine) MaxBorrowable(user crypto.Address, poolID string) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	pool, err := e.pool(poolID)
	if err != nil {
		return 0, err
	}
	position, err := e.position(pool.ID, user)
	if err != nil {
		return 0, err
	}
	return maxBorrowable(position, pool.Params)
}

// MaxWithdrawable reports the collateral the user could release right now.
func (e *Engine) MaxWithdrawable(user crypto.Address, poolID string) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	pool, err := e.pool(poolID)
	if err != nil {
		return 0, err
	}
	position, err := e.position(pool.ID, user)
	if err != nil {
		return 0, err
	}
	return maxWithdrawable(position, pool.Params)
}

// userOpContext carries the loaded pool and position across the steps of one
// user operation so batches mutate a single in-memory copy. A resolved price
// is cached here so a batch consults the oracle at most once.
type userOpContext struct {
	pool     *AssetPool
	position *Position
	user     crypto.Address
	price    *PriceData
}

// contextPrice returns the cached observation for the operation, resolving the
// pool's feeds on first use.
func (e *Engine) contextPrice(ctx *userOpContext) (PriceData, error) {
	if ctx.price != nil {
		return *ctx.price, nil
	}
	price, err := e.resolvePoolPrice(ctx.pool)
	if err != nil {
		return PriceData{}, err
	}
	ctx.price = &price
	return price, nil
}

// beginUserOp loads market, pool, and position, enforces the protocol status
// guard, and refreshes interest. Callers persist via persistUserOp.
func (e *Engine) beginUserOp(user crypto.Address, poolID string, guard func(nativecommon.ProtocolStatus) error) (*userOpContext, error) {
	config, err := e.market()
	if err != nil {
		return nil, err
	}
	if err := guard(config.Status); err != nil {
		return nil, err
	}
	pool, err := e.pool(poolID)
	if err != nil {
		return nil, err
	}
	if err := pool.AccrueInterest(e.nowFn()); err != nil {
		return nil, err
	}
	position, err := e.position(pool.ID, user)
	if err != nil {
		return nil, err
	}
	return &userOpContext{pool: pool, position: position, user: user}, nil
}

func (e *Engine) persistUserOp(ctx *userOpContext) error {
	if err := e.state.PutPool(ctx.pool); err != nil {
		return err
	}
	return e.state.PutPosition(ctx.position)
}

func (e *Engine) applyDeposit(ctx *userOpContext, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := e.debitAccount(ctx.user, ctx.pool.Asset, amount); err != nil {
		return err
	}
	if err := e.creditAccount(ctx.pool.Vault, ctx.pool.Asset, amount); err != nil {
		return err
	}
	collateral, err := checkedAdd(ctx.position.Collateral, amount)
	if err != nil {
		return err
	}
	deposits, err := checkedAdd(ctx.pool.TotalDeposits, amount)
	if err != nil {
		return err
	}
	ctx.position.Collateral = collateral
	ctx.pool.TotalDeposits = deposits
	return nil
}

func (e *Engine) applyWithdraw(ctx *userOpContext, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if amount > ctx.position.Collateral {
		return ErrInsufficientCollateral
	}
	remaining := ctx.position.Collateral - amount
	if ctx.position.Loan > 0 {
		price, err := e.contextPrice(ctx)
		if err != nil {
			return err
		}
		loanValue := assetValue(ctx.position.Loan, price)
		collateralValue := assetValue(remaining, price)
		if !meetsBorrowLimit(loanValue, collateralValue, ctx.pool.Params) {
			return ErrPositionWouldBecomeUnhealthy
		}
	}
	available, err := e.vaultBalance(ctx.pool)
	if err != nil {
		return err
	}
	if available < amount {
		return ErrInsufficientLiquidity
	}
	if err := e.debitAccount(ctx.pool.Vault, ctx.pool.Asset, amount); err != nil {
		return err
	}
	if err := e.creditAccount(ctx.user, ctx.pool.Asset, amount); err != nil {
		return err
	}
	deposits, err := checkedSub(ctx.pool.TotalDeposits, amount)
	if err != nil {
		return err
	}
	ctx.position.Collateral = remaining
	ctx.pool.TotalDeposits = deposits
	return nil
}

func (e *Engine) applyBorrow(ctx *userOpContext, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	newLoan, err := checkedAdd(ctx.position.Loan, amount)
	if err != nil {
		return err
	}
	available, err := e.vaultBalance(ctx.pool)
	if err != nil {
		return err
	}
	if available < amount {
		return ErrInsufficientLiquidity
	}
	price, err := e.contextPrice(ctx)
	if err != nil {
		return err
	}
	loanValue := assetValue(newLoan, price)
	collateralValue := assetValue(ctx.position.Collateral, price)
	if !meetsBorrowLimit(loanValue, collateralValue, ctx.pool.Params) {
		return ErrPositionWouldBecomeUnhealthy
	}
	if err := e.debitAccount(ctx.pool.Vault, ctx.pool.Asset, amount); err != nil {
		return err
	}
	if err := e.creditAccount(ctx.user, ctx.pool.Asset, amount); err != nil {
		return err
	}
	loans, err := checkedAdd(ctx.pool.TotalLoans, amount)
	if err != nil {
		return err
	}
	ctx.position.Loan = newLoan
	ctx.pool.TotalLoans = loans
	return nil
}

func (e *Engine) applyRepay(ctx *userOpContext, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrZeroAmount
	}
	if ctx.position.Loan == 0 {
		return 0, ErrNoDebtToRepay
	}
	pay := minUint64(amount, ctx.position.Loan)
	if err := e.debitAccount(ctx.user, ctx.pool.Asset, pay); err != nil {
		return 0, err
	}
	if err := e.creditAccount(ctx.pool.Vault, ctx.pool.Asset, pay); err != nil {
		return 0, err
	}
	loans, err := checkedSub(ctx.pool.TotalLoans, pay)
	if err != nil {
		return 0, err
	}
	ctx.position.Loan -= pay
	ctx.pool.TotalLoans = loans
	return pay, nil
}
