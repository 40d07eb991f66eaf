package lending

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"testing"

	"lendledger/core/types"
	"lendledger/crypto"
	nativecommon "lendledger/native/common"
)

type mockState struct {
	market      *MarketConfig
	pools       map[string]*AssetPool
	positions   map[string]*Position
	delegations map[string]*CreditDelegation
	accounts    map[string]*types.Account
	snapshots   []mockSnapshot
}

type mockSnapshot struct {
	market      *MarketConfig
	pools       map[string]*AssetPool
	positions   map[string]*Position
	delegations map[string]*CreditDelegation
	accounts    map[string]*types.Account
}

func newMockState() *mockState {
	return &mockState{
		pools:       make(map[string]*AssetPool),
		positions:   make(map[string]*Position),
		delegations: make(map[string]*CreditDelegation),
		accounts:    make(map[string]*types.Account),
	}
}

func cloneRecord[T any](in *T) *T {
	if in == nil {
		return nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		panic(err)
	}
	return out
}

func cloneMap[T any](in map[string]*T) map[string]*T {
	out := make(map[string]*T, len(in))
	for k, v := range in {
		out[k] = cloneRecord(v)
	}
	return out
}

func (m *mockState) MarketConfig() (*MarketConfig, error) {
	return cloneRecord(m.market), nil
}

func (m *mockState) PutMarketConfig(config *MarketConfig) error {
	m.market = cloneRecord(config)
	return nil
}

func (m *mockState) Pool(poolID string) (*AssetPool, error) {
	return cloneRecord(m.pools[poolID]), nil
}

func (m *mockState) PutPool(pool *AssetPool) error {
	m.pools[pool.ID] = cloneRecord(pool)
	return nil
}

func positionTestKey(poolID string, owner crypto.Address) string {
	return poolID + "/" + owner.String()
}

func (m *mockState) Position(poolID string, owner crypto.Address) (*Position, error) {
	return cloneRecord(m.positions[positionTestKey(poolID, owner)]), nil
}

func (m *mockState) PutPosition(position *Position) error {
	m.positions[positionTestKey(position.PoolID, position.Owner)] = cloneRecord(position)
	return nil
}

func delegationTestKey(owner crypto.Address, poolID string, delegatee crypto.Address) string {
	return owner.String() + "/" + poolID + "/" + delegatee.String()
}

func (m *mockState) Delegation(owner crypto.Address, poolID string, delegatee crypto.Address) (*CreditDelegation, error) {
	return cloneRecord(m.delegations[delegationTestKey(owner, poolID, delegatee)]), nil
}

func (m *mockState) PutDelegation(delegation *CreditDelegation) error {
	m.delegations[delegationTestKey(delegation.Owner, delegation.PoolID, delegation.Delegatee)] = cloneRecord(delegation)
	return nil
}

func (m *mockState) DeleteDelegation(owner crypto.Address, poolID string, delegatee crypto.Address) error {
	delete(m.delegations, delegationTestKey(owner, poolID, delegatee))
	return nil
}

func (m *mockState) Account(addr crypto.Address) (*types.Account, error) {
	return cloneRecord(m.accounts[addr.String()]), nil
}

func (m *mockState) PutAccount(addr crypto.Address, account *types.Account) error {
	m.accounts[addr.String()] = cloneRecord(account)
	return nil
}

func (m *mockState) Snapshot() int {
	m.snapshots = append(m.snapshots, mockSnapshot{
		market:      cloneRecord(m.market),
		pools:       cloneMap(m.pools),
		positions:   cloneMap(m.positions),
		delegations: cloneMap(m.delegations),
		accounts:    cloneMap(m.accounts),
	})
	return len(m.snapshots) - 1
}

func (m *mockState) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	snap := m.snapshots[id]
	m.market = snap.market
	m.pools = snap.pools
	m.positions = snap.positions
	m.delegations = snap.delegations
	m.accounts = snap.accounts
	m.snapshots = m.snapshots[:id]
}

func testAddr(seed string) crypto.Address {
	sum := sha256.Sum256([]byte(seed))
	return crypto.NewAddress(crypto.AccountPrefix, sum[:crypto.AddressLength])
}

const (
	testPool  = "usd-pool"
	testAsset = "USD"
	testFeed  = "usd/feed"
	testNow   = int64(1_700_000_000)
)

func defaultParams() PoolParams {
	return PoolParams{
		LoanToValueRatioBps:     8_000,
		LiquidationThresholdBps: 8_500,
		BaseRateBps:             100,
		OptimalUtilizationBps:   8_000,
		Slope1Bps:               400,
		Slope2Bps:               6_000,
		ProtocolFeeBps:          1_000,
		FlashLoanFeeBps:         25,
		FlashLoansEnabled:       true,
	}
}

type testHarness struct {
	engine    *Engine
	state     *mockState
	source    *StaticSource
	gov       crypto.Address
	user      crypto.Address
	now       int64
	poolVault crypto.Address
}

func (h *testHarness) advance(seconds int64) {
	h.now += seconds
}

func (h *testHarness) fund(t *testing.T, addr crypto.Address, asset string, amount uint64) {
	t.Helper()
	if err := h.engine.FundAccount(h.gov, addr, asset, amount); err != nil {
		t.Fatalf("fund account: %v", err)
	}
}

func (h *testHarness) balance(t *testing.T, addr crypto.Address, asset string) uint64 {
	t.Helper()
	account, err := h.state.Account(addr)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	return account.Balance(asset)
}

func (h *testHarness) positionOf(t *testing.T, poolID string, owner crypto.Address) *Position {
	t.Helper()
	position, err := h.state.Position(poolID, owner)
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	if position == nil {
		t.Fatalf("position %s/%s missing", poolID, owner)
	}
	return position
}

func (h *testHarness) poolOf(t *testing.T, poolID string) *AssetPool {
	t.Helper()
	pool, err := h.state.Pool(poolID)
	if err != nil {
		t.Fatalf("load pool: %v", err)
	}
	if pool == nil {
		t.Fatalf("pool %s missing", poolID)
	}
	return pool
}

// newTestHarness builds an initialised market with one pool, a healthy price
// feed, and a user position funded with `fund` units.
func newTestHarness(t *testing.T, fund uint64) *testHarness {
	t.Helper()
	h := &testHarness{
		state: newMockState(),
		gov:   testAddr("governance"),
		user:  testAddr("user"),
		now:   testNow,
	}
	h.engine = NewEngine(testAddr("protocol"))
	h.engine.SetState(h.state)
	h.source = NewStaticSource(PriceData{Price: 100_000_000, Expo: -8, Conf: 10_000, PublishTime: testNow})
	// The clock hook also refreshes the feed's publish time so advancing the
	// harness clock never makes the static price stale by accident.
	h.engine.SetNowFunc(func() int64 {
		h.source.Update(PriceData{Price: 100_000_000, Expo: -8, Conf: 10_000, PublishTime: h.now})
		return h.now
	})
	h.engine.RegisterPriceSource(testFeed, h.source)

	if err := h.engine.InitializeMarket(h.gov); err != nil {
		t.Fatalf("initialize market: %v", err)
	}
	pool, err := h.engine.AddAssetPool(h.gov, testPool, testAsset, testFeed, "", defaultParams())
	if err != nil {
		t.Fatalf("add pool: %v", err)
	}
	h.poolVault = pool.Vault
	if err := h.engine.CreateUserPosition(h.user, testPool); err != nil {
		t.Fatalf("create position: %v", err)
	}
	if fund > 0 {
		h.fund(t, h.user, testAsset, fund)
	}
	return h
}

func TestDepositMovesFundsIntoVault(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 600); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := h.balance(t, h.user, testAsset); got != 400 {
		t.Fatalf("user balance = %d, want 400", got)
	}
	if got := h.balance(t, h.poolVault, testAsset); got != 600 {
		t.Fatalf("vault balance = %d, want 600", got)
	}
	position := h.positionOf(t, testPool, h.user)
	if position.Collateral != 600 {
		t.Fatalf("collateral = %d, want 600", position.Collateral)
	}
	pool := h.poolOf(t, testPool)
	if pool.TotalDeposits != 600 {
		t.Fatalf("total deposits = %d, want 600", pool.TotalDeposits)
	}
}

func TestDepositZeroAmountRejected(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 0); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("deposit(0) = %v, want ErrZeroAmount", err)
	}
}

func TestDepositInsufficientBalance(t *testing.T) {
	h := newTestHarness(t, 100)
	if err := h.engine.Deposit(h.user, testPool, 500); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("deposit = %v, want ErrInsufficientBalance", err)
	}
	// Failed deposits leave no trace.
	if got := h.balance(t, h.user, testAsset); got != 100 {
		t.Fatalf("user balance = %d, want 100", got)
	}
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 750); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.engine.Withdraw(h.user, testPool, 750); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := h.balance(t, h.user, testAsset); got != 1_000 {
		t.Fatalf("user balance = %d, want 1000", got)
	}
	position := h.positionOf(t, testPool, h.user)
	if position.Collateral != 0 {
		t.Fatalf("collateral = %d, want 0", position.Collateral)
	}
	pool := h.poolOf(t, testPool)
	if pool.TotalDeposits != 0 {
		t.Fatalf("total deposits = %d, want 0", pool.TotalDeposits)
	}
}

func TestWithdrawExceedingCollateral(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 300); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.engine.Withdraw(h.user, testPool, 301); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("withdraw = %v, want ErrInsufficientCollateral", err)
	}
}

func TestBorrowAtLoanToValueBoundary(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.engine.Borrow(h.user, testPool, 500); err != nil {
		t.Fatalf("borrow 500: %v", err)
	}
	if err := h.engine.Borrow(h.user, testPool, 400); !errors.Is(err, ErrPositionWouldBecomeUnhealthy) {
		t.Fatalf("borrow 400 more = %v, want ErrPositionWouldBecomeUnhealthy", err)
	}
	// Exactly at the limit succeeds.
	if err := h.engine.Borrow(h.user, testPool, 300); err != nil {
		t.Fatalf("borrow to limit: %v", err)
	}
	position := h.positionOf(t, testPool, h.user)
	if position.Loan != 800 {
		t.Fatalf("loan = %d, want 800", position.Loan)
	}
	if err := h.engine.Borrow(h.user, testPool, 1); !errors.Is(err, ErrPositionWouldBecomeUnhealthy) {
		t.Fatalf("borrow past limit = %v, want ErrPositionWouldBecomeUnhealthy", err)
	}
}

func TestBorrowInsufficientLiquidity(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// Drain the vault so the admissible borrow exceeds idle liquidity.
	vault := h.state.accounts[h.poolVault.String()]
	vault.SetBalance(testAsset, 100)
	if err := h.engine.Borrow(h.user, testPool, 800); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("borrow = %v, want ErrInsufficientLiquidity", err)
	}
}

func TestBorrowZeroAmountRejected(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.engine.Borrow(h.user, testPool, 0); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("borrow zero = %v, want ErrZeroAmount", err)
	}
	if err := h.engine.Withdraw(h.user, testPool, 0); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("withdraw zero = %v, want ErrZeroAmount", err)
	}
}

func TestWithdrawGatedByLoanToValue(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.engine.Borrow(h.user, testPool, 400); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// Collateral must stay >= loan/LTV = 400/0.8 = 500.
	if err := h.engine.Withdraw(h.user, testPool, 501); !errors.Is(err, ErrPositionWouldBecomeUnhealthy) {
		t.Fatalf("withdraw 501 = %v, want ErrPositionWouldBecomeUnhealthy", err)
	}
	if err := h.engine.Withdraw(h.user, testPool, 500); err != nil {
		t.Fatalf("withdraw 500: %v", err)
	}
}

func TestRepayClampsToOutstandingDebt(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.engine.Borrow(h.user, testPool, 500); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	repaid, err := h.engine.Repay(h.user, testPool, 10_000)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if repaid != 500 {
		t.Fatalf("repaid = %d, want 500", repaid)
	}
	position := h.positionOf(t, testPool, h.user)
	if position.Loan != 0 {
		t.Fatalf("loan = %d, want 0", position.Loan)
	}
	if _, err := h.engine.Repay(h.user, testPool, 100); !errors.Is(err, ErrNoDebtToRepay) {
		t.Fatalf("repay with no debt = %v, want ErrNoDebtToRepay", err)
	}
	if _, err := h.engine.Repay(h.user, testPool, 0); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("repay zero = %v, want ErrZeroAmount", err)
	}
}

func TestCreateUserPositionTwice(t *testing.T) {
	h := newTestHarness(t, 0)
	if err := h.engine.CreateUserPosition(h.user, testPool); !errors.Is(err, ErrPositionExists) {
		t.Fatalf("second create = %v, want ErrPositionExists", err)
	}
}

func TestOperationsAgainstUnknownPool(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, "nope", 100); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("deposit unknown pool = %v, want ErrPoolNotFound", err)
	}
}

func TestPauseBlocksOperations(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.engine.Pause(h.gov); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := h.engine.Deposit(h.user, testPool, 100); !errors.Is(err, nativecommon.ErrProtocolPaused) {
		t.Fatalf("deposit while paused = %v, want ErrProtocolPaused", err)
	}
	if err := h.engine.Withdraw(h.user, testPool, 100); !errors.Is(err, nativecommon.ErrProtocolPaused) {
		t.Fatalf("withdraw while paused = %v, want ErrProtocolPaused", err)
	}
	if err := h.engine.Unpause(h.gov); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := h.engine.Withdraw(h.user, testPool, 100); err != nil {
		t.Fatalf("withdraw after unpause: %v", err)
	}
}

func TestWithdrawOnlyModePermitsUnwindOnly(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.engine.Borrow(h.user, testPool, 200); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := h.engine.EnableWithdrawOnlyMode(h.gov); err != nil {
		t.Fatalf("enable withdraw-only: %v", err)
	}
	if err := h.engine.Deposit(h.user, testPool, 100); !errors.Is(err, nativecommon.ErrProtocolNotActive) {
		t.Fatalf("deposit in withdraw-only = %v, want ErrProtocolNotActive", err)
	}
	if err := h.engine.Borrow(h.user, testPool, 100); !errors.Is(err, nativecommon.ErrProtocolNotActive) {
		t.Fatalf("borrow in withdraw-only = %v, want ErrProtocolNotActive", err)
	}
	if _, err := h.engine.Repay(h.user, testPool, 200); err != nil {
		t.Fatalf("repay in withdraw-only: %v", err)
	}
	if err := h.engine.Withdraw(h.user, testPool, 1_000); err != nil {
		t.Fatalf("withdraw in withdraw-only: %v", err)
	}
}

func TestMaxBorrowableAndWithdrawable(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.engine.Borrow(h.user, testPool, 400); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	borrowable, err := h.engine.MaxBorrowable(h.user, testPool)
	if err != nil {
		t.Fatalf("max borrowable: %v", err)
	}
	if borrowable != 400 {
		t.Fatalf("max borrowable = %d, want 400", borrowable)
	}
	withdrawable, err := h.engine.MaxWithdrawable(h.user, testPool)
	if err != nil {
		t.Fatalf("max withdrawable: %v", err)
	}
	if withdrawable != 500 {
		t.Fatalf("max withdrawable = %d, want 500", withdrawable)
	}
}

func TestEngineRequiresState(t *testing.T) {
	engine := NewEngine(testAddr("protocol"))
	if err := engine.Deposit(testAddr("user"), testPool, 1); !errors.Is(err, ErrNilState) {
		t.Fatalf("deposit without state = %v, want ErrNilState", err)
	}
}
