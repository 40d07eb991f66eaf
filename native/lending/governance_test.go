package lending

import (
	"errors"
	"fmt"
	"testing"
)

func TestInitializeMarketOnce(t *testing.T) {
	h := newTestHarness(t, 0)
	if err := h.engine.InitializeMarket(h.gov); !errors.Is(err, ErrMarketAlreadyInitialized) {
		t.Fatalf("second init = %v, want ErrMarketAlreadyInitialized", err)
	}
}

func TestGovernanceOnlyActions(t *testing.T) {
	h := newTestHarness(t, 0)
	stranger := testAddr("stranger")
	if _, err := h.engine.AddAssetPool(stranger, "p2", "X", "x/feed", "", defaultParams()); !errors.Is(err, ErrNotGovernance) {
		t.Fatalf("add pool by stranger = %v, want ErrNotGovernance", err)
	}
	if err := h.engine.Pause(stranger); !errors.Is(err, ErrNotGovernance) {
		t.Fatalf("pause by stranger = %v, want ErrNotGovernance", err)
	}
	if err := h.engine.UpdateGovernanceAuthority(stranger, stranger); !errors.Is(err, ErrNotGovernance) {
		t.Fatalf("authority change by stranger = %v, want ErrNotGovernance", err)
	}
	if err := h.engine.FundAccount(stranger, stranger, testAsset, 1); !errors.Is(err, ErrNotGovernance) {
		t.Fatalf("fund by stranger = %v, want ErrNotGovernance", err)
	}
}

func TestUpdateGovernanceAuthority(t *testing.T) {
	h := newTestHarness(t, 0)
	next := testAddr("next-gov")
	if err := h.engine.UpdateGovernanceAuthority(h.gov, next); err != nil {
		t.Fatalf("hand over authority: %v", err)
	}
	// The old authority is locked out, the new one works.
	if err := h.engine.Pause(h.gov); !errors.Is(err, ErrNotGovernance) {
		t.Fatalf("old authority still accepted")
	}
	if err := h.engine.Pause(next); err != nil {
		t.Fatalf("new authority rejected: %v", err)
	}
}

func TestPoolParamsValidation(t *testing.T) {
	h := newTestHarness(t, 0)

	params := defaultParams()
	params.LoanToValueRatioBps = 10_000
	if _, err := h.engine.AddAssetPool(h.gov, "p2", "X", "x/feed", "", params); !errors.Is(err, ErrInvalidLTV) {
		t.Fatalf("full LTV = %v, want ErrInvalidLTV", err)
	}

	params = defaultParams()
	params.LiquidationThresholdBps = params.LoanToValueRatioBps
	if _, err := h.engine.AddAssetPool(h.gov, "p2", "X", "x/feed", "", params); !errors.Is(err, ErrInvalidLiquidationThreshold) {
		t.Fatalf("LT == LTV = %v, want ErrInvalidLiquidationThreshold", err)
	}

	params = defaultParams()
	params.LiquidationThresholdBps = 10_000
	if _, err := h.engine.AddAssetPool(h.gov, "p2", "X", "x/feed", "", params); !errors.Is(err, ErrInvalidLiquidationThreshold) {
		t.Fatalf("LT == 100%% = %v, want ErrInvalidLiquidationThreshold", err)
	}

	params = defaultParams()
	params.OptimalUtilizationBps = 10_000
	if _, err := h.engine.AddAssetPool(h.gov, "p2", "X", "x/feed", "", params); !errors.Is(err, ErrInvalidOptimalUtilization) {
		t.Fatalf("optimal == 100%% = %v, want ErrInvalidOptimalUtilization", err)
	}
}

func TestDepositOnlyPoolAllowsZeroLoanToValue(t *testing.T) {
	h := newTestHarness(t, 1_000)
	params := defaultParams()
	params.LoanToValueRatioBps = 0
	params.LiquidationThresholdBps = 100
	pool, err := h.engine.AddAssetPool(h.gov, "safe-pool", testAsset, testFeed, "", params)
	if err != nil {
		t.Fatalf("add deposit-only pool: %v", err)
	}
	if err := h.engine.CreateUserPosition(h.user, pool.ID); err != nil {
		t.Fatalf("create position: %v", err)
	}
	if err := h.engine.Deposit(h.user, pool.ID, 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// No collateral value is ever borrowable against.
	if err := h.engine.Borrow(h.user, pool.ID, 1); !errors.Is(err, ErrPositionWouldBecomeUnhealthy) {
		t.Fatalf("borrow on deposit-only pool = %v, want ErrPositionWouldBecomeUnhealthy", err)
	}
	if err := h.engine.Withdraw(h.user, pool.ID, 500); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
}

func TestAddPoolRegistryLimits(t *testing.T) {
	h := newTestHarness(t, 0)
	if _, err := h.engine.AddAssetPool(h.gov, testPool, testAsset, testFeed, "", defaultParams()); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("duplicate pool = %v, want ErrPoolExists", err)
	}
	// The harness already registered one pool.
	for i := 1; i < MaxPools; i++ {
		id := fmt.Sprintf("pool-%d", i)
		if _, err := h.engine.AddAssetPool(h.gov, id, "X", "x/feed", "", defaultParams()); err != nil {
			t.Fatalf("add pool %d: %v", i, err)
		}
	}
	if _, err := h.engine.AddAssetPool(h.gov, "one-too-many", "X", "x/feed", "", defaultParams()); !errors.Is(err, ErrMaxAssetsExceeded) {
		t.Fatalf("pool beyond capacity = %v, want ErrMaxAssetsExceeded", err)
	}
}

func TestVaultAddressDeterministic(t *testing.T) {
	h := newTestHarness(t, 0)
	pool := h.poolOf(t, testPool)
	derived := VaultAddress(h.engine.ProtocolIdentity(), testPool)
	if !pool.Vault.Equal(derived) {
		t.Fatalf("vault = %s, want derived %s", pool.Vault, derived)
	}
	other := VaultAddress(h.engine.ProtocolIdentity(), "another-pool")
	if pool.Vault.Equal(other) {
		t.Fatalf("distinct pools derived the same vault")
	}
}

func TestUpdateAssetPoolParams(t *testing.T) {
	h := newTestHarness(t, 0)
	params := defaultParams()
	params.LoanToValueRatioBps = 5_000
	params.LiquidationThresholdBps = 6_000
	if err := h.engine.UpdateAssetPool(h.gov, testPool, params); err != nil {
		t.Fatalf("update: %v", err)
	}
	pool := h.poolOf(t, testPool)
	if pool.Params.LoanToValueRatioBps != 5_000 {
		t.Fatalf("LTV = %d, want 5000", pool.Params.LoanToValueRatioBps)
	}
	bad := defaultParams()
	bad.LoanToValueRatioBps = 9_000
	bad.LiquidationThresholdBps = 8_000
	if err := h.engine.UpdateAssetPool(h.gov, testPool, bad); !errors.Is(err, ErrInvalidLiquidationThreshold) {
		t.Fatalf("invalid update = %v, want ErrInvalidLiquidationThreshold", err)
	}
}

func TestCollectProtocolFees(t *testing.T) {
	h := newTestHarness(t, 1_000)
	if err := h.engine.Deposit(h.user, testPool, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.engine.Borrow(h.user, testPool, 500); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// Accrue a year of interest at 50% utilisation (350bps).
	h.advance(secondsPerYear)

	recipient := testAddr("treasury")
	swept, err := h.engine.CollectProtocolFees(h.gov, testPool, recipient)
	if err != nil {
		t.Fatalf("collect fees: %v", err)
	}
	// interest = 500 * 350 / 10000 = 17 (truncated); protocol share 10% = 1.
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}
	if got := h.balance(t, recipient, testAsset); got != 1 {
		t.Fatalf("treasury balance = %d, want 1", got)
	}
	pool := h.poolOf(t, testPool)
	if pool.AccruedProtocolFees != 0 {
		t.Fatalf("fees after sweep = %d, want 0", pool.AccruedProtocolFees)
	}

	stranger := testAddr("stranger")
	if _, err := h.engine.CollectProtocolFees(stranger, testPool, stranger); !errors.Is(err, ErrNotGovernance) {
		t.Fatalf("sweep by stranger = %v, want ErrNotGovernance", err)
	}
}
