package lendingd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendledger/native/lending"
)

func (s *Server) initializeMarket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Authority string `json:"authority"`
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	authority, err := parseAddress(req.Authority)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.execute("initializeMarket", func() error {
		return s.engine.InitializeMarket(authority)
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"authority": req.Authority})
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	config, err := s.engine.Market()
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"governanceAuthority": config.GovernanceAuthority.String(),
		"status":              config.Status.String(),
		"pools":               config.Pools,
	})
}

func (s *Server) governanceAction(w http.ResponseWriter, r *http.Request, operation string, fn func(caller string) error) {
	var req struct {
		Caller string `json:"caller"`
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.execute(operation, func() error { return fn(req.Caller) }); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	s.governanceAction(w, r, "pause", func(caller string) error {
		addr, err := parseAddress(caller)
		if err != nil {
			return lending.ErrInvalidOperation
		}
		return s.engine.Pause(addr)
	})
}

func (s *Server) unpause(w http.ResponseWriter, r *http.Request) {
	s.governanceAction(w, r, "unpause", func(caller string) error {
		addr, err := parseAddress(caller)
		if err != nil {
			return lending.ErrInvalidOperation
		}
		return s.engine.Unpause(addr)
	})
}

func (s *Server) withdrawOnly(w http.ResponseWriter, r *http.Request) {
	s.governanceAction(w, r, "withdrawOnly", func(caller string) error {
		addr, err := parseAddress(caller)
		if err != nil {
			return lending.ErrInvalidOperation
		}
		return s.engine.EnableWithdrawOnlyMode(addr)
	})
}

func (s *Server) updateAuthority(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		Next   string `json:"next"`
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	next, err := parseAddress(req.Next)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.execute("updateAuthority", func() error {
		return s.engine.UpdateGovernanceAuthority(caller, next)
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"governanceAuthority": req.Next})
}

func (s *Server) fundAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller    string `json:"caller"`
		Recipient string `json:"recipient"`
		Asset     string `json:"asset"`
		Amount    uint64 `json:"amount"`
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.execute("fundAccount", func() error {
		return s.engine.FundAccount(caller, recipient, req.Asset, req.Amount)
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) addPool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller             string            `json:"caller"`
		PoolID             string            `json:"poolId"`
		Asset              string            `json:"asset"`
		PriceFeed          string            `json:"priceFeed"`
		SecondaryPriceFeed string            `json:"secondaryPriceFeed"`
		Params             poolParamsPayload `json:"params"`
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var pool *lending.AssetPool
	if err := s.execute("addPool", func() error {
		var addErr error
		pool, addErr = s.engine.AddAssetPool(caller, req.PoolID, req.Asset, req.PriceFeed, req.SecondaryPriceFeed, req.Params.params())
		return addErr
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, poolResponse(pool))
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	pool, err := s.engine.PoolByID(chi.URLParam(r, "poolID"))
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, poolResponse(pool))
}

func (s *Server) updatePool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string            `json:"caller"`
		Params poolParamsPayload `json:"params"`
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	poolID := chi.URLParam(r, "poolID")
	if err := s.execute("updatePool", func() error {
		return s.engine.UpdateAssetPool(caller, poolID, req.Params.params())
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) collectFees(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller    string `json:"caller"`
		Recipient string `json:"recipient"`
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	poolID := chi.URLParam(r, "poolID")
	var swept uint64
	if err := s.execute("collectFees", func() error {
		var feeErr error
		swept, feeErr = s.engine.CollectProtocolFees(caller, poolID, recipient)
		return feeErr
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"collected": swept})
}

func (s *Server) createPosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User   string `json:"user"`
		PoolID string `json:"poolId"`
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.execute("createPosition", func() error {
		return s.engine.CreateUserPosition(user, req.PoolID)
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	position, err := s.engine.PositionFor(chi.URLParam(r, "poolID"), owner)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner":      position.Owner.String(),
		"poolId":     position.PoolID,
		"collateral": position.Collateral,
		"loan":       position.Loan,
	})
}

func (s *Server) getLimits(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	poolID := chi.URLParam(r, "poolID")
	s.mu.Lock()
	borrowable, err := s.engine.MaxBorrowable(owner, poolID)
	var withdrawable uint64
	if err == nil {
		withdrawable, err = s.engine.MaxWithdrawable(owner, poolID)
	}
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{
		"maxBorrowable":   borrowable,
		"maxWithdrawable": withdrawable,
	})
}

type positionOpRequest struct {
	User   string `json:"user"`
	PoolID string `json:"poolId"`
	Amount uint64 `json:"amount"`
}

func (s *Server) positionOp(w http.ResponseWriter, r *http.Request, operation string, fn func(req positionOpRequest) error) {
	var req positionOpRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.execute(operation, func() error { return fn(req) }); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	s.positionOp(w, r, "deposit", func(req positionOpRequest) error {
		user, err := parseAddress(req.User)
		if err != nil {
			return lending.ErrInvalidOperation
		}
		return s.engine.Deposit(user, req.PoolID, req.Amount)
	})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	s.positionOp(w, r, "withdraw", func(req positionOpRequest) error {
		user, err := parseAddress(req.User)
		if err != nil {
			return lending.ErrInvalidOperation
		}
		return s.engine.Withdraw(user, req.PoolID, req.Amount)
	})
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	s.positionOp(w, r, "borrow", func(req positionOpRequest) error {
		user, err := parseAddress(req.User)
		if err != nil {
			return lending.ErrInvalidOperation
		}
		return s.engine.Borrow(user, req.PoolID, req.Amount)
	})
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	var req positionOpRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var repaid uint64
	if err := s.execute("repay", func() error {
		var repayErr error
		repaid, repayErr = s.engine.Repay(user, req.PoolID, req.Amount)
		return repayErr
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"repaid": repaid})
}

func (s *Server) liquidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Liquidator     string `json:"liquidator"`
		Borrower       string `json:"borrower"`
		CollateralPool string `json:"collateralPool"`
		LoanPool       string `json:"loanPool"`
		AmountToRepay  uint64 `json:"amountToRepay"`
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	liquidator, err := parseAddress(req.Liquidator)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	borrower, err := parseAddress(req.Borrower)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var result *lending.LiquidationResult
	if err := s.execute("liquidate", func() error {
		var liqErr error
		result, liqErr = s.engine.Liquidate(liquidator, borrower, req.CollateralPool, req.LoanPool, req.AmountToRepay)
		return liqErr
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{
		"repaidAmount":     result.RepaidAmount,
		"seizedCollateral": result.SeizedCollateral,
	})
}

func (s *Server) executeBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User       string              `json:"user"`
		PoolID     string              `json:"poolId"`
		Operations []lending.Operation `json:"operations"`
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.execute("batch", func() error {
		return s.engine.ExecuteOperations(user, req.PoolID, req.Operations)
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"applied": len(req.Operations)})
}

type delegationRequest struct {
	Owner     string `json:"owner"`
	Delegatee string `json:"delegatee"`
	PoolID    string `json:"poolId"`
	Amount    uint64 `json:"amount"`
}

func (s *Server) approveDelegation(w http.ResponseWriter, r *http.Request) {
	var req delegationRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	delegatee, err := parseAddress(req.Delegatee)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.execute("approveDelegation", func() error {
		return s.engine.ApproveDelegation(owner, delegatee, req.PoolID, req.Amount)
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) revokeDelegation(w http.ResponseWriter, r *http.Request) {
	var req delegationRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	delegatee, err := parseAddress(req.Delegatee)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.execute("revokeDelegation", func() error {
		return s.engine.RevokeDelegation(owner, delegatee, req.PoolID)
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) borrowDelegated(w http.ResponseWriter, r *http.Request) {
	var req delegationRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	delegatee, err := parseAddress(req.Delegatee)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.execute("borrowDelegated", func() error {
		return s.engine.BorrowDelegated(delegatee, owner, req.PoolID, req.Amount)
	}); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	account, err := s.engine.AccountFor(addr)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":  addr.String(),
		"balances": account.Balances,
	})
}

func poolResponse(pool *lending.AssetPool) map[string]interface{} {
	return map[string]interface{}{
		"id":                  pool.ID,
		"asset":               pool.Asset,
		"vault":               pool.Vault.String(),
		"priceFeed":           pool.PriceFeed,
		"secondaryPriceFeed":  pool.SecondaryPriceFeed,
		"totalDeposits":       pool.TotalDeposits,
		"totalLoans":          pool.TotalLoans,
		"accruedProtocolFees": pool.AccruedProtocolFees,
		"lastInterestUpdate":  pool.LastInterestUpdate,
		"params":              pool.Params,
	}
}
