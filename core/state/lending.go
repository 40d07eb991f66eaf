package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"lendledger/core/types"
	"lendledger/crypto"
	"lendledger/native/lending"
	"lendledger/storage"
)

const (
	keyMarketConfig   = "lending/market-config"
	keyPoolPrefix     = "lending/pool/"
	keyPositionPrefix = "lending/position/"
	keyDelegationFmt  = "lending/delegation/%s/%s/%s"
	keyAccountPrefix  = "lending/account/"
)

// LendingStore adapts the journaled Manager to the lending engine's state
// interface, serialising records as JSON.
type LendingStore struct {
	manager *Manager
}

// NewLendingStore binds a store to the manager.
func NewLendingStore(manager *Manager) *LendingStore {
	return &LendingStore{manager: manager}
}

// Manager exposes the underlying overlay so callers can commit or discard the
// staged writes of a completed action.
func (s *LendingStore) Manager() *Manager { return s.manager }

func (s *LendingStore) getJSON(key string, out interface{}) (bool, error) {
	raw, err := s.manager.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *LendingStore) putJSON(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	s.manager.Put(key, raw)
	return nil
}

func (s *LendingStore) MarketConfig() (*lending.MarketConfig, error) {
	config := new(lending.MarketConfig)
	ok, err := s.getJSON(keyMarketConfig, config)
	if err != nil || !ok {
		return nil, err
	}
	return config, nil
}

func (s *LendingStore) PutMarketConfig(config *lending.MarketConfig) error {
	return s.putJSON(keyMarketConfig, config)
}

func (s *LendingStore) Pool(poolID string) (*lending.AssetPool, error) {
	pool := new(lending.AssetPool)
	ok, err := s.getJSON(keyPoolPrefix+poolID, pool)
	if err != nil || !ok {
		return nil, err
	}
	return pool, nil
}

func (s *LendingStore) PutPool(pool *lending.AssetPool) error {
	return s.putJSON(keyPoolPrefix+pool.ID, pool)
}

func positionKey(poolID string, owner crypto.Address) string {
	return keyPositionPrefix + poolID + "/" + owner.String()
}

func (s *LendingStore) Position(poolID string, owner crypto.Address) (*lending.Position, error) {
	position := new(lending.Position)
	ok, err := s.getJSON(positionKey(poolID, owner), position)
	if err != nil || !ok {
		return nil, err
	}
	return position, nil
}

func (s *LendingStore) PutPosition(position *lending.Position) error {
	return s.putJSON(positionKey(position.PoolID, position.Owner), position)
}

func delegationKey(owner crypto.Address, poolID string, delegatee crypto.Address) string {
	return fmt.Sprintf(keyDelegationFmt, owner.String(), poolID, delegatee.String())
}

func (s *LendingStore) Delegation(owner crypto.Address, poolID string, delegatee crypto.Address) (*lending.CreditDelegation, error) {
	delegation := new(lending.CreditDelegation)
	ok, err := s.getJSON(delegationKey(owner, poolID, delegatee), delegation)
	if err != nil || !ok {
		return nil, err
	}
	return delegation, nil
}

func (s *LendingStore) PutDelegation(delegation *lending.CreditDelegation) error {
	return s.putJSON(delegationKey(delegation.Owner, delegation.PoolID, delegation.Delegatee), delegation)
}

func (s *LendingStore) DeleteDelegation(owner crypto.Address, poolID string, delegatee crypto.Address) error {
	s.manager.Delete(delegationKey(owner, poolID, delegatee))
	return nil
}

func (s *LendingStore) Account(addr crypto.Address) (*types.Account, error) {
	account := new(types.Account)
	ok, err := s.getJSON(keyAccountPrefix+addr.String(), account)
	if err != nil || !ok {
		return nil, err
	}
	return account, nil
}

func (s *LendingStore) PutAccount(addr crypto.Address, account *types.Account) error {
	return s.putJSON(keyAccountPrefix+addr.String(), account)
}

func (s *LendingStore) Snapshot() int {
	return s.manager.Snapshot()
}

func (s *LendingStore) RevertToSnapshot(id int) {
	s.manager.RevertToSnapshot(id)
}
