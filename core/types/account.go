package types

// Account tracks the token balances held by a ledger participant or a pool
// vault. Balances are keyed by asset symbol and denominated in base token
// units (unsigned 64-bit integers, matching the external interface contract).
type Account struct {
	Nonce    uint64            `json:"nonce"`
	Balances map[string]uint64 `json:"balances"`
}

// Balance returns the held amount of the given asset, defaulting to zero.
func (a *Account) Balance(asset string) uint64 {
	if a == nil || a.Balances == nil {
		return 0
	}
	return a.Balances[asset]
}

// SetBalance records the held amount of the given asset, allocating the
// balance map on first use.
func (a *Account) SetBalance(asset string, amount uint64) {
	if a.Balances == nil {
		a.Balances = make(map[string]uint64)
	}
	a.Balances[asset] = amount
}
