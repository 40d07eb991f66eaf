package lending

import (
	"crypto/sha256"

	"lendledger/crypto"
)

// vaultSeed namespaces derived vault addresses away from user accounts.
const vaultSeed = "asset_vault"

// VaultAddress derives the deterministic custody address for a pool's vault
// from the protocol identity and pool identifier.
func VaultAddress(protocolIdentity crypto.Address, poolID string) crypto.Address {
	h := sha256.New()
	h.Write([]byte(vaultSeed))
	h.Write(protocolIdentity.Bytes())
	h.Write([]byte(normalizePoolID(poolID)))
	sum := h.Sum(nil)
	return crypto.NewAddress(crypto.VaultPrefix, sum[:crypto.AddressLength])
}
