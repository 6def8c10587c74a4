package domain

import "time"

// MintedAsset is a record of a uniquely identified issued token. The minting
// subsystem owns these rows; the deduplicator only enforces the invariant
// that each TokenID survives as exactly one row, the latest-minted one.
type MintedAsset struct {
	ID       int64     `json:"id"`
	TokenID  string    `json:"token_id"`
	OwnerID  int64     `json:"owner_id"`
	MintedAt time.Time `json:"minted_at"`
}
