package state

import (
	"math/big"
	"sort"

	fpmath "PerpCore/internal/math"
	"PerpCore/internal/perperr"
)

// AssetID identifies a synthetic or collateral asset.
type AssetID int64

// PositionID addresses a slot in the position store.
type PositionID uint64

// PublicKey is the packed owner key of a position. The zero value is the
// placeholder key of an empty position and never a real signer.
type PublicKey [32]byte

// Hash is a 256-bit digest (order message hashes, state roots).
type Hash [32]byte

// IsZero reports whether k is the placeholder key.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// IsZero reports whether h is the default digest.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// PositionAsset is one synthetic holding inside a position. Assets are never
// persisted with a zero balance: they are created on the first nonzero delta
// and removed when the balance returns to zero.
type PositionAsset struct {
	AssetID AssetID
	Balance *big.Int
	// Snapshot of the global funding index at the last time funding was
	// applied to this asset (fxp 32.32).
	CachedFundingIndex int64
}

// Position is the per-owner account: signed collateral plus a sparse list of
// synthetic holdings sorted by ascending asset id. An empty position (zero
// collateral, no assets) always carries the placeholder owner key.
type Position struct {
	PublicKey         PublicKey
	CollateralBalance *big.Int
	Assets            []PositionAsset
	FundingTimestamp  uint64
}

// NewPosition builds a position from already-validated parts. The asset slice
// is copied; balances are cloned so the result never aliases its inputs.
func NewPosition(publicKey PublicKey, collateralBalance *big.Int, assets []PositionAsset, fundingTimestamp uint64) *Position {
	return &Position{
		PublicKey:         publicKey,
		CollateralBalance: fpmath.Clone(collateralBalance),
		Assets:            cloneAssets(assets),
		FundingTimestamp:  fundingTimestamp,
	}
}

// EmptyPosition returns the default (unowned, zero) position.
func EmptyPosition() *Position {
	return &Position{CollateralBalance: new(big.Int)}
}

// Clone returns a deep copy of p.
func (p *Position) Clone() *Position {
	return NewPosition(p.PublicKey, p.CollateralBalance, p.Assets, p.FundingTimestamp)
}

// IsEmpty reports whether p holds no collateral and no assets.
func (p *Position) IsEmpty() bool {
	return p.CollateralBalance.Sign() == 0 && len(p.Assets) == 0
}

// AssetBalance returns the balance held at assetID, zero if absent.
func (p *Position) AssetBalance(assetID AssetID) *big.Int {
	for i := range p.Assets {
		if p.Assets[i].AssetID == assetID {
			return fpmath.Clone(p.Assets[i].Balance)
		}
	}
	return new(big.Int)
}

func cloneAssets(assets []PositionAsset) []PositionAsset {
	if len(assets) == 0 {
		return nil
	}
	out := make([]PositionAsset, len(assets))
	for i, a := range assets {
		out[i] = PositionAsset{
			AssetID:            a.AssetID,
			Balance:            fpmath.Clone(a.Balance),
			CachedFundingIndex: a.CachedFundingIndex,
		}
	}
	return out
}

// CheckValidBalance checks value against the half-open balance range
// [BalanceLowerBound, BalanceUpperBound).
func CheckValidBalance(balance *big.Int) error {
	if fpmath.InRange(balance, fpmath.BalanceLowerBound, fpmath.BalanceUpperBound) {
		return nil
	}
	return perperr.OutOfRangeBalance
}

// NewMaybeEmptyPosition builds a position, normalizing through the
// empty-position rule: if collateral is zero and there are no assets, the
// owner key is reset to the placeholder.
func NewMaybeEmptyPosition(publicKey PublicKey, collateralBalance *big.Int, assets []PositionAsset, fundingTimestamp uint64) *Position {
	if collateralBalance.Sign() == 0 && len(assets) == 0 {
		return EmptyPosition()
	}
	return NewPosition(publicKey, collateralBalance, assets, fundingTimestamp)
}

// AddCollateral applies a signed collateral delta, range-checking the result.
func AddCollateral(p *Position, delta *big.Int, publicKey PublicKey) (*Position, error) {
	next := NewMaybeEmptyPosition(
		publicKey,
		new(big.Int).Add(p.CollateralBalance, delta),
		p.Assets,
		p.FundingTimestamp,
	)
	if err := CheckValidBalance(next.CollateralBalance); err != nil {
		return nil, err
	}
	return next, nil
}

// CheckRequestPublicKey validates the acting key of a position mutation.
// Valid when it matches the stored key or the stored position is unowned.
// The request key itself may never be the placeholder.
func CheckRequestPublicKey(positionKey, requestKey PublicKey) error {
	if requestKey.IsZero() {
		return perperr.InvalidPublicKey
	}
	if positionKey.IsZero() {
		return nil
	}
	if positionKey == requestKey {
		return nil
	}
	return perperr.InvalidPublicKey
}

// PositionStore is the key-addressed position ledger. Get never fails:
// unknown ids read as the empty position. Update replaces a slot and returns
// what was there before. The caller holds exclusive access during a batch;
// no internal locking.
type PositionStore struct {
	slots map[PositionID]*Position
}

func NewPositionStore() *PositionStore {
	return &PositionStore{slots: make(map[PositionID]*Position)}
}

// Get returns an independent copy of the position at id.
func (s *PositionStore) Get(id PositionID) *Position {
	if p, ok := s.slots[id]; ok {
		return p.Clone()
	}
	return EmptyPosition()
}

// Update stores a copy of p at id and returns the previous occupant.
func (s *PositionStore) Update(id PositionID, p *Position) *Position {
	prev := s.Get(id)
	s.slots[id] = p.Clone()
	return prev
}

// Len returns the number of occupied slots.
func (s *PositionStore) Len() int {
	return len(s.slots)
}

// IDs returns the occupied slot ids in ascending order. Snapshots and
// digests iterate through this so nothing depends on map iteration order.
func (s *PositionStore) IDs() []PositionID {
	ids := make([]PositionID, 0, len(s.slots))
	for id := range s.slots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
