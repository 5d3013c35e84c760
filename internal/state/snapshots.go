package state

import "math/big"

// FundingIndex is one asset's global funding accumulator (fxp 32.32).
type FundingIndex struct {
	AssetID AssetID
	// Funding index in fxp 32.32 format.
	FundingIndex int64
}

// FundingIndicesInfo is the process-wide funding index snapshot plus its
// timestamp. Read-only input to a trade; supplied by the funding collaborator.
type FundingIndicesInfo struct {
	FundingIndices   []FundingIndex
	FundingTimestamp uint64
}

// Index returns the global funding index for assetID.
func (f *FundingIndicesInfo) Index(assetID AssetID) (int64, bool) {
	for _, fi := range f.FundingIndices {
		if fi.AssetID == assetID {
			return fi.FundingIndex, true
		}
	}
	return 0, false
}

// OraclePrice is a single asset's price in internal representation
// (fxp 32.32).
type OraclePrice struct {
	AssetID AssetID
	Price   *big.Int
}

// OraclePrices is the per-asset price snapshot for one trade. Read-only.
type OraclePrices struct {
	Data []OraclePrice
}

// Price returns the snapshot price for assetID.
func (o *OraclePrices) Price(assetID AssetID) (*big.Int, bool) {
	for _, p := range o.Data {
		if p.AssetID == assetID {
			return p.Price, true
		}
	}
	return nil, false
}
