package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"PerpCore/internal/state"
)

// systemConfigJSON is the on-disk form of the system configuration. Risk
// factors are decimal strings (32.32 fixed point); keys are hex.
type systemConfigJSON struct {
	CollateralAssetID int64  `json:"collateral_asset_id"`
	FeePositionID     uint64 `json:"fee_position_id"`
	FeePublicKey      string `json:"fee_public_key"`

	SyntheticAssets []struct {
		AssetID           int64    `json:"asset_id"`
		RiskFactor        string   `json:"risk_factor"`
		SignedAssetIDs    []int64  `json:"oracle_price_signed_asset_ids"`
		OraclePriceQuorum uint64   `json:"oracle_price_quorum"`
		OracleSigners     []string `json:"oracle_price_signers"`
	} `json:"synthetic_assets"`

	PositionsTreeHeight uint64 `json:"positions_tree_height"`
	OrdersTreeHeight    uint64 `json:"orders_tree_height"`

	PriceValidityPeriodSecs   int64 `json:"price_validity_period_secs"`
	FundingValidityPeriodSecs int64 `json:"funding_validity_period_secs"`

	MinExpirationTimestamp int64 `json:"min_expiration_timestamp"`
}

// LoadSystemConfig reads the JSON system configuration into a batch
// configuration ready for the executor.
func LoadSystemConfig(path string) (*state.BatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read system config: %w", err)
	}

	var j systemConfigJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse system config: %w", err)
	}

	feeKey, err := parseKey(j.FeePublicKey)
	if err != nil {
		return nil, fmt.Errorf("fee_public_key: %w", err)
	}

	general := state.GeneralConfig{
		CollateralAssetInfo: state.CollateralAssetInfo{
			AssetID: state.AssetID(j.CollateralAssetID),
		},
		FeePositionInfo: state.FeePositionInfo{
			PositionID: state.PositionID(j.FeePositionID),
			PublicKey:  feeKey,
		},
		PositionsTreeHeight: j.PositionsTreeHeight,
		OrdersTreeHeight:    j.OrdersTreeHeight,
		Timestamps: state.TimestampValidationConfig{
			PriceValidityPeriod:   time.Duration(j.PriceValidityPeriodSecs) * time.Second,
			FundingValidityPeriod: time.Duration(j.FundingValidityPeriodSecs) * time.Second,
		},
	}

	for _, sa := range j.SyntheticAssets {
		riskFactor, ok := new(big.Int).SetString(sa.RiskFactor, 10)
		if !ok {
			return nil, fmt.Errorf("synthetic asset %d: bad risk_factor %q", sa.AssetID, sa.RiskFactor)
		}

		info := state.SyntheticAssetInfo{
			AssetID:           state.AssetID(sa.AssetID),
			RiskFactor:        riskFactor,
			OraclePriceQuorum: sa.OraclePriceQuorum,
		}
		for _, id := range sa.SignedAssetIDs {
			info.OraclePriceSignedAssetIDs = append(info.OraclePriceSignedAssetIDs, state.AssetID(id))
		}
		for _, signer := range sa.OracleSigners {
			key, err := parseKey(signer)
			if err != nil {
				return nil, fmt.Errorf("synthetic asset %d signer: %w", sa.AssetID, err)
			}
			info.OraclePriceSigners = append(info.OraclePriceSigners, key)
		}

		general.SyntheticAssetsInfo = append(general.SyntheticAssetsInfo, info)
	}

	return &state.BatchConfig{
		General:                general,
		MinExpirationTimestamp: j.MinExpirationTimestamp,
	}, nil
}

func parseKey(s string) (state.PublicKey, error) {
	var pk state.PublicKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("bad hex key %q: %w", s, err)
	}
	if len(b) != len(pk) {
		return pk, fmt.Errorf("key %q: want %d bytes, got %d", s, len(pk), len(b))
	}
	copy(pk[:], b)
	return pk, nil
}
