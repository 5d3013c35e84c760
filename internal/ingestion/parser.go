package ingestion

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"PerpCore/internal/order"
	"PerpCore/internal/perperr"
	"PerpCore/internal/state"
)

// ParsedTx is a fully typed transaction plus the transport metadata the
// batch executor needs for dedup and ordering.
type ParsedTx struct {
	Trade          *order.Trade
	IdempotencyKey string
	Source         string
	SourceSequence int64
	Timestamp      time.Time
	Payload        []byte
}

// ParseTx converts one wire message into a typed transaction. Unknown
// tx_type values fail with UnknownTxType so upstream producer bugs surface
// immediately instead of being silently dropped.
func ParseTx(data []byte) (*ParsedTx, error) {
	var env txEnvelopeJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse tx envelope: %w", err)
	}

	switch env.TxType {
	case "Trade":
		return parseTrade(&env, data)
	default:
		return nil, fmt.Errorf("tx_type %q: %w", env.TxType, perperr.UnknownTxType)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers. All amounts are
// decimal strings; they routinely exceed int64.

type txEnvelopeJSON struct {
	TxType         string          `json:"tx_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Source         string          `json:"source"`
	SourceSequence int64           `json:"source_sequence"`
	TimestampUs    int64           `json:"timestamp_us"`
	Tx             json.RawMessage `json:"tx"`
}

type tradeJSON struct {
	PartyAOrder      limitOrderJSON `json:"party_a_order"`
	PartyBOrder      limitOrderJSON `json:"party_b_order"`
	ActualCollateral string         `json:"actual_collateral"`
	ActualSynthetic  string         `json:"actual_synthetic"`
	ActualAFee       string         `json:"actual_a_fee"`
	ActualBFee       string         `json:"actual_b_fee"`
}

type limitOrderJSON struct {
	Nonce               uint64 `json:"nonce"`
	PublicKey           string `json:"public_key"`
	ExpirationTimestamp int64  `json:"expiration_timestamp"`
	Signature           string `json:"signature"`
	AmountSynthetic     string `json:"amount_synthetic"`
	AmountCollateral    string `json:"amount_collateral"`
	AmountFee           string `json:"amount_fee"`
	AssetIDSynthetic    int64  `json:"asset_id_synthetic"`
	AssetIDCollateral   int64  `json:"asset_id_collateral"`
	PositionID          uint64 `json:"position_id"`
	IsBuyingSynthetic   bool   `json:"is_buying_synthetic"`
	OrderType           string `json:"order_type"`
}

func parseTrade(env *txEnvelopeJSON, raw []byte) (*ParsedTx, error) {
	var j tradeJSON
	if err := json.Unmarshal(env.Tx, &j); err != nil {
		return nil, fmt.Errorf("parse Trade: %w", err)
	}

	partyA, err := parseLimitOrder(&j.PartyAOrder)
	if err != nil {
		return nil, fmt.Errorf("parse party_a_order: %w", err)
	}
	partyB, err := parseLimitOrder(&j.PartyBOrder)
	if err != nil {
		return nil, fmt.Errorf("parse party_b_order: %w", err)
	}

	actualCollateral, err := parseAmount(j.ActualCollateral, "actual_collateral")
	if err != nil {
		return nil, err
	}
	actualSynthetic, err := parseAmount(j.ActualSynthetic, "actual_synthetic")
	if err != nil {
		return nil, err
	}
	actualAFee, err := parseAmount(j.ActualAFee, "actual_a_fee")
	if err != nil {
		return nil, err
	}
	actualBFee, err := parseAmount(j.ActualBFee, "actual_b_fee")
	if err != nil {
		return nil, err
	}

	return &ParsedTx{
		Trade: &order.Trade{
			PartyAOrder:      *partyA,
			PartyBOrder:      *partyB,
			ActualCollateral: actualCollateral,
			ActualSynthetic:  actualSynthetic,
			ActualAFee:       actualAFee,
			ActualBFee:       actualBFee,
		},
		IdempotencyKey: env.IdempotencyKey,
		Source:         env.Source,
		SourceSequence: env.SourceSequence,
		Timestamp:      time.UnixMicro(env.TimestampUs),
		Payload:        raw,
	}, nil
}

func parseLimitOrder(j *limitOrderJSON) (*order.LimitOrder, error) {
	if j.OrderType != "" && j.OrderType != "LimitOrderWithFees" {
		return nil, fmt.Errorf("unsupported order_type %q", j.OrderType)
	}

	publicKey, err := parsePublicKey(j.PublicKey)
	if err != nil {
		return nil, err
	}
	signature, err := parseSignature(j.Signature)
	if err != nil {
		return nil, err
	}

	amountSynthetic, err := parseAmount(j.AmountSynthetic, "amount_synthetic")
	if err != nil {
		return nil, err
	}
	amountCollateral, err := parseAmount(j.AmountCollateral, "amount_collateral")
	if err != nil {
		return nil, err
	}
	amountFee, err := parseAmount(j.AmountFee, "amount_fee")
	if err != nil {
		return nil, err
	}

	return &order.LimitOrder{
		Base: order.OrderBase{
			Nonce:               j.Nonce,
			PublicKey:           publicKey,
			ExpirationTimestamp: j.ExpirationTimestamp,
			Signature:           signature,
		},
		AmountSynthetic:   amountSynthetic,
		AmountCollateral:  amountCollateral,
		AmountFee:         amountFee,
		AssetIDSynthetic:  state.AssetID(j.AssetIDSynthetic),
		AssetIDCollateral: state.AssetID(j.AssetIDCollateral),
		PositionID:        state.PositionID(j.PositionID),
		IsBuyingSynthetic: j.IsBuyingSynthetic,
		Type:              order.TypeLimitOrderWithFees,
	}, nil
}

func parseAmount(s, field string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing %s", field)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse %s: bad decimal %q", field, s)
	}
	return v, nil
}

func parsePublicKey(s string) (state.PublicKey, error) {
	var pk state.PublicKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("parse public_key: %w", err)
	}
	if len(b) != len(pk) {
		return pk, fmt.Errorf("parse public_key: want %d bytes, got %d", len(pk), len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func parseSignature(s string) ([64]byte, error) {
	var sig [64]byte
	if s == "" {
		return sig, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return sig, fmt.Errorf("parse signature: %w", err)
	}
	if len(b) != len(sig) {
		return sig, fmt.Errorf("parse signature: want %d bytes, got %d", len(sig), len(b))
	}
	copy(sig[:], b)
	return sig, nil
}
