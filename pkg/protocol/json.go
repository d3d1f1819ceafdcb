package protocol

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// wireTransaction is the JSON-on-the-wire shape of a Transaction.
// Grounded on the teacher's SignedTransaction (pkg/app/core/transaction/
// types.go: a "type" discriminator field plus one typed payload),
// generalized from a 2-variant order/cancel union to the full tagged
// operation catalog via a RawMessage payload per operation, decoded by
// Tag through operationFromWire.
type wireTransaction struct {
	RefBlockNum    uint16          `json:"ref_block_num"`
	RefBlockPrefix uint32          `json:"ref_block_prefix"`
	Expiration     int64           `json:"expiration"`
	Operations     []wireOperation `json:"operations"`
	Signatures     []string        `json:"signatures"` // each "0x" + 130 hex chars
}

type wireOperation struct {
	Tag  Tag             `json:"tag"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON encodes tx as a wireTransaction, hex-encoding signatures
// and tagging each operation with its wire Tag so the decoder can
// reconstruct the concrete type.
func (tx Transaction) MarshalJSON() ([]byte, error) {
	w := wireTransaction{
		RefBlockNum:    tx.RefBlockNum,
		RefBlockPrefix: tx.RefBlockPrefix,
		Expiration:     tx.Expiration,
	}
	for _, op := range tx.Operations {
		data, err := json.Marshal(op)
		if err != nil {
			return nil, fmt.Errorf("transaction: marshal operation tag %d: %w", op.Tag(), err)
		}
		w.Operations = append(w.Operations, wireOperation{Tag: op.Tag(), Data: data})
	}
	for _, sig := range tx.Signatures {
		w.Signatures = append(w.Signatures, "0x"+hex.EncodeToString(sig[:]))
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a wireTransaction, rejecting any operation whose
// tag names a virtual-only variant (spec.md §6: "reject them at
// transaction-parse time").
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var w wireTransaction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	tx.RefBlockNum = w.RefBlockNum
	tx.RefBlockPrefix = w.RefBlockPrefix
	tx.Expiration = w.Expiration

	tx.Operations = make([]Operation, 0, len(w.Operations))
	for i, wop := range w.Operations {
		op, err := operationFromWire(wop.Tag, wop.Data)
		if err != nil {
			return fmt.Errorf("transaction: operation %d: %w", i, err)
		}
		tx.Operations = append(tx.Operations, op)
	}

	tx.Signatures = make([][65]byte, 0, len(w.Signatures))
	for i, s := range w.Signatures {
		if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
			s = s[2:]
		}
		raw, err := hex.DecodeString(s)
		if err != nil {
			return fmt.Errorf("transaction: signature %d: %w", i, err)
		}
		if len(raw) != 65 {
			return fmt.Errorf("transaction: signature %d: want 65 bytes, got %d", i, len(raw))
		}
		var sig [65]byte
		copy(sig[:], raw)
		tx.Signatures = append(tx.Signatures, sig)
	}
	return nil
}

// operationFromWire decodes data into the concrete Operation type Tag
// names. Only non-virtual tags are wire-constructible.
func operationFromWire(tag Tag, data json.RawMessage) (Operation, error) {
	switch tag {
	case TagTransfer:
		var v Transfer
		return v, json.Unmarshal(data, &v)
	case TagLimitOrderCreate:
		var v LimitOrderCreate
		return v, json.Unmarshal(data, &v)
	case TagLimitOrderCancel:
		var v LimitOrderCancel
		return v, json.Unmarshal(data, &v)
	case TagCallOrderUpdate:
		var v CallOrderUpdate
		return v, json.Unmarshal(data, &v)
	case TagAccountCreate:
		var v AccountCreate
		return v, json.Unmarshal(data, &v)
	case TagAccountUpdate:
		var v AccountUpdate
		return v, json.Unmarshal(data, &v)
	case TagAssetCreate:
		var v AssetCreate
		return v, json.Unmarshal(data, &v)
	case TagAssetUpdate:
		var v AssetUpdate
		return v, json.Unmarshal(data, &v)
	case TagAssetUpdateBitasset:
		var v AssetUpdateBitasset
		return v, json.Unmarshal(data, &v)
	case TagAssetPublishFeed:
		var v AssetPublishFeed
		return v, json.Unmarshal(data, &v)
	case TagAssetSettle:
		var v AssetSettle
		return v, json.Unmarshal(data, &v)
	case TagAssetGlobalSettle:
		var v AssetGlobalSettle
		return v, json.Unmarshal(data, &v)
	default:
		return nil, fmt.Errorf("tag %d is virtual-only or unknown, not constructible from wire", tag)
	}
}
