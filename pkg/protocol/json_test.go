package protocol

import (
	"encoding/json"
	"testing"

	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func acctID(instance uint64) objectdb.ID {
	return objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: instance}
}

func TestTransactionRoundTripsThroughJSON(t *testing.T) {
	tx := Transaction{
		RefBlockNum:    7,
		RefBlockPrefix: 1234,
		Expiration:     999,
		Operations: []Operation{
			Transfer{
				From:   acctID(1),
				To:     acctID(2),
				Amount: state.AssetAmount{AssetID: acctID(0), Amount: 50},
			},
			LimitOrderCancel{Order: objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeLimitOrder, Instance: 9}},
		},
		Signatures: [][65]byte{{1, 2, 3}},
	}

	data, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Transaction
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.RefBlockNum != tx.RefBlockNum || got.RefBlockPrefix != tx.RefBlockPrefix || got.Expiration != tx.Expiration {
		t.Fatalf("header fields did not round-trip: got %+v", got)
	}
	if len(got.Operations) != 2 {
		t.Fatalf("want 2 operations, got %d", len(got.Operations))
	}
	transfer, ok := got.Operations[0].(Transfer)
	if !ok {
		t.Fatalf("want first operation to decode as Transfer, got %T", got.Operations[0])
	}
	if transfer.From != tx.Operations[0].(Transfer).From || transfer.Amount.Amount != 50 {
		t.Fatalf("transfer fields did not round-trip: %+v", transfer)
	}
	if got.Operations[1].Tag() != TagLimitOrderCancel {
		t.Fatalf("want second operation tag LimitOrderCancel, got %v", got.Operations[1].Tag())
	}
	if len(got.Signatures) != 1 || got.Signatures[0] != tx.Signatures[0] {
		t.Fatalf("signature did not round-trip: %+v", got.Signatures)
	}
}

func TestUnmarshalRejectsVirtualOperationTag(t *testing.T) {
	raw := `{"ref_block_num":1,"ref_block_prefix":1,"expiration":1,"operations":[{"tag":4,"data":{}}],"signatures":[]}`
	var tx Transaction
	if err := json.Unmarshal([]byte(raw), &tx); err == nil {
		t.Fatalf("want virtual operation tag (FillOrder) to be rejected at unmarshal time")
	}
}

func TestUnmarshalRejectsMalformedSignature(t *testing.T) {
	raw := `{"ref_block_num":1,"ref_block_prefix":1,"expiration":1,"operations":[],"signatures":["0xdead"]}`
	var tx Transaction
	if err := json.Unmarshal([]byte(raw), &tx); err == nil {
		t.Fatalf("want a too-short signature to be rejected")
	}
}
