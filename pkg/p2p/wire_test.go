package p2p

import (
	"testing"

	"github.com/hyperlicked/chaincore/pkg/chain"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func TestEncodeDecodeBlockRoundTrips(t *testing.T) {
	b := &chain.Block{
		Height:    7,
		Timestamp: 1000,
		Witness:   objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: 1},
		Previous:  chain.Hash{1, 2, 3},
		Transactions: []protocol.Transaction{
			{
				RefBlockNum:    1,
				RefBlockPrefix: 2,
				Expiration:     3,
				Operations: []protocol.Operation{
					protocol.Transfer{
						From:   objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: 1},
						To:     objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: 2},
						Amount: state.AssetAmount{AssetID: objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAsset, Instance: 0}, Amount: 5},
					},
				},
			},
		},
		Signature: []byte{9, 9, 9},
	}

	data, err := encodeBlock(b)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeBlock(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Height != b.Height || got.Timestamp != b.Timestamp {
		t.Fatalf("header fields did not round-trip: %+v", got)
	}
	if len(got.Transactions) != 1 {
		t.Fatalf("want 1 transaction, got %d", len(got.Transactions))
	}
	if len(got.Transactions[0].Operations) != 1 {
		t.Fatalf("want 1 operation, got %d", len(got.Transactions[0].Operations))
	}
	if _, ok := got.Transactions[0].Operations[0].(protocol.Transfer); !ok {
		t.Fatalf("want the decoded operation to be a Transfer, got %T", got.Transactions[0].Operations[0])
	}
}

func TestDecodeBlockRejectsMalformedJSON(t *testing.T) {
	if _, err := decodeBlock([]byte("not json")); err == nil {
		t.Fatalf("want malformed JSON rejected")
	}
}

func TestEncodeDecodeTransactionRoundTrips(t *testing.T) {
	tx := &protocol.Transaction{
		RefBlockNum:    4,
		RefBlockPrefix: 5,
		Expiration:     6,
		Operations: []protocol.Operation{
			protocol.LimitOrderCancel{Order: objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeLimitOrder, Instance: 1}},
		},
	}

	data, err := encodeTransaction(tx)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeTransaction(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RefBlockNum != tx.RefBlockNum || len(got.Operations) != 1 {
		t.Fatalf("transaction did not round-trip: %+v", got)
	}
}

func TestDecodeTransactionRejectsMalformedJSON(t *testing.T) {
	if _, err := decodeTransaction([]byte("{")); err == nil {
		t.Fatalf("want truncated JSON rejected")
	}
}
