package chain

import (
	"testing"

	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func acct(instance uint64) objectdb.ID {
	return objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: instance}
}

func transferTx(from, to objectdb.ID, amount int64) *protocol.Transaction {
	return &protocol.Transaction{
		Operations: []protocol.Operation{
			protocol.Transfer{From: from, To: to, Amount: state.AssetAmount{AssetID: acct(99), Amount: amount}},
		},
	}
}

func orderTx(seller objectdb.ID) *protocol.Transaction {
	return &protocol.Transaction{
		Operations: []protocol.Operation{
			protocol.LimitOrderCreate{
				Seller:       seller,
				AmountToSell: state.AssetAmount{AssetID: acct(1), Amount: 10},
				MinToReceive: state.AssetAmount{AssetID: acct(2), Amount: 5},
			},
		},
	}
}

func cancelTx(order objectdb.ID) *protocol.Transaction {
	return &protocol.Transaction{
		Operations: []protocol.Operation{protocol.LimitOrderCancel{Order: order}},
	}
}

func TestTxPoolPushRejectsInvalidTransaction(t *testing.T) {
	p := NewTxPool()
	bad := &protocol.Transaction{} // no operations
	if err := p.Push(bad); err == nil {
		t.Fatalf("want an empty transaction to be rejected")
	}
	if p.Len() != 0 {
		t.Fatalf("want nothing enqueued after a rejected push")
	}
}

func TestTxPoolSelectForBlockOrdersNonOrderCancelOrder(t *testing.T) {
	p := NewTxPool()
	order := orderTx(acct(1))
	cancel := cancelTx(acct(5))
	transfer := transferTx(acct(1), acct(2), 1)

	// Push in an order-first sequence; selection should still come out
	// non-order, cancel, order regardless of arrival order.
	if err := p.Push(order); err != nil {
		t.Fatalf("push order: %v", err)
	}
	if err := p.Push(cancel); err != nil {
		t.Fatalf("push cancel: %v", err)
	}
	if err := p.Push(transfer); err != nil {
		t.Fatalf("push transfer: %v", err)
	}

	got := p.SelectForBlock(10)
	if len(got) != 3 {
		t.Fatalf("want all 3 transactions selected, got %d", len(got))
	}
	if got[0] != transfer || got[1] != cancel || got[2] != order {
		t.Fatalf("want selection order transfer, cancel, order")
	}
}

func TestTxPoolSelectForBlockRespectsMaxCountAndDrains(t *testing.T) {
	p := NewTxPool()
	for i := 0; i < 3; i++ {
		if err := p.Push(transferTx(acct(1), acct(2), int64(i+1))); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	first := p.SelectForBlock(2)
	if len(first) != 2 {
		t.Fatalf("want 2 selected, got %d", len(first))
	}
	if p.Len() != 1 {
		t.Fatalf("want 1 remaining in pool, got %d", p.Len())
	}
	second := p.SelectForBlock(10)
	if len(second) != 1 {
		t.Fatalf("want the last transaction selected, got %d", len(second))
	}
	if p.Len() != 0 {
		t.Fatalf("want the pool empty after draining, got %d", p.Len())
	}
}
