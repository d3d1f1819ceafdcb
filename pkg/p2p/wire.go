package p2p

import (
	"encoding/json"

	"github.com/hyperlicked/chaincore/pkg/chain"
	"github.com/hyperlicked/chaincore/pkg/protocol"
)

// Gossip payloads are JSON, not gob. protocol.Transaction.Operations is
// an Operation interface slice; gob can only decode an interface field
// through a package-wide type registry (gob.Register per concrete
// type), while the tagged-union codec in pkg/protocol/json.go already
// solves exactly this problem for the same type. Reusing it here means
// one wire format for both the HTTP submission path and gossip instead
// of two.
func encodeBlock(b *chain.Block) ([]byte, error)       { return json.Marshal(b) }
func decodeBlock(data []byte) (*chain.Block, error) {
	var b chain.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func encodeTransaction(tx *protocol.Transaction) ([]byte, error) { return json.Marshal(tx) }
func decodeTransaction(data []byte) (*protocol.Transaction, error) {
	var tx protocol.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}
