package observer

// Response and feed message types for the read-only chain observer.
// Shapes mirror the teacher's API response types (pkg/api/types.go) but
// describe object-database entities (accounts, assets, orders, blocks)
// rather than perp-DEX positions.

// AccountInfo is a snapshot of an account's identity and core-asset
// balance.
type AccountInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Balance int64  `json:"coreBalance"`
}

// AssetInfo is a market-issued or core asset's static configuration.
type AssetInfo struct {
	ID             string `json:"id"`
	Symbol         string `json:"symbol"`
	Precision      uint8  `json:"precision"`
	IsMarketIssued bool   `json:"isMarketIssued"`
}

// PriceLevel is one side of an order book at one price.
type PriceLevel struct {
	Price    float64 `json:"price"`
	ForSale  int64   `json:"forSale"`
	OrderID  string  `json:"orderId"`
}

// OrderbookSnapshot is the current resting order set for a trading pair.
type OrderbookSnapshot struct {
	Base  string       `json:"base"`
	Quote string       `json:"quote"`
	Bids  []PriceLevel `json:"bids"`
	Asks  []PriceLevel `json:"asks"`
}

// WitnessInfo is a witness's public roster entry.
type WitnessInfo struct {
	ID             string `json:"id"`
	WitnessAccount string `json:"witnessAccount"`
	TotalVotes     uint64 `json:"totalVotes"`
	LastAslot      uint64 `json:"lastAslot"`
}

// ChainStatus reports the head block and scheduling state.
type ChainStatus struct {
	HeadHeight    uint64 `json:"headHeight"`
	HeadBlockID   string `json:"headBlockId"`
	ActiveWitnesses int  `json:"activeWitnesses"`
	MempoolSize   int    `json:"mempoolSize"`
}

// ErrorResponse is returned for all REST errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BlockFeedMessage is broadcast over /ws on every applied block.
type BlockFeedMessage struct {
	Type         string `json:"type"` // "block"
	Height       uint64 `json:"height"`
	BlockID      string `json:"blockId"`
	Witness      string `json:"witness"`
	NumTx        int    `json:"numTx"`
	Timestamp    int64  `json:"timestamp"`
}

// VirtualOpFeedMessage is broadcast for each virtual operation a block
// produces (fills, margin calls, settlements) — spec.md §7's event
// surface for observers that don't want to diff object-database state
// themselves.
type VirtualOpFeedMessage struct {
	Type   string `json:"type"` // "virtual_op"
	Height uint64 `json:"height"`
	Tag    int    `json:"tag"`
}

// WSSubscribeRequest is sent by a client to choose which channels it
// receives: "blocks", "virtual_ops", or both.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}
