package observer

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/hyperlicked/chaincore/pkg/chain"
	"github.com/hyperlicked/chaincore/pkg/market"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// SubmitFunc hands a transaction, already decoded by the server from
// the JSON request body, to the node's mempool. Kept as an injected
// function rather than a *chain.TxPool field so this package does not
// depend on the pool's concrete type.
type SubmitFunc func(tx *protocol.Transaction) error

// Server is the read-only HTTP/WebSocket surface over a running chain
// node: object-database lookups and a live block/virtual-op feed.
// Grounded on the teacher's Server (pkg/api/server.go: gorilla/mux +
// rs/cors REST router plus a websocket Hub), generalized from
// perp-DEX position/orderbook views to object-database entity lookups,
// and with order submission replaced by raw transaction submission
// since this core has no app-level order type of its own — orders are
// just LimitOrder-creating operations inside a signed Transaction.
type Server struct {
	state      *state.Chainstate
	headFn     func() (height uint64, id chain.Hash)
	mempoolLen func() int
	submit     SubmitFunc

	router *mux.Router
	hub    *Hub
}

// NewServer wires a Server over cs. headFn and mempoolLen let the node
// report live chain-tip/mempool-size data without this package
// depending on forkdb.DB or chain.TxPool's concrete types.
func NewServer(cs *state.Chainstate, headFn func() (uint64, chain.Hash), mempoolLen func() int, submit SubmitFunc) *Server {
	s := &Server{
		state:      cs,
		headFn:     headFn,
		mempoolLen: mempoolLen,
		submit:     submit,
		router:     mux.NewRouter(),
		hub:        NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/chain/status", s.handleChainStatus).Methods("GET")
	api.HandleFunc("/accounts/{name}", s.handleAccount).Methods("GET")
	api.HandleFunc("/assets/{symbol}", s.handleAsset).Methods("GET")
	api.HandleFunc("/assets/{base}/{quote}/orderbook", s.handleOrderbook).Methods("GET")
	api.HandleFunc("/witnesses", s.handleWitnesses).Methods("GET")
	api.HandleFunc("/transactions", s.handleSubmitTransaction).Methods("POST")
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, map[string]string{"status": "ok"})
	}).Methods("GET")
}

// Start runs the HTTP server (blocking) and the feed hub (in its own
// goroutine) on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})
	log.Printf("[observer] listening on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleChainStatus(w http.ResponseWriter, r *http.Request) {
	height, id := s.headFn()
	respondJSON(w, ChainStatus{
		HeadHeight:      height,
		HeadBlockID:     id.String(),
		ActiveWitnesses: len(s.state.Witnesses.All()),
		MempoolSize:     s.mempoolLen(),
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ids := s.state.AccountsByName.Lookup(name)
	if len(ids) == 0 {
		respondError(w, http.StatusNotFound, "account not found")
		return
	}
	acc, ok := s.state.Accounts.Find(ids[0])
	if !ok {
		respondError(w, http.StatusNotFound, "account not found")
		return
	}
	core := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAsset, Instance: 0}
	respondJSON(w, AccountInfo{
		ID:      acc.Id.String(),
		Name:    acc.Name,
		Balance: s.state.Balance(acc.Id, core),
	})
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	ids := s.state.AssetsBySymbol.Lookup(symbol)
	if len(ids) == 0 {
		respondError(w, http.StatusNotFound, "asset not found")
		return
	}
	a, ok := s.state.Assets.Find(ids[0])
	if !ok {
		respondError(w, http.StatusNotFound, "asset not found")
		return
	}
	respondJSON(w, AssetInfo{
		ID:             a.Id.String(),
		Symbol:         a.Symbol,
		Precision:      a.Precision,
		IsMarketIssued: a.IsMarketIssued,
	})
}

func (s *Server) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	base, err := s.resolveAssetID(vars["base"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	quote, err := s.resolveAssetID(vars["quote"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	pair := market.Pair{Base: base, Quote: quote}

	asks := market.AsksFor(s.state, pair)
	bids := market.BidsFor(s.state, pair)

	resp := OrderbookSnapshot{Base: vars["base"], Quote: vars["quote"]}
	for _, o := range asks {
		resp.Asks = append(resp.Asks, toPriceLevel(o))
	}
	for _, o := range bids {
		resp.Bids = append(resp.Bids, toPriceLevel(o))
	}
	respondJSON(w, resp)
}

func toPriceLevel(o *state.LimitOrder) PriceLevel {
	var price float64
	if o.SellPrice.Quote.Amount != 0 {
		price = float64(o.SellPrice.Base.Amount) / float64(o.SellPrice.Quote.Amount)
	}
	return PriceLevel{Price: price, ForSale: o.ForSale, OrderID: o.Id.String()}
}

func (s *Server) resolveAssetID(symbol string) (objectdb.ID, error) {
	ids := s.state.AssetsBySymbol.Lookup(symbol)
	if len(ids) == 0 {
		return objectdb.ID{}, fmt.Errorf("unknown asset %q", symbol)
	}
	return ids[0], nil
}

func (s *Server) handleWitnesses(w http.ResponseWriter, r *http.Request) {
	all := s.state.Witnesses.All()
	out := make([]WitnessInfo, 0, len(all))
	for _, wn := range all {
		out = append(out, WitnessInfo{
			ID:             wn.Id.String(),
			WitnessAccount: wn.WitnessAccount.String(),
			TotalVotes:     wn.TotalVotes,
			LastAslot:      wn.LastAslot,
		})
	}
	respondJSON(w, out)
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	var tx protocol.Transaction
	if err := json.Unmarshal(body, &tx); err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction JSON: "+err.Error())
		return
	}
	if err := s.submit(&tx); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, map[string]string{"status": "accepted"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[string]bool),
	}
	client.hub.register <- client
	go client.writePump()
	go client.readPump()
}

// BroadcastBlock notifies every "blocks"-subscribed client that b was
// applied, and fans out one VirtualOpFeedMessage per produced virtual
// operation to "virtual_ops" subscribers.
func (s *Server) BroadcastBlock(b *chain.Block, virtuals []protocol.Operation) {
	s.hub.BroadcastToChannel("blocks", BlockFeedMessage{
		Type:      "block",
		Height:    b.Height,
		BlockID:   b.Hash().String(),
		Witness:   b.Witness.String(),
		NumTx:     len(b.Transactions),
		Timestamp: b.Timestamp,
	})
	for _, v := range virtuals {
		s.hub.BroadcastToChannel("virtual_ops", VirtualOpFeedMessage{
			Type:   "virtual_op",
			Height: b.Height,
			Tag:    int(v.Tag()),
		})
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
