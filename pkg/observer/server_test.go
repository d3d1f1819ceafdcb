package observer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperlicked/chaincore/pkg/chain"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/protocol"
	"github.com/hyperlicked/chaincore/pkg/state"
)

func newTestServer(t *testing.T) (*Server, *state.Chainstate) {
	t.Helper()
	cs := state.NewChainstate()
	headFn := func() (uint64, chain.Hash) { return 42, chain.Hash{} }
	mempoolLen := func() int { return 3 }
	submitted := 0
	submit := func(tx *protocol.Transaction) error {
		submitted++
		return nil
	}
	s := NewServer(cs, headFn, mempoolLen, submit)
	return s, cs
}

func TestHandleChainStatusReportsHeadAndMempool(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chain/status", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	var got ChainStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.HeadHeight != 42 || got.MempoolSize != 3 {
		t.Fatalf("want head 42 mempool 3, got %+v", got)
	}
}

func TestHandleAccountFoundAndNotFound(t *testing.T) {
	s, cs := newTestServer(t)
	acc, err := cs.CreateAccount(func(a *state.Account) { a.Name = "alice" })
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	core := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAsset, Instance: 0}
	cs.AddBalance(acc.Id, core, 500)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/alice", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	var got AccountInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Name != "alice" || got.Balance != 500 {
		t.Fatalf("want alice/500, got %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/accounts/bob", nil)
	rr = httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("want 404 for unknown account, got %d", rr.Code)
	}
}

func TestHandleOrderbookReturnsRestingAskWithPrice(t *testing.T) {
	s, cs := newTestServer(t)
	base, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "BASE" }, nil)
	if err != nil {
		t.Fatalf("create base: %v", err)
	}
	quote, err := cs.CreateAsset(func(a *state.Asset) { a.Symbol = "QUOTE" }, nil)
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	seller := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: 1}
	if _, err := objectdb.Create(cs.DB, cs.LimitOrders, func(o *state.LimitOrder) {
		o.Seller = seller
		o.ForSale = 10
		o.SellPrice = state.Price{
			Base:  state.AssetAmount{AssetID: base.Id, Amount: 10},
			Quote: state.AssetAmount{AssetID: quote.Id, Amount: 20},
		}
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assets/BASE/QUOTE/orderbook", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got OrderbookSnapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Asks) != 1 {
		t.Fatalf("want one resting ask, got %d", len(got.Asks))
	}
	if got.Asks[0].Price != 0.5 {
		t.Fatalf("want price 10/20=0.5, got %v", got.Asks[0].Price)
	}
}

func TestHandleOrderbookUnknownSymbolNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assets/NOPE/ALSONOPE/orderbook", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("want 404 for unknown symbols, got %d", rr.Code)
	}
}

func TestHandleSubmitTransactionInvokesSubmit(t *testing.T) {
	cs := state.NewChainstate()
	headFn := func() (uint64, chain.Hash) { return 0, chain.Hash{} }
	mempoolLen := func() int { return 0 }
	var gotTx *protocol.Transaction
	submit := func(tx *protocol.Transaction) error {
		gotTx = tx
		return nil
	}
	s := NewServer(cs, headFn, mempoolLen, submit)

	tx := protocol.Transaction{RefBlockNum: 1, RefBlockPrefix: 2, Expiration: 3}
	body, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotTx == nil || gotTx.RefBlockNum != 1 {
		t.Fatalf("want submit invoked with the decoded transaction, got %+v", gotTx)
	}
}

func TestHandleSubmitTransactionRejectsMalformedBody(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for malformed body, got %d", rr.Code)
	}
}

func TestHandleWitnessesListsRoster(t *testing.T) {
	s, cs := newTestServer(t)
	if _, err := objectdb.Create(cs.DB, cs.Witnesses, func(w *state.Witness) {
		w.WitnessAccount = objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: 1}
		w.TotalVotes = 100
	}); err != nil {
		t.Fatalf("create witness: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/witnesses", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	var got []WitnessInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].TotalVotes != 100 {
		t.Fatalf("want one witness with 100 votes, got %+v", got)
	}
}
