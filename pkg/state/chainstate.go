package state

import (
	"github.com/hyperlicked/chaincore/pkg/objectdb"
)

// Chainstate owns the object database and every typed index the chain
// core reads and mutates. One Chainstate backs one chain (or one fork
// branch's working copy), grounded on the teacher's pattern of a single
// struct wiring named stores together (pkg/app/core/core.go's Core).
type Chainstate struct {
	DB *objectdb.Database

	Accounts           *objectdb.Index[*Account]
	AccountStats       *objectdb.Index[*AccountStatistics]
	Assets             *objectdb.Index[*Asset]
	AssetDynamicData   *objectdb.Index[*AssetDynamicData]
	BitassetData       *objectdb.Index[*BitassetData]
	LimitOrders        *objectdb.Index[*LimitOrder]
	CallOrders         *objectdb.Index[*CallOrder]
	ForceSettlements   *objectdb.Index[*ForceSettlementOrder]
	Witnesses          *objectdb.Index[*Witness]
	Balances           *objectdb.Index[*Balance]

	AccountsByName      *objectdb.ByKey[string, *Account]
	StatsByOwner        *objectdb.ByKey[objectdb.ID, *AccountStatistics]
	AssetsBySymbol      *objectdb.ByKey[string, *Asset]
	BitassetByAsset      *objectdb.ByKey[objectdb.ID, *BitassetData]
	OrdersBySeller      *objectdb.ByKey[objectdb.ID, *LimitOrder]
	CallsByBorrower      *objectdb.ByKey[objectdb.ID, *CallOrder]
	SettlementsByOwner   *objectdb.ByKey[objectdb.ID, *ForceSettlementOrder]
	WitnessesByAccount   *objectdb.ByKey[objectdb.ID, *Witness]
	BalancesByOwner      *objectdb.ByKey[objectdb.ID, *Balance]
	balancesByKey        *objectdb.ByKey[balanceKey, *Balance]
}

// balanceKey is the (owner, asset) composite Balances are looked up by.
type balanceKey struct {
	Owner objectdb.ID
	Asset objectdb.ID
}

// NewChainstate builds an empty Chainstate with every primary and
// secondary index wired.
func NewChainstate() *Chainstate {
	cs := &Chainstate{DB: objectdb.NewDatabase()}

	cs.Accounts = objectdb.NewIndex[*Account](objectdb.SpaceProtocol, objectdb.TypeAccount,
		func() *Account { return &Account{} },
		func(a *Account) *Account { cp := *a; return &cp })
	cs.AccountStats = objectdb.NewIndex[*AccountStatistics](objectdb.SpaceImplementation, objectdb.TypeAccountStatistics,
		func() *AccountStatistics { return &AccountStatistics{} },
		func(s *AccountStatistics) *AccountStatistics { cp := *s; return &cp })
	cs.Assets = objectdb.NewIndex[*Asset](objectdb.SpaceProtocol, objectdb.TypeAsset,
		func() *Asset { return &Asset{} },
		func(a *Asset) *Asset { cp := *a; return &cp })
	cs.AssetDynamicData = objectdb.NewIndex[*AssetDynamicData](objectdb.SpaceImplementation, objectdb.TypeAssetDynamicData,
		func() *AssetDynamicData { return &AssetDynamicData{} },
		func(d *AssetDynamicData) *AssetDynamicData { cp := *d; return &cp })
	cs.BitassetData = objectdb.NewIndex[*BitassetData](objectdb.SpaceImplementation, objectdb.TypeBitassetData,
		func() *BitassetData { return &BitassetData{Feeds: map[objectdb.ID]FeedEntry{}} },
		func(bd *BitassetData) *BitassetData {
			cp := *bd
			cp.Feeds = make(map[objectdb.ID]FeedEntry, len(bd.Feeds))
			for k, v := range bd.Feeds {
				cp.Feeds[k] = v
			}
			return &cp
		})
	cs.LimitOrders = objectdb.NewIndex[*LimitOrder](objectdb.SpaceProtocol, objectdb.TypeLimitOrder,
		func() *LimitOrder { return &LimitOrder{} },
		func(o *LimitOrder) *LimitOrder { cp := *o; return &cp })
	cs.CallOrders = objectdb.NewIndex[*CallOrder](objectdb.SpaceProtocol, objectdb.TypeCallOrder,
		func() *CallOrder { return &CallOrder{} },
		func(c *CallOrder) *CallOrder { cp := *c; return &cp })
	cs.ForceSettlements = objectdb.NewIndex[*ForceSettlementOrder](objectdb.SpaceProtocol, objectdb.TypeForceSettlement,
		func() *ForceSettlementOrder { return &ForceSettlementOrder{} },
		func(f *ForceSettlementOrder) *ForceSettlementOrder { cp := *f; return &cp })
	cs.Witnesses = objectdb.NewIndex[*Witness](objectdb.SpaceProtocol, objectdb.TypeWitness,
		func() *Witness { return &Witness{} },
		func(w *Witness) *Witness { cp := *w; return &cp })
	cs.Balances = objectdb.NewIndex[*Balance](objectdb.SpaceImplementation, objectdb.TypeBalance,
		func() *Balance { return &Balance{} },
		func(b *Balance) *Balance { cp := *b; return &cp })

	cs.AccountsByName = objectdb.NewByKey(cs.Accounts, func(a *Account) string { return a.Name })
	cs.StatsByOwner = objectdb.NewByKey(cs.AccountStats, func(s *AccountStatistics) objectdb.ID { return s.Owner })
	cs.AssetsBySymbol = objectdb.NewByKey(cs.Assets, func(a *Asset) string { return a.Symbol })
	cs.BitassetByAsset = objectdb.NewByKey(cs.BitassetData, func(bd *BitassetData) objectdb.ID { return bd.AssetID })
	cs.OrdersBySeller = objectdb.NewByKey(cs.LimitOrders, func(o *LimitOrder) objectdb.ID { return o.Seller })
	cs.CallsByBorrower = objectdb.NewByKey(cs.CallOrders, func(c *CallOrder) objectdb.ID { return c.Borrower })
	cs.SettlementsByOwner = objectdb.NewByKey(cs.ForceSettlements, func(f *ForceSettlementOrder) objectdb.ID { return f.Owner })
	cs.WitnessesByAccount = objectdb.NewByKey(cs.Witnesses, func(w *Witness) objectdb.ID { return w.WitnessAccount })
	cs.BalancesByOwner = objectdb.NewByKey(cs.Balances, func(b *Balance) objectdb.ID { return b.Owner })
	cs.balancesByKey = objectdb.NewByKey(cs.Balances, func(b *Balance) balanceKey {
		return balanceKey{Owner: b.Owner, Asset: b.AssetID}
	})

	return cs
}

// Balance returns owner's holding of asset, or zero if no Balance
// object exists for that pair yet.
func (cs *Chainstate) Balance(owner, asset objectdb.ID) int64 {
	ids := cs.balancesByKey.Lookup(balanceKey{Owner: owner, Asset: asset})
	if len(ids) == 0 {
		return 0
	}
	b, ok := cs.Balances.Find(ids[0])
	if !ok {
		return 0
	}
	return b.Amount
}

// AddBalance adjusts owner's holding of asset by delta (which may be
// negative), creating the Balance object on first use. Callers are
// responsible for rejecting a resulting negative balance before calling
// this with a debit (spec.md §7's precondition-failure category).
func (cs *Chainstate) AddBalance(owner, asset objectdb.ID, delta int64) *Balance {
	ids := cs.balancesByKey.Lookup(balanceKey{Owner: owner, Asset: asset})
	if len(ids) == 0 {
		b, err := objectdb.Create(cs.DB, cs.Balances, func(b *Balance) {
			b.Owner = owner
			b.AssetID = asset
			b.Amount = delta
		})
		if err != nil {
			panic(err) // instance space exhaustion is an InvariantViolation-class bug, not reachable in practice
		}
		return b
	}
	b, _ := cs.Balances.Find(ids[0])
	objectdb.Modify(cs.DB, cs.Balances, b, func(b *Balance) { b.Amount += delta })
	return b
}

// ActiveAuthority implements AccountResolver so Authority.Satisfied can
// recurse into nested account authorities.
func (cs *Chainstate) ActiveAuthority(id objectdb.ID) (Authority, bool) {
	acc, ok := cs.Accounts.Find(id)
	if !ok {
		return Authority{}, false
	}
	return acc.Active, true
}

// Call orders have no price-keyed secondary index here: price ordering
// is handled at the market layer since ByKey groups by exact key
// equality, not by range; CallsByBorrower above is the
// equality-keyed secondary index. The price-ordered scan for margin
// calls is implemented in pkg/market, which walks Chainstate.CallOrders
// directly and sorts by CallPrice (spec.md §4.3's by-collateralization
// order is a range query, not a hash lookup).

// StartUndo begins a new nested undo session over the whole chainstate.
func (cs *Chainstate) StartUndo() *objectdb.Session { return cs.DB.StartUndoSession() }

// CreateAccount allocates a new Account plus its backing
// AccountStatistics, wiring the back-link both ways as part of the same
// logical creation (spec.md §4.2's account-create postconditions).
func (cs *Chainstate) CreateAccount(build func(*Account)) (*Account, error) {
	acc, err := objectdb.Create(cs.DB, cs.Accounts, build)
	if err != nil {
		return nil, err
	}
	stats, err := objectdb.Create(cs.DB, cs.AccountStats, func(s *AccountStatistics) {
		s.Owner = acc.Id
	})
	if err != nil {
		return nil, err
	}
	objectdb.Modify(cs.DB, cs.Accounts, acc, func(a *Account) { a.StatisticsID = stats.Id })
	return acc, nil
}

// CreateAsset allocates a new Asset plus its AssetDynamicData, and — for
// market-issued assets — its BitassetData companion (spec.md §4.2's
// asset-create postconditions).
func (cs *Chainstate) CreateAsset(build func(*Asset), bitasset *BitassetOptions) (*Asset, error) {
	a, err := objectdb.Create(cs.DB, cs.Assets, build)
	if err != nil {
		return nil, err
	}
	dd, err := objectdb.Create(cs.DB, cs.AssetDynamicData, func(d *AssetDynamicData) {
		d.AssetID = a.Id
	})
	if err != nil {
		return nil, err
	}
	objectdb.Modify(cs.DB, cs.Assets, a, func(x *Asset) { x.DynamicDataID = dd.Id })

	if bitasset != nil {
		bd, err := objectdb.Create(cs.DB, cs.BitassetData, func(bd *BitassetData) {
			bd.AssetID = a.Id
			bd.Options = *bitasset
			bd.Feeds = map[objectdb.ID]FeedEntry{}
		})
		if err != nil {
			return nil, err
		}
		objectdb.Modify(cs.DB, cs.Assets, a, func(x *Asset) {
			x.BitassetDataID = bd.Id
			x.IsMarketIssued = true
		})
	}
	return a, nil
}
