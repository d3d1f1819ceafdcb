package state

import (
	"encoding/binary"

	"github.com/hyperlicked/chaincore/pkg/objectdb"
)

// Account is the protocol-space entity created by account-create and
// never removed (spec.md §3's entity catalog), though it may be renamed.
type Account struct {
	objectdb.Base
	Name         string
	Owner        Authority
	Active       Authority
	Options      AccountOptions
	StatisticsID objectdb.ID
}

// AccountOptions holds the per-account fee-cut percentages and referrer
// chain spec.md §4.2's maintenance fee split reads from.
type AccountOptions struct {
	MemoKey                       [20]byte
	VotingAccount                 objectdb.ID
	Registrar                     objectdb.ID
	Referrer                      objectdb.ID
	LifetimeReferrer              objectdb.ID
	NetworkFeePercentage          uint16 // bps of the total fee burned
	LifetimeReferrerFeePercentage uint16 // bps of the remainder to the lifetime referrer
	ReferrerRewardPercentage      uint16 // bps of what's left to the direct referrer; registrar takes the residual
	IsLifetimeMember              bool
}

func (a *Account) Encode() []byte {
	b := appendID(nil, a.Id)
	b = append(b, []byte(a.Name)...)
	b = append(b, 0)
	b = append(b, a.Owner.Encode()...)
	b = append(b, a.Active.Encode()...)
	b = append(b, a.Options.MemoKey[:]...)
	b = appendID(b, a.Options.VotingAccount)
	b = appendID(b, a.Options.Registrar)
	b = appendID(b, a.Options.Referrer)
	b = appendID(b, a.Options.LifetimeReferrer)
	b = binary.BigEndian.AppendUint16(b, a.Options.NetworkFeePercentage)
	b = binary.BigEndian.AppendUint16(b, a.Options.LifetimeReferrerFeePercentage)
	b = binary.BigEndian.AppendUint16(b, a.Options.ReferrerRewardPercentage)
	if a.Options.IsLifetimeMember {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	b = appendID(b, a.StatisticsID)
	return b
}

// AccountStatistics is the per-account backlink entity spec.md §3 names:
// pending fee buckets, lifetime totals, most-recent-op link.
type AccountStatistics struct {
	objectdb.Base
	Owner             objectdb.ID
	PendingFees       int64
	PendingVestedFees int64
	LifetimeFeesPaid  int64
	TotalCoreInOrders int64
	MostRecentOp      objectdb.ID
}

func (s *AccountStatistics) Encode() []byte {
	b := appendID(nil, s.Id)
	b = appendID(b, s.Owner)
	b = binary.BigEndian.AppendUint64(b, uint64(s.PendingFees))
	b = binary.BigEndian.AppendUint64(b, uint64(s.PendingVestedFees))
	b = binary.BigEndian.AppendUint64(b, uint64(s.LifetimeFeesPaid))
	b = binary.BigEndian.AppendUint64(b, uint64(s.TotalCoreInOrders))
	return appendID(b, s.MostRecentOp)
}

// AssetOptions carries the per-asset flags, whitelists and core exchange
// rate spec.md §3/§4.2 reference (transfer restriction, whitelist
// authorities intersected with account whitelisting/blacklisting).
type AssetOptions struct {
	MaxSupply            int64
	MarketFeePercent     uint16
	TransferRestricted   bool
	WhitelistAuthorities []objectdb.ID
	BlacklistAuthorities []objectdb.ID
	WhitelistMarkets     []objectdb.ID
	CoreExchangeRate     Price
}

// Asset is the protocol-space entity created by asset-create, never
// removed (spec.md §3).
type Asset struct {
	objectdb.Base
	Symbol         string
	Precision      uint8
	Issuer         objectdb.ID
	Options        AssetOptions
	DynamicDataID  objectdb.ID
	BitassetDataID objectdb.ID
	IsMarketIssued bool
}

func (a *Asset) Encode() []byte {
	b := appendID(nil, a.Id)
	b = append(b, []byte(a.Symbol)...)
	b = append(b, 0, a.Precision)
	b = appendID(b, a.Issuer)
	b = binary.BigEndian.AppendUint64(b, uint64(a.Options.MaxSupply))
	b = binary.BigEndian.AppendUint16(b, a.Options.MarketFeePercent)
	b = appendID(b, a.DynamicDataID)
	b = appendID(b, a.BitassetDataID)
	return b
}

// AssetDynamicData tracks the live supply counters spec.md §3's supply
// invariant is checked against.
type AssetDynamicData struct {
	objectdb.Base
	AssetID            objectdb.ID
	CurrentSupply      int64
	ConfidentialSupply int64
	AccumulatedFees    int64
	FeePool            int64
}

func (d *AssetDynamicData) Encode() []byte {
	b := appendID(nil, d.Id)
	b = appendID(b, d.AssetID)
	b = binary.BigEndian.AppendUint64(b, uint64(d.CurrentSupply))
	b = binary.BigEndian.AppendUint64(b, uint64(d.ConfidentialSupply))
	b = binary.BigEndian.AppendUint64(b, uint64(d.AccumulatedFees))
	return binary.BigEndian.AppendUint64(b, uint64(d.FeePool))
}

// PriceFeed is one publisher's view of a bitasset's backing value plus
// the collateral ratios they're attesting to (spec.md §4.2's
// asset-publish-feed payload).
type PriceFeed struct {
	SettlementPrice            Price
	MaintenanceCollateralRatio uint16 // scaled by CollateralRatioDenom
	MaximumShortSqueezeRatio   uint16
	CoreExchangeRate           Price
}

// BitassetOptions parameterizes a market-issued asset's feed and
// settlement behavior.
type BitassetOptions struct {
	MinimumFeeds                 uint8
	FeedLifetimeSec               uint32
	ForceSettlementDelaySec        uint32
	ForceSettlementOffsetPercent   uint16
	MaximumForceSettlementVolume   uint16 // bps of total supply, per day
}

// BitassetData is the market-issued-asset companion entity spec.md §3
// describes; removed with its asset.
type BitassetData struct {
	objectdb.Base
	AssetID             objectdb.ID
	Options             BitassetOptions
	Feeds               map[objectdb.ID]FeedEntry // publisher -> (feed, publish_time)
	CurrentFeed         PriceFeed
	CurrentFeedPublish  int64
	SettlementPrice     Price
	SettlementFund      int64
	HasSettlement       bool
	ShortBackingAssetID objectdb.ID
	IsPredictionMarket  bool
}

type FeedEntry struct {
	Feed        PriceFeed
	PublishTime int64
}

func (bd *BitassetData) Encode() []byte {
	b := appendID(nil, bd.Id)
	b = appendID(b, bd.AssetID)
	b = append(b, bd.CurrentFeed.SettlementPrice.Encode()...)
	if bd.HasSettlement {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	return binary.BigEndian.AppendUint64(b, uint64(bd.SettlementFund))
}

// MCR/short-squeeze ratio bounds for asset-publish-feed, spec.md §4.2.
const (
	CollateralRatioDenom = 1000
	MinCollateralRatio   = 1000 // 1.0x
	MaxCollateralRatio   = 10000
)

// LimitOrder is the order-book entity of spec.md §3/§4.3.
type LimitOrder struct {
	objectdb.Base
	Seller      objectdb.ID
	ForSale     int64
	SellPrice   Price // Base = asset being sold, Quote = asset wanted
	Expiration  int64
	DeferredFee int64
	FillOrKill  bool
}

// AmountForSale returns the order's current residual for-sale amount, in
// the base asset of SellPrice.
func (o *LimitOrder) AmountForSale() AssetAmount {
	return AssetAmount{AssetID: o.SellPrice.Base.AssetID, Amount: o.ForSale}
}

// AmountToReceive returns what the order still expects, at SellPrice.
func (o *LimitOrder) AmountToReceive() AssetAmount {
	return AssetAmount{AssetID: o.SellPrice.Quote.AssetID, Amount: o.SellPrice.Invert().Mul(o.ForSale)}
}

func (o *LimitOrder) Encode() []byte {
	b := appendID(nil, o.Id)
	b = appendID(b, o.Seller)
	b = binary.BigEndian.AppendUint64(b, uint64(o.ForSale))
	b = append(b, o.SellPrice.Encode()...)
	return binary.BigEndian.AppendUint64(b, uint64(o.Expiration))
}

// CallOrder is the margin position of spec.md §3/§4.2/§4.3.
type CallOrder struct {
	objectdb.Base
	Borrower              objectdb.ID
	Collateral            int64 // backing-asset units
	Debt                  int64 // bitasset units
	CallPrice             Price // collateral/debt scaled by MCR
	TargetCollateralRatio uint16 // 0 means "not set"
}

// Collateralization returns the order's collateral/debt ratio as a
// Price with Base=collateral-asset, Quote=debt-asset — comparable
// directly against a feed price via Price.Compare.
func (c *CallOrder) Collateralization(backingAsset, bitasset objectdb.ID) Price {
	return Price{
		Base:  AssetAmount{AssetID: backingAsset, Amount: c.Collateral},
		Quote: AssetAmount{AssetID: bitasset, Amount: c.Debt},
	}
}

func (c *CallOrder) Encode() []byte {
	b := appendID(nil, c.Id)
	b = appendID(b, c.Borrower)
	b = binary.BigEndian.AppendUint64(b, uint64(c.Collateral))
	b = binary.BigEndian.AppendUint64(b, uint64(c.Debt))
	return append(b, c.CallPrice.Encode()...)
}

// ForceSettlementOrder is a user's queued redemption request, spec.md §3.
type ForceSettlementOrder struct {
	objectdb.Base
	Owner          objectdb.ID
	Balance        AssetAmount
	SettlementDate int64
}

func (f *ForceSettlementOrder) Encode() []byte {
	b := appendID(nil, f.Id)
	b = appendID(b, f.Owner)
	b = append(b, f.Balance.Encode()...)
	return binary.BigEndian.AppendUint64(b, uint64(f.SettlementDate))
}

// Balance is an account's holding of one asset. Not named as its own
// row in the entity catalog but required by the supply invariant
// (Σ(balances) term); modelled as its own implementation-space entity
// rather than an inline account field so it can be looked up and
// iterated per-asset without touching the account record, matching
// Graphene's account_balance_object.
type Balance struct {
	objectdb.Base
	Owner   objectdb.ID
	AssetID objectdb.ID
	Amount  int64
}

func (b *Balance) Encode() []byte {
	buf := appendID(nil, b.Id)
	buf = appendID(buf, b.Owner)
	buf = appendID(buf, b.AssetID)
	return binary.BigEndian.AppendUint64(buf, uint64(b.Amount))
}

// Witness is a candidate block producer, tracked for the slot-scheduling
// PRF of spec.md §4.4.
type Witness struct {
	objectdb.Base
	WitnessAccount objectdb.ID
	SigningKey     [20]byte
	LastAslot      uint64
	TotalVotes     uint64
	URL            string
}

func (w *Witness) Encode() []byte {
	b := appendID(nil, w.Id)
	b = appendID(b, w.WitnessAccount)
	b = append(b, w.SigningKey[:]...)
	b = binary.BigEndian.AppendUint64(b, w.LastAslot)
	return binary.BigEndian.AppendUint64(b, w.TotalVotes)
}
