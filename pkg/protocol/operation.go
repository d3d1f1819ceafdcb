// Package protocol defines the wire-level operation catalog of spec.md
// §6: a tagged union of ~60 operation variants (a representative core
// subset is implemented here; the rest are named in SPEC_FULL.md's
// Non-goals as layered extensions), each with a pure Validate, a
// Fee calculation against a fee Schedule, and a fixed wire tag. Grounded
// on the teacher's transaction.SignedTransaction (pkg/app/core/transaction
// /types.go) generalized from a 2-variant order/cancel union to the
// fixed numbered enumeration spec.md §6 requires.
package protocol

import (
	"fmt"

	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// Tag is the wire discriminant of an Operation. The tag-to-type mapping
// is part of the protocol and must never be reordered once assigned.
type Tag uint8

const (
	TagTransfer             Tag = 0
	TagLimitOrderCreate     Tag = 1
	TagLimitOrderCancel     Tag = 2
	TagCallOrderUpdate      Tag = 3
	TagFillOrder            Tag = 4 // virtual
	TagAccountCreate        Tag = 5
	TagAccountUpdate        Tag = 6
	TagAssetCreate          Tag = 7
	TagAssetUpdate          Tag = 8
	TagAssetUpdateBitasset  Tag = 9
	TagAssetPublishFeed     Tag = 10
	TagAssetSettle          Tag = 11
	TagAssetGlobalSettle    Tag = 12
	TagAssetSettleCancel    Tag = 13 // virtual
	TagExecuteBid           Tag = 14 // virtual
)

// Operation is the sum-type member interface. Every variant is a
// concrete struct below; dispatch uses Tag() and type-switches in
// pkg/evaluator rather than a method-per-variant visitor, matching the
// "single apply(&mut ChainState)" alternative spec.md §REDESIGN FLAGS
// offers for the polymorphic operation variant.
type Operation interface {
	Tag() Tag
	// Validate checks structural invariants only; it must not read
	// chain state (spec.md §4.5's validate/do_evaluate/do_apply split).
	Validate() error
	// IsVirtual reports whether this variant may ever appear on the
	// wire. Virtual operations are rejected at parse time.
	IsVirtual() bool
	// FeePayer names the account whose balance is debited the fee.
	FeePayer() objectdb.ID
}

func (Transfer) Tag() Tag             { return TagTransfer }
func (LimitOrderCreate) Tag() Tag     { return TagLimitOrderCreate }
func (LimitOrderCancel) Tag() Tag     { return TagLimitOrderCancel }
func (CallOrderUpdate) Tag() Tag      { return TagCallOrderUpdate }
func (FillOrder) Tag() Tag            { return TagFillOrder }
func (AccountCreate) Tag() Tag        { return TagAccountCreate }
func (AccountUpdate) Tag() Tag        { return TagAccountUpdate }
func (AssetCreate) Tag() Tag          { return TagAssetCreate }
func (AssetUpdate) Tag() Tag          { return TagAssetUpdate }
func (AssetUpdateBitasset) Tag() Tag  { return TagAssetUpdateBitasset }
func (AssetPublishFeed) Tag() Tag     { return TagAssetPublishFeed }
func (AssetSettle) Tag() Tag          { return TagAssetSettle }
func (AssetGlobalSettle) Tag() Tag    { return TagAssetGlobalSettle }
func (AssetSettleCancel) Tag() Tag    { return TagAssetSettleCancel }
func (ExecuteBid) Tag() Tag           { return TagExecuteBid }

func (Transfer) IsVirtual() bool            { return false }
func (LimitOrderCreate) IsVirtual() bool    { return false }
func (LimitOrderCancel) IsVirtual() bool    { return false }
func (CallOrderUpdate) IsVirtual() bool     { return false }
func (FillOrder) IsVirtual() bool           { return true }
func (AccountCreate) IsVirtual() bool       { return false }
func (AccountUpdate) IsVirtual() bool       { return false }
func (AssetCreate) IsVirtual() bool         { return false }
func (AssetUpdate) IsVirtual() bool         { return false }
func (AssetUpdateBitasset) IsVirtual() bool { return false }
func (AssetPublishFeed) IsVirtual() bool    { return false }
func (AssetSettle) IsVirtual() bool         { return false }
func (AssetGlobalSettle) IsVirtual() bool   { return false }
func (AssetSettleCancel) IsVirtual() bool   { return true }
func (ExecuteBid) IsVirtual() bool          { return true }

// Transfer moves amount from From to To.
type Transfer struct {
	From   objectdb.ID
	To     objectdb.ID
	Amount state.AssetAmount
	Fee    state.AssetAmount
	Memo   []byte
}

func (t Transfer) Validate() error {
	if t.From == t.To {
		return fmt.Errorf("transfer: from and to must differ")
	}
	if t.Amount.Amount <= 0 {
		return fmt.Errorf("transfer: amount must be positive")
	}
	return nil
}
func (t Transfer) FeePayer() objectdb.ID { return t.From }

// LimitOrderCreate places a new order at Price = AmountToSell/MinToReceive.
type LimitOrderCreate struct {
	Seller         objectdb.ID
	AmountToSell   state.AssetAmount
	MinToReceive   state.AssetAmount
	Fee            state.AssetAmount
	Expiration     int64
	FillOrKill     bool
}

func (o LimitOrderCreate) Validate() error {
	if o.AmountToSell.Amount <= 0 || o.MinToReceive.Amount <= 0 {
		return fmt.Errorf("limit_order_create: amounts must be positive")
	}
	if o.AmountToSell.AssetID == o.MinToReceive.AssetID {
		return fmt.Errorf("limit_order_create: sell and receive assets must differ")
	}
	return nil
}
func (o LimitOrderCreate) FeePayer() objectdb.ID { return o.Seller }

// SellPrice is the order's limit price, base=sell asset, quote=receive asset.
func (o LimitOrderCreate) SellPrice() state.Price {
	return state.Price{Base: o.AmountToSell, Quote: o.MinToReceive}
}

// LimitOrderCancel removes an open order, refunding its residual.
type LimitOrderCancel struct {
	Order objectdb.ID
	Fee   state.AssetAmount
}

func (c LimitOrderCancel) Validate() error {
	if c.Order.Zero() {
		return fmt.Errorf("limit_order_cancel: missing order id")
	}
	return nil
}
func (c LimitOrderCancel) FeePayer() objectdb.ID { return objectdb.ID{} } // resolved from the order at evaluate time

// CallOrderUpdate adjusts collateral and/or debt of the payer's call
// order against a bitasset, per spec.md §4.2.
type CallOrderUpdate struct {
	FundingAccount        objectdb.ID
	DeltaCollateral       state.AssetAmount // may be zero
	DeltaDebt             state.AssetAmount // may be zero
	Fee                   state.AssetAmount
	TargetCollateralRatio *uint16     // nil means "leave unset"
	CallPrice             state.Price // zero value means "derive from MCR"
}

func (u CallOrderUpdate) Validate() error {
	if u.DeltaCollateral.Amount == 0 && u.DeltaDebt.Amount == 0 {
		return fmt.Errorf("call_order_update: must change collateral or debt")
	}
	if u.TargetCollateralRatio != nil && (*u.TargetCollateralRatio < state.MinCollateralRatio || *u.TargetCollateralRatio > state.MaxCollateralRatio) {
		return fmt.Errorf("call_order_update: target collateral ratio out of range")
	}
	if u.CallPrice.Base.Amount != 0 || u.CallPrice.Quote.Amount != 0 {
		if err := u.CallPrice.Valid(); err != nil {
			return fmt.Errorf("call_order_update: call price: %w", err)
		}
	}
	return nil
}
func (u CallOrderUpdate) FeePayer() objectdb.ID { return u.FundingAccount }

// FillOrder is a virtual record of one matched fill (never on the wire).
type FillOrder struct {
	Order       objectdb.ID
	Account     objectdb.ID
	Pays        state.AssetAmount
	Receives    state.AssetAmount
	IsMaker     bool
}

func (FillOrder) Validate() error          { return fmt.Errorf("fill_order: virtual, not constructible from wire") }
func (f FillOrder) FeePayer() objectdb.ID  { return f.Account }

// AccountCreate registers a new named account with owner/active
// authorities and a registrar/referrer fee-split configuration
// (spec.md §4.2, SPEC_FULL.md's referrer/registrar supplement).
type AccountCreate struct {
	Registrar  objectdb.ID
	Referrer   objectdb.ID
	ReferrerPercent uint16
	Name       string
	Owner      state.Authority
	Active     state.Authority
	Options    state.AccountOptions
	Fee        state.AssetAmount
}

func (c AccountCreate) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("account_create: name required")
	}
	if c.Owner.WeightThreshold == 0 || c.Active.WeightThreshold == 0 {
		return fmt.Errorf("account_create: authorities must have a nonzero threshold")
	}
	if c.ReferrerPercent > 10000 {
		return fmt.Errorf("account_create: referrer percent out of range")
	}
	return nil
}
func (c AccountCreate) FeePayer() objectdb.ID { return c.Registrar }

// AccountUpdate replaces one or more of an account's authorities/options.
type AccountUpdate struct {
	Account objectdb.ID
	Owner   *state.Authority
	Active  *state.Authority
	Options *state.AccountOptions
	Fee     state.AssetAmount
}

func (u AccountUpdate) Validate() error {
	if u.Owner == nil && u.Active == nil && u.Options == nil {
		return fmt.Errorf("account_update: no-op update")
	}
	return nil
}
func (u AccountUpdate) FeePayer() objectdb.ID { return u.Account }

// AssetCreate issues a new asset, optionally market-issued (bitasset).
type AssetCreate struct {
	Issuer    objectdb.ID
	Symbol    string
	Precision uint8
	Options   state.AssetOptions
	Bitasset  *state.BitassetOptions
	Fee       state.AssetAmount
}

func (c AssetCreate) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("asset_create: symbol required")
	}
	if c.Options.MaxSupply <= 0 || c.Options.MaxSupply > state.MaxSupply {
		return fmt.Errorf("asset_create: max_supply out of range")
	}
	return nil
}
func (c AssetCreate) FeePayer() objectdb.ID { return c.Issuer }

// AssetUpdate changes an asset's mutable options.
type AssetUpdate struct {
	Issuer  objectdb.ID
	Asset   objectdb.ID
	Options state.AssetOptions
	Fee     state.AssetAmount
}

func (u AssetUpdate) Validate() error {
	if u.Options.MaxSupply <= 0 || u.Options.MaxSupply > state.MaxSupply {
		return fmt.Errorf("asset_update: max_supply out of range")
	}
	return nil
}
func (u AssetUpdate) FeePayer() objectdb.ID { return u.Issuer }

// AssetUpdateBitasset changes a market-issued asset's BitassetOptions.
type AssetUpdateBitasset struct {
	Issuer   objectdb.ID
	Asset    objectdb.ID
	Options  state.BitassetOptions
	Fee      state.AssetAmount
}

func (u AssetUpdateBitasset) Validate() error {
	if u.Options.MinimumFeeds == 0 {
		return fmt.Errorf("asset_update_bitasset: minimum_feeds must be at least 1")
	}
	return nil
}
func (u AssetUpdateBitasset) FeePayer() objectdb.ID { return u.Issuer }

// AssetPublishFeed submits one publisher's price feed for a bitasset.
type AssetPublishFeed struct {
	Publisher objectdb.ID
	Asset     objectdb.ID
	Feed      state.PriceFeed
	Fee       state.AssetAmount
}

func (f AssetPublishFeed) Validate() error {
	if err := f.Feed.SettlementPrice.Valid(); err != nil {
		return fmt.Errorf("asset_publish_feed: %w", err)
	}
	if f.Feed.MaintenanceCollateralRatio < state.MinCollateralRatio || f.Feed.MaintenanceCollateralRatio > state.MaxCollateralRatio {
		return fmt.Errorf("asset_publish_feed: maintenance collateral ratio out of range")
	}
	return nil
}
func (f AssetPublishFeed) FeePayer() objectdb.ID { return f.Publisher }

// AssetSettle queues amount of a bitasset for force settlement against
// its backing collateral.
type AssetSettle struct {
	Account objectdb.ID
	Amount  state.AssetAmount
	Fee     state.AssetAmount
}

func (s AssetSettle) Validate() error {
	if s.Amount.Amount <= 0 {
		return fmt.Errorf("asset_settle: amount must be positive")
	}
	return nil
}
func (s AssetSettle) FeePayer() objectdb.ID { return s.Account }

// AssetGlobalSettle triggers black-swan settlement of an entire bitasset
// at a fixed settlement price, callable only by the issuer or
// automatically when the least-collateralized order falls under 100%.
type AssetGlobalSettle struct {
	Issuer          objectdb.ID
	Asset           objectdb.ID
	SettlementPrice state.Price
	Fee             state.AssetAmount
}

func (g AssetGlobalSettle) Validate() error {
	if err := g.SettlementPrice.Valid(); err != nil {
		return fmt.Errorf("asset_global_settle: %w", err)
	}
	return nil
}
func (g AssetGlobalSettle) FeePayer() objectdb.ID { return g.Issuer }

// AssetSettleCancel is a virtual record of a force-settlement order
// cancelled without full payout (e.g. issuer bailout before maturity).
type AssetSettleCancel struct {
	Settlement objectdb.ID
	Account    objectdb.ID
	Amount     state.AssetAmount
}

func (AssetSettleCancel) Validate() error { return fmt.Errorf("asset_settle_cancel: virtual, not constructible from wire") }
func (c AssetSettleCancel) FeePayer() objectdb.ID { return c.Account }

// ExecuteBid is a virtual record of a black-swan collateral bid being
// executed once global settlement has been decided.
type ExecuteBid struct {
	Bidder     objectdb.ID
	Collateral state.AssetAmount
	Debt       state.AssetAmount
}

func (ExecuteBid) Validate() error          { return fmt.Errorf("execute_bid: virtual, not constructible from wire") }
func (e ExecuteBid) FeePayer() objectdb.ID  { return e.Bidder }
