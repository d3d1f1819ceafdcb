package protocol

// Schedule holds the current core-asset fee for every operation tag
// plus the bulk-discount and fee-split parameters spec.md §4.2
// describes. Grounded on the teacher's params.Config pattern
// (params/config.go) of one flat struct of tunables loaded at startup.
type Schedule struct {
	BaseFee map[Tag]int64

	// NetworkPercent is the bps of every collected fee that is burned
	// into the asset's accumulated_fees rather than distributed.
	NetworkPercent uint16

	// BulkDiscount piecewise-linear rebate schedule: accounts whose
	// fee volume (evaluator.CollectFee passes the account's lifetime
	// fees paid) is at or below ThresholdMin get no discount; at or above
	// ThresholdMax they get MaxDiscountPercent; linear in between.
	BulkDiscount BulkDiscountSchedule
}

// BulkDiscountSchedule is spec.md §4.2's "piecewise-linear schedule
// parameterized by (threshold_min, threshold_max, max_discount)".
type BulkDiscountSchedule struct {
	ThresholdMin      int64
	ThresholdMax      int64
	MaxDiscountPercent uint16
}

// DiscountPercent returns the bps rebate owed to an account with the
// given trailing fee volume.
func (d BulkDiscountSchedule) DiscountPercent(volume int64) uint16 {
	if volume <= d.ThresholdMin {
		return 0
	}
	if volume >= d.ThresholdMax {
		return d.MaxDiscountPercent
	}
	span := d.ThresholdMax - d.ThresholdMin
	if span <= 0 {
		return 0
	}
	return uint16(int64(d.MaxDiscountPercent) * (volume - d.ThresholdMin) / span)
}

// Cut computes floor(x*p/10000), the fee-split primitive of spec.md
// §4.2, with the degenerate cases stated explicitly so they hold even
// under integer truncation for very small x.
func Cut(x int64, percentBps uint16) int64 {
	if percentBps == 0 {
		return 0
	}
	if percentBps >= 10000 {
		return x
	}
	return x * int64(percentBps) / 10000
}

// FeeSplit is the result of dividing one payer's accumulated fee across
// the network burn, lifetime-referrer, referrer and registrar shares.
// Distribution sums exactly to Total; the registrar absorbs the
// rounding residual, per spec.md §4.2 point 4.
type FeeSplit struct {
	Total            int64
	NetworkBurn      int64
	LifetimeReferrer int64
	Referrer         int64
	Registrar        int64
}

// SplitFee divides total according to the schedule's network percent and
// the account's own lifetime-referrer/referrer bps cuts (AccountOptions).
func SplitFee(total int64, networkPercent, lifetimeReferrerPercent, referrerPercent uint16) FeeSplit {
	burn := Cut(total, networkPercent)
	remainder := total - burn
	lifetime := Cut(remainder, lifetimeReferrerPercent)
	remainder -= lifetime
	referrer := Cut(remainder, referrerPercent)
	registrar := remainder - referrer
	return FeeSplit{
		Total:            total,
		NetworkBurn:      burn,
		LifetimeReferrer: lifetime,
		Referrer:         referrer,
		Registrar:        registrar,
	}
}

// Fee returns the core-asset fee owed for op under s, after applying the
// payer's bulk discount.
func (s Schedule) Fee(tag Tag, trailingVolume int64) int64 {
	base := s.BaseFee[tag]
	discount := s.BulkDiscount.DiscountPercent(trailingVolume)
	return base - Cut(base, discount)
}
