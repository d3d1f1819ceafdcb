package market

import (
	"sort"

	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// AuthorizedFeedProducers names the current feed-producer set for a
// bitasset, the "authorized publishers" spec.md §4.2 requires
// asset-publish-feed to check. In BitShares this is either the witness
// set or an issuer-curated list; callers supply it (resolved from
// chain/witness state) rather than this package reaching into that
// concern directly. A nil return means "unrestricted": every publisher
// in bd.Feeds is treated as authorized.
type AuthorizedFeedProducers func(asset objectdb.ID) map[objectdb.ID]struct{}

// RecomputeCurrentFeed applies spec.md §4.3's "price-feed lifetime"
// rule: drop feeds older than price_feed_lifetime_sec and feeds from
// unauthorized publishers, then set CurrentFeed to the median of what
// remains. If fewer than minimum_feeds remain, CurrentFeed is zeroed
// (an all-zero SettlementPrice.Base.Amount signals "no current feed",
// freezing market operations except cancellations per spec.md §4.3).
func RecomputeCurrentFeed(cs *state.Chainstate, bd *state.BitassetData, nowUnix int64, authorized AuthorizedFeedProducers) {
	allowed := authorized(bd.AssetID)
	var valid []state.PriceFeed
	for pub, entry := range bd.Feeds {
		if allowed != nil {
			if _, ok := allowed[pub]; !ok {
				continue
			}
		}
		if nowUnix-entry.PublishTime > int64(bd.Options.FeedLifetimeSec) {
			continue
		}
		valid = append(valid, entry.Feed)
	}

	if len(valid) == 0 || len(valid) < int(bd.Options.MinimumFeeds) {
		objectdb.Modify(cs.DB, cs.BitassetData, bd, func(b *state.BitassetData) {
			b.CurrentFeed = state.PriceFeed{}
			b.CurrentFeedPublish = nowUnix
		})
		return
	}

	median := medianFeed(valid)
	objectdb.Modify(cs.DB, cs.BitassetData, bd, func(b *state.BitassetData) {
		b.CurrentFeed = median
		b.CurrentFeedPublish = nowUnix
	})
}

// medianFeed sorts by SettlementPrice and returns the middle element (or
// the average of the two middle elements' ratios is not well-defined
// for exact rationals, so BitShares takes the lower-middle on ties;
// this mirrors that convention).
func medianFeed(feeds []state.PriceFeed) state.PriceFeed {
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].SettlementPrice.Less(feeds[j].SettlementPrice) })
	return feeds[(len(feeds)-1)/2]
}

// PublishFeed inserts or overwrites publisher's feed entry for bd.
func PublishFeed(cs *state.Chainstate, bd *state.BitassetData, publisher objectdb.ID, feed state.PriceFeed, nowUnix int64) {
	objectdb.Modify(cs.DB, cs.BitassetData, bd, func(b *state.BitassetData) {
		if b.Feeds == nil {
			b.Feeds = map[objectdb.ID]state.FeedEntry{}
		}
		b.Feeds[publisher] = state.FeedEntry{Feed: feed, PublishTime: nowUnix}
	})
}
