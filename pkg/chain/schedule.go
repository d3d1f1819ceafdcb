package chain

import (
	"sort"

	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// xorshiftMultiplier is the xorshift* constant C from spec.md §4.4.
const xorshiftMultiplier uint64 = 2685821657736338717

// minWitnessSeparationTable is spec.md §4.4's degenerate separation
// table for fewer than five active witnesses, indexed by witness count.
var minWitnessSeparationTable = [5]uint64{0, 0, 1, 1, 2}

// MinWitnessSeparation returns the minimum number of absolute slots
// that must separate two productions by the same witness, given the
// current active witness count and the configured steady-state value.
func MinWitnessSeparation(activeCount int, configured uint64) uint64 {
	if activeCount < len(minWitnessSeparationTable) {
		return minWitnessSeparationTable[activeCount]
	}
	return configured
}

// shuffleKey implements spec.md §4.4's xorshift* scoring function:
// k = (slot_time << 32) xor (witness_id * C); then three xorshift
// rounds and a final multiply.
func shuffleKey(slotTime int64, witnessID uint64) uint64 {
	k := (uint64(slotTime) << 32) ^ (witnessID * xorshiftMultiplier)
	k ^= k >> 12
	k ^= k << 25
	k ^= k >> 27
	return k * xorshiftMultiplier
}

// ScheduledWitness returns the witness id scheduled to produce at
// slotTime (already floor-aligned to the block interval), the highest
// xorshift* key among active witnesses not excluded by the minimum
// separation rule.
func ScheduledWitness(active []*state.Witness, slotTime int64, currentAbsoluteSlot uint64, minSeparation uint64) (objectdb.ID, bool) {
	var best *state.Witness
	var bestKey uint64
	for _, w := range active {
		if w.LastAslot != 0 && currentAbsoluteSlot-w.LastAslot < minSeparation {
			continue
		}
		k := shuffleKey(slotTime, w.Id.Instance)
		if best == nil || k > bestKey {
			best, bestKey = w, k
		}
	}
	if best == nil {
		return objectdb.ID{}, false
	}
	return best.Id, true
}

// ShuffleActiveWitnesses ranks active by stake-weighted votes
// descending and returns the top n, implementing spec.md §4.4's
// maintenance-time witness reshuffle input selection. Tie-broken by
// object id for determinism.
func ShuffleActiveWitnesses(cs *state.Chainstate, n int) []*state.Witness {
	all := cs.Witnesses.All()
	sort.Slice(all, func(i, j int) bool {
		if all[i].TotalVotes != all[j].TotalVotes {
			return all[i].TotalVotes > all[j].TotalVotes
		}
		return all[i].Id.Instance < all[j].Id.Instance
	})
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// SlotTime implements spec.md §4.4's slot-time rule: slot zero is the
// head block's time; slot n>0 is head_slot_time + n*blockInterval, plus
// maintenanceSkipSlots*blockInterval if the head block was itself a
// maintenance block. Floor-aligned to blockInterval.
func SlotTime(headSlotTime int64, n uint64, blockInterval int64, headWasMaintenance bool, maintenanceSkipSlots uint64) int64 {
	t := headSlotTime + int64(n)*blockInterval
	if headWasMaintenance {
		t += int64(maintenanceSkipSlots) * blockInterval
	}
	return (t / blockInterval) * blockInterval
}
