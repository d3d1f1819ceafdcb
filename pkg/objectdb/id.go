// Package objectdb implements the chain core's typed, id-addressed object
// store: a primary index per (space, type) pair, pluggable secondary
// indexes, and a stack of undo sessions for atomic rollback.
package objectdb

import "fmt"

// Space distinguishes protocol objects (referenced on the wire) from
// implementation objects (derived, node-local bookkeeping).
type Space uint8

const (
	// SpaceProtocol holds entities that appear in operation payloads and
	// must be stable across the network.
	SpaceProtocol Space = 0
	// SpaceImplementation holds derived/auxiliary entities never
	// referenced on the wire.
	SpaceImplementation Space = 1
)

// Type enumerates the object types a space can hold. Values are grouped by
// space below; nothing requires the numbering to match across spaces.
type Type uint8

const (
	TypeAccount Type = iota
	TypeAsset
	TypeLimitOrder
	TypeCallOrder
	TypeForceSettlement
	TypeWitness
	TypeCommittee
)

const (
	TypeAccountStatistics Type = iota
	TypeAssetDynamicData
	TypeBitassetData
	TypePriceFeedPublisher
	TypeBlockSummary
	TypeBalance
)

// ID identifies a persistent entity by (space, type, instance). Instance
// counters are monotone per (space, type) pair except when rolled back by
// an undo session.
type ID struct {
	Space    Space
	Type     Type
	Instance uint64
}

func (id ID) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Space, id.Type, id.Instance)
}

// Zero reports whether id is the unset zero value.
func (id ID) Zero() bool { return id == ID{} }

// Entity is implemented by every type stored in the object database. ID
// returns the entity's assigned id (zero before Create finishes), and
// setID is called exactly once by Create to fix it.
type Entity interface {
	ID() ID
	setID(ID)
}

// Base embeds into every concrete entity to provide the Entity contract.
type Base struct {
	Id ID
}

func (b *Base) ID() ID      { return b.Id }
func (b *Base) setID(id ID) { b.Id = id }
