package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
)

type fakeResolver map[objectdb.ID]Authority

func (r fakeResolver) ActiveAuthority(id objectdb.ID) (Authority, bool) {
	a, ok := r[id]
	return a, ok
}

func TestAuthoritySatisfiedByKeyWeight(t *testing.T) {
	k1 := common.HexToAddress("0x1")
	k2 := common.HexToAddress("0x2")
	a := Authority{WeightThreshold: 2, KeyAuths: map[common.Address]uint16{k1: 1, k2: 1}}

	if a.Satisfied(map[common.Address]struct{}{k1: {}}, fakeResolver{}) {
		t.Fatalf("want a single weight-1 key insufficient against threshold 2")
	}
	if !a.Satisfied(map[common.Address]struct{}{k1: {}, k2: {}}, fakeResolver{}) {
		t.Fatalf("want both keys present to satisfy threshold 2")
	}
}

func TestAuthoritySatisfiedThroughNestedAccount(t *testing.T) {
	subID := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: 1}
	subKey := common.HexToAddress("0xaa")
	resolver := fakeResolver{
		subID: Authority{WeightThreshold: 1, KeyAuths: map[common.Address]uint16{subKey: 1}},
	}
	a := Authority{WeightThreshold: 1, AccountAuths: map[objectdb.ID]uint16{subID: 1}}

	if !a.Satisfied(map[common.Address]struct{}{subKey: {}}, resolver) {
		t.Fatalf("want authority satisfied through a satisfied nested account")
	}
	if a.Satisfied(map[common.Address]struct{}{}, resolver) {
		t.Fatalf("want authority unsatisfied when the nested account's key is absent")
	}
}

func TestAuthorityDepthLimitStopsRecursion(t *testing.T) {
	leafKey := common.HexToAddress("0xff")
	level3 := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: 3}
	level2 := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: 2}
	level1 := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: 1}

	resolver := fakeResolver{
		level1: Authority{WeightThreshold: 1, AccountAuths: map[objectdb.ID]uint16{level2: 1}},
		level2: Authority{WeightThreshold: 1, AccountAuths: map[objectdb.ID]uint16{level3: 1}},
		level3: Authority{WeightThreshold: 1, KeyAuths: map[common.Address]uint16{leafKey: 1}},
	}
	// root -> level1 -> level2 -> level3 -> leafKey needs 3 account-auth
	// hops, one past MaxSigCheckDepth (2), so it must not resolve.
	root := Authority{WeightThreshold: 1, AccountAuths: map[objectdb.ID]uint16{level1: 1}}

	if root.Satisfied(map[common.Address]struct{}{leafKey: {}}, resolver) {
		t.Fatalf("want recursion beyond MaxSigCheckDepth to not satisfy the authority")
	}
}

func TestAuthorityExactlyAtDepthLimitSucceeds(t *testing.T) {
	leafKey := common.HexToAddress("0xee")
	level2 := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: 2}
	level1 := objectdb.ID{Space: objectdb.SpaceProtocol, Type: objectdb.TypeAccount, Instance: 1}

	resolver := fakeResolver{
		level1: Authority{WeightThreshold: 1, AccountAuths: map[objectdb.ID]uint16{level2: 1}},
		level2: Authority{WeightThreshold: 1, KeyAuths: map[common.Address]uint16{leafKey: 1}},
	}
	// root -> level1 -> level2 is exactly MaxSigCheckDepth (2) hops.
	root := Authority{WeightThreshold: 1, AccountAuths: map[objectdb.ID]uint16{level1: 1}}

	if !root.Satisfied(map[common.Address]struct{}{leafKey: {}}, resolver) {
		t.Fatalf("want recursion exactly at MaxSigCheckDepth to still satisfy the authority")
	}
}
