package state

import (
	"encoding/binary"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hyperlicked/chaincore/pkg/objectdb"
)

// Authority is a weighted-threshold signing policy: a set of public keys
// and/or nested accounts, each with a weight, satisfied once the summed
// weight of present, valid signatures/sub-authorities reaches
// WeightThreshold. Grounded on the teacher's ECDSA-recovery signer
// (pkg/crypto/signer.go) generalized from "one signing address" to the
// account authority graph of spec.md §3.
type Authority struct {
	WeightThreshold uint32
	KeyAuths        map[common.Address]uint16
	AccountAuths    map[objectdb.ID]uint16
}

func (a Authority) Encode() []byte {
	keys := make([]common.Address, 0, len(a.KeyAuths))
	for k := range a.KeyAuths {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Hex() < keys[j].Hex() })

	accs := make([]objectdb.ID, 0, len(a.AccountAuths))
	for id := range a.AccountAuths {
		accs = append(accs, id)
	}
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].Space != accs[j].Space {
			return accs[i].Space < accs[j].Space
		}
		if accs[i].Type != accs[j].Type {
			return accs[i].Type < accs[j].Type
		}
		return accs[i].Instance < accs[j].Instance
	})

	b := binary.BigEndian.AppendUint32(nil, a.WeightThreshold)
	for _, k := range keys {
		b = append(b, k.Bytes()...)
		b = binary.BigEndian.AppendUint16(b, a.KeyAuths[k])
	}
	for _, id := range accs {
		b = appendID(b, id)
		b = binary.BigEndian.AppendUint16(b, a.AccountAuths[id])
	}
	return b
}

// MaxSigCheckDepth bounds the recursion through nested account_auths per
// spec.md §9 ("Deep authority recursion ... default 2").
const MaxSigCheckDepth = 2

// AccountResolver looks an account's owner/active authority up by id, so
// Satisfied can recurse into AccountAuths without importing the account
// entity type (avoids an import cycle between Authority and Account).
type AccountResolver interface {
	ActiveAuthority(id objectdb.ID) (Authority, bool)
}

// Satisfied reports whether the given set of signing keys (plus, for
// nested accounts, their own active authority recursively) meets a's
// weight threshold. Recursion is bounded by MaxSigCheckDepth; beyond
// that, a sub-account's authority is never considered satisfied.
func (a Authority) Satisfied(keys map[common.Address]struct{}, resolve AccountResolver) bool {
	return a.satisfied(keys, resolve, MaxSigCheckDepth)
}

func (a Authority) satisfied(keys map[common.Address]struct{}, resolve AccountResolver, depthLeft int) bool {
	var total uint32
	for k, w := range a.KeyAuths {
		if _, present := keys[k]; present {
			total += uint32(w)
		}
	}
	if depthLeft > 0 {
		for accID, w := range a.AccountAuths {
			sub, ok := resolve.ActiveAuthority(accID)
			if !ok {
				continue
			}
			if sub.satisfied(keys, resolve, depthLeft-1) {
				total += uint32(w)
			}
		}
	}
	return total >= a.WeightThreshold
}
