package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/hyperlicked/chaincore/pkg/objectdb"
	"github.com/hyperlicked/chaincore/pkg/state"
)

// genesisSpec is the minimal devnet bootstrap document spec.md's Non-goals
// scope down to "a minimal JSON loader" rather than full genesis-file
// parsing (block signing schedules, vesting balances, and the rest of a
// production genesis are out of scope here). Grounded on the teacher's
// params.LoadFromEnv/.env bootstrap (params/config.go): a small,
// flat, field-by-field config document rather than a generic decoder.
type genesisSpec struct {
	InitialTimestamp int64              `json:"initial_timestamp"`
	CoreAssetSymbol  string             `json:"core_asset_symbol"`
	Accounts         []genesisAccount   `json:"accounts"`
	Witnesses        []genesisWitness   `json:"witnesses"`
}

type genesisAccount struct {
	Name      string `json:"name"`
	ActiveKey string `json:"active_key"` // hex-encoded secp256k1 address, e.g. "0xabc..."
	Balance   int64  `json:"balance"`    // opening core-asset balance
}

type genesisWitness struct {
	Account     string `json:"account"`
	SigningKey  string `json:"signing_key"` // hex, 20 bytes
}

// loadGenesisSpec reads and parses a genesis document from path.
func loadGenesisSpec(path string) (*genesisSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	var g genesisSpec
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("genesis: parse %s: %w", path, err)
	}
	return &g, nil
}

// apply seeds an empty Chainstate with the core asset, the genesis
// accounts (each with a single-key active authority and opening
// balance), and the initial witness set, in that order so every
// reference (account statistics, balances, witness-account links)
// resolves within the same genesis transaction.
func (g *genesisSpec) apply(cs *state.Chainstate) (objectdb.ID, error) {
	symbol := g.CoreAssetSymbol
	if symbol == "" {
		symbol = "CORE"
	}

	coreAsset, err := cs.CreateAsset(func(a *state.Asset) {
		a.Symbol = symbol
		a.Precision = 5
		a.Issuer = objectdb.ID{} // the null account; core asset has no issuer authority
	}, nil)
	if err != nil {
		return objectdb.ID{}, fmt.Errorf("genesis: create core asset: %w", err)
	}

	byName := make(map[string]objectdb.ID, len(g.Accounts))
	for _, ga := range g.Accounts {
		addr, err := parseAddress(ga.ActiveKey)
		if err != nil {
			return objectdb.ID{}, fmt.Errorf("genesis: account %s: %w", ga.Name, err)
		}
		acc, err := cs.CreateAccount(func(a *state.Account) {
			a.Name = ga.Name
			a.Active = state.Authority{
				WeightThreshold: 1,
				KeyAuths:        map[ethcommon.Address]uint16{addr: 1},
			}
			a.Owner = a.Active
		})
		if err != nil {
			return objectdb.ID{}, fmt.Errorf("genesis: create account %s: %w", ga.Name, err)
		}
		byName[ga.Name] = acc.Id
		if ga.Balance != 0 {
			cs.AddBalance(acc.Id, coreAsset.Id, ga.Balance)
		}
	}

	for _, gw := range g.Witnesses {
		owner, ok := byName[gw.Account]
		if !ok {
			return objectdb.ID{}, fmt.Errorf("genesis: witness references unknown account %q", gw.Account)
		}
		var signingKey [20]byte
		if gw.SigningKey != "" {
			raw, err := hex.DecodeString(trimHexPrefix(gw.SigningKey))
			if err != nil {
				return objectdb.ID{}, fmt.Errorf("genesis: witness %s: signing key: %w", gw.Account, err)
			}
			copy(signingKey[:], raw)
		}
		if _, err := objectdb.Create(cs.DB, cs.Witnesses, func(w *state.Witness) {
			w.WitnessAccount = owner
			w.SigningKey = signingKey
		}); err != nil {
			return objectdb.ID{}, fmt.Errorf("genesis: create witness %s: %w", gw.Account, err)
		}
	}

	return coreAsset.Id, nil
}

func parseAddress(s string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, fmt.Errorf("not a valid hex address: %q", s)
	}
	return ethcommon.HexToAddress(s), nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
