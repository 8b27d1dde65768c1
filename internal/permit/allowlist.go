// Package permit signs EIP-2612 style approvals off-chain. Only tokens on
// an allow-list take permits; each entry pins the typed-data variant and
// the EIP-712 domain the token contract verifies against.
package permit

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Type tells which permit message shape a token verifies.
type Type int

const (
	// TypeAmount permits an exact value, the EIP-2612 shape.
	TypeAmount Type = iota + 1
	// TypeAllowed flips a boolean allowance on or off, the DAI shape.
	TypeAllowed
)

func (t Type) String() string {
	switch t {
	case TypeAmount:
		return "amount"
	case TypeAllowed:
		return "allowed"
	default:
		return "unknown"
	}
}

// Entry describes how one token wants its permit typed data shaped.
type Entry struct {
	Type Type
	// Name is the EIP-712 domain name the token contract hashes.
	Name string
	// Version is the domain version. Tokens whose domain omits the
	// version field leave it empty.
	Version string
}

// Allowlist maps chain and token to a permit descriptor. Tokens missing
// from the list do not take permits.
type Allowlist struct {
	entries map[uint64]map[common.Address]Entry
}

// DefaultAllowlist seeds the mainnet tokens with audited permit support.
func DefaultAllowlist() *Allowlist {
	list := &Allowlist{entries: make(map[uint64]map[common.Address]Entry)}
	list.add(1, common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		Entry{Type: TypeAllowed, Name: "Dai Stablecoin", Version: "1"})
	list.add(1, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		Entry{Type: TypeAmount, Name: "USD Coin", Version: "2"})
	list.add(1, common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"),
		Entry{Type: TypeAmount, Name: "Uniswap"})
	return list
}

// fileEntry is the JSON shape of one allowlist override.
type fileEntry struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// LoadAllowlist merges entries from a JSON file over the defaults. The
// file maps chain ID to token address to descriptor. An empty path keeps
// the defaults.
func LoadAllowlist(path string) (*Allowlist, error) {
	list := DefaultAllowlist()
	if path == "" {
		return list, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permit allowlist: %w", err)
	}

	var file map[string]map[string]fileEntry
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse permit allowlist: %w", err)
	}

	for chainKey, tokens := range file {
		chainID, err := strconv.ParseUint(chainKey, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("permit allowlist chain %q: %w", chainKey, err)
		}
		for tokenKey, fe := range tokens {
			if !common.IsHexAddress(tokenKey) {
				return nil, fmt.Errorf("permit allowlist token %q is not an address", tokenKey)
			}
			kind, err := parseType(fe.Type)
			if err != nil {
				return nil, fmt.Errorf("permit allowlist token %s: %w", tokenKey, err)
			}
			if fe.Name == "" {
				return nil, fmt.Errorf("permit allowlist token %s has no domain name", tokenKey)
			}
			list.add(chainID, common.HexToAddress(tokenKey),
				Entry{Type: kind, Name: fe.Name, Version: fe.Version})
		}
	}
	return list, nil
}

// Lookup returns the descriptor for a token, if the token is listed.
func (l *Allowlist) Lookup(chainID uint64, token common.Address) (Entry, bool) {
	tokens, ok := l.entries[chainID]
	if !ok {
		return Entry{}, false
	}
	entry, ok := tokens[token]
	return entry, ok
}

func (l *Allowlist) add(chainID uint64, token common.Address, entry Entry) {
	tokens, ok := l.entries[chainID]
	if !ok {
		tokens = make(map[common.Address]Entry)
		l.entries[chainID] = tokens
	}
	tokens[token] = entry
}

func parseType(raw string) (Type, error) {
	switch raw {
	case "amount":
		return TypeAmount, nil
	case "allowed":
		return TypeAllowed, nil
	default:
		return 0, fmt.Errorf("unknown permit type %q", raw)
	}
}
