// Package compliance implements the Blacklist Store: an in-memory,
// read-only-after-init set of blocked addresses with lookup and reasons.
// There is no example in the retrieved pack that implements this directly;
// the shape is patterned on the teacher's sync.RWMutex-guarded registration
// maps in facilitator.go and on the graceful degrade-on-missing-file
// loading style used for config in the pack's production service.
package compliance

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// AccountType distinguishes which family a blocked wallet belongs to, since
// EVM and Solana addresses canonicalize differently (lowercase-hex vs
// case-sensitive base58).
type AccountType string

const (
	AccountEVM    AccountType = "evm"
	AccountSolana AccountType = "solana"
)

// Role identifies which side of a payment is being screened.
type Role string

const (
	RoleSender    Role = "sender"
	RoleRecipient Role = "recipient"
)

// entry is the on-disk blacklist file shape: an array of
// {account_type, wallet, reason}.
type entry struct {
	AccountType AccountType `json:"account_type"`
	Wallet      string      `json:"wallet"`
	Reason      string      `json:"reason"`
}

// Snapshot is the response shape for the public blacklist operation.
type Snapshot struct {
	TotalBlocked    int      `json:"totalBlocked"`
	EVMCount        int      `json:"evmCount"`
	SolanaCount     int      `json:"solanaCount"`
	LoadedAtStartup bool     `json:"loadedAtStartup"`
	Entries         []string `json:"entries"`
}

// Store is the blacklist: two sets (EVM lowercase-hex, Solana base58) plus
// a parallel map from canonical address to reason. Immutable after Load;
// mutation after startup is not supported, matching the spec's policy.
type Store struct {
	mu              sync.RWMutex
	evm             map[string]string // canonical lowercase hex -> reason
	solana          map[string]string // exact base58 -> reason
	loadedAtStartup bool
}

// Empty returns a Store with no entries and loadedAtStartup=false, the
// state used when no blacklist file is configured or loading fails.
func Empty() *Store {
	return &Store{evm: map[string]string{}, solana: map[string]string{}}
}

// Load reads a blacklist file. A missing or malformed file is not fatal:
// it logs a warning and returns an empty store with loadedAtStartup=false,
// per the spec's policy that the facilitator must still start.
func Load(path string) *Store {
	if path == "" {
		slog.Warn("compliance: no blacklist file configured, starting with empty set")
		return Empty()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("compliance: blacklist file unreadable, starting with empty set", "path", path, "error", err)
		return Empty()
	}
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("compliance: blacklist file malformed, starting with empty set", "path", path, "error", err)
		return Empty()
	}

	s := &Store{evm: map[string]string{}, solana: map[string]string{}, loadedAtStartup: true}
	for _, e := range entries {
		switch e.AccountType {
		case AccountEVM:
			s.evm[strings.ToLower(e.Wallet)] = e.Reason
		case AccountSolana:
			s.solana[e.Wallet] = e.Reason
		default:
			slog.Warn("compliance: skipping blacklist entry with unknown account_type", "account_type", e.AccountType, "wallet", e.Wallet)
		}
	}
	slog.Info("compliance: loaded blacklist", "path", path, "evm", len(s.evm), "solana", len(s.solana))
	return s
}

// Check looks up an address for a given family and role. EVM lookups are
// case-insensitive; Solana lookups are exact (base58 is case-sensitive).
// It returns the reason and true if blocked.
func (s *Store) Check(family, address string) (reason string, blocked bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch family {
	case "evm":
		reason, blocked = s.evm[strings.ToLower(address)]
	case "solana":
		reason, blocked = s.solana[address]
	}
	return reason, blocked
}

// Snapshot reports the store's current contents for the public blacklist
// operation.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]string, 0, len(s.evm)+len(s.solana))
	for addr := range s.evm {
		entries = append(entries, addr)
	}
	for addr := range s.solana {
		entries = append(entries, addr)
	}
	return Snapshot{
		TotalBlocked:    len(s.evm) + len(s.solana),
		EVMCount:        len(s.evm),
		SolanaCount:     len(s.solana),
		LoadedAtStartup: s.loadedAtStartup,
		Entries:         entries,
	}
}
