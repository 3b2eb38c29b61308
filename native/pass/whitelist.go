package pass

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Storage abstracts the subset of state manager functionality required by the
// pass module's ledgers.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	// ErrNotWhitelisted indicates the identity was never part of the approved set.
	ErrNotWhitelisted = errors.New("pass: not whitelisted")
	// ErrAlreadyConsumed indicates the identity already redeemed its voucher.
	ErrAlreadyConsumed = errors.New("pass: voucher already consumed")
)

var (
	whitelistEntryPrefix = []byte("pass/whitelist/")
	whitelistIndexKey    = []byte("pass/whitelist/index")
)

type storedWhitelistEntry struct {
	Consumed bool
}

// Whitelist is the fixed set of identities eligible to redeem exactly one
// voucher each. Membership is sealed at construction; only the consumed flag
// of an existing entry ever changes, and only from false to true.
type Whitelist struct {
	mu    sync.Mutex
	store Storage
}

// NewWhitelist seeds the registry with the approved members. Seeding is
// idempotent across restarts: entries that already exist keep their consumed
// flag. Duplicate members are rejected so the sealed set is unambiguous.
func NewWhitelist(store Storage, members []ethcommon.Address) (*Whitelist, error) {
	if store == nil {
		return nil, fmt.Errorf("pass: whitelist storage not configured")
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("pass: whitelist must not be empty")
	}
	seen := make(map[ethcommon.Address]struct{}, len(members))
	for _, member := range members {
		if member == (ethcommon.Address{}) {
			return nil, fmt.Errorf("pass: whitelist member must not be the zero address")
		}
		if _, ok := seen[member]; ok {
			return nil, fmt.Errorf("pass: duplicate whitelist member %s", member.Hex())
		}
		seen[member] = struct{}{}
	}
	wl := &Whitelist{store: store}
	for _, member := range members {
		key := whitelistKey(member)
		var existing storedWhitelistEntry
		ok, err := store.KVGet(key, &existing)
		if err != nil {
			return nil, err
		}
		if ok {
			continue
		}
		if err := store.KVPut(key, storedWhitelistEntry{}); err != nil {
			return nil, err
		}
	}
	index := make([][20]byte, 0, len(members))
	for _, member := range members {
		index = append(index, member)
	}
	sort.Slice(index, func(i, j int) bool {
		return ethcommon.Address(index[i]).Hex() < ethcommon.Address(index[j]).Hex()
	})
	if err := store.KVPut(whitelistIndexKey, index); err != nil {
		return nil, err
	}
	return wl, nil
}

// IsEligible reports whether the identity is present and unconsumed.
func (w *Whitelist) IsEligible(addr ethcommon.Address) (bool, error) {
	err := w.Eligibility(addr)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotWhitelisted), errors.Is(err, ErrAlreadyConsumed):
		return false, nil
	default:
		return false, err
	}
}

// Eligibility distinguishes the two ineligibility causes so callers can
// surface the exact rejection kind.
func (w *Whitelist) Eligibility(addr ethcommon.Address) error {
	var entry storedWhitelistEntry
	ok, err := w.store.KVGet(whitelistKey(addr), &entry)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotWhitelisted
	}
	if entry.Consumed {
		return ErrAlreadyConsumed
	}
	return nil
}

// Consume marks the identity's voucher as redeemed. Exactly one call per
// identity succeeds; concurrent callers race on the mutex and every loser
// observes ErrAlreadyConsumed.
func (w *Whitelist) Consume(addr ethcommon.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := whitelistKey(addr)
	var entry storedWhitelistEntry
	ok, err := w.store.KVGet(key, &entry)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotWhitelisted
	}
	if entry.Consumed {
		return ErrAlreadyConsumed
	}
	entry.Consumed = true
	return w.store.KVPut(key, entry)
}

// Members returns the sealed membership set in a stable order.
func (w *Whitelist) Members() ([]ethcommon.Address, error) {
	var index [][20]byte
	ok, err := w.store.KVGet(whitelistIndexKey, &index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	members := make([]ethcommon.Address, 0, len(index))
	for _, raw := range index {
		members = append(members, ethcommon.Address(raw))
	}
	return members, nil
}

func whitelistKey(addr ethcommon.Address) []byte {
	return append(append([]byte(nil), whitelistEntryPrefix...), addr.Bytes()...)
}
