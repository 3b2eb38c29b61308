package pass

import (
	"fmt"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	grantRecordPrefix = []byte("pass/grant/")
	grantIndexKey     = []byte("pass/grant/index")
)

// Grant is the access-grant record persisted for every settled redemption.
type Grant struct {
	Seq       uint64
	Recipient ethcommon.Address
	Tier      Tier
	Amount    *big.Int
	Timestamp int64
}

// Copy returns a deep copy so callers cannot mutate shared pointers.
func (g *Grant) Copy() *Grant {
	if g == nil {
		return nil
	}
	clone := *g
	if g.Amount != nil {
		clone.Amount = new(big.Int).Set(g.Amount)
	}
	return &clone
}

type storedGrant struct {
	Seq       uint64
	Recipient [20]byte
	Tier      uint8
	Amount    *big.Int
	Timestamp uint64
}

type grantIndex struct {
	NextSeq uint64
	Seqs    []uint64
}

// GrantLedger persists the auditable trail of settled redemptions.
type GrantLedger struct {
	mu    sync.Mutex
	store Storage
}

// NewGrantLedger constructs a grant ledger bound to the provided storage backend.
func NewGrantLedger(store Storage) (*GrantLedger, error) {
	if store == nil {
		return nil, fmt.Errorf("pass: grant ledger storage not configured")
	}
	return &GrantLedger{store: store}, nil
}

// Append records a settled grant and assigns its sequence number.
func (l *GrantLedger) Append(grant *Grant) (*Grant, error) {
	if grant == nil {
		return nil, fmt.Errorf("pass: grant must not be nil")
	}
	if grant.Amount == nil || grant.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("pass: grant amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var index grantIndex
	if _, err := l.store.KVGet(grantIndexKey, &index); err != nil {
		return nil, err
	}
	stored := storedGrant{
		Seq:       index.NextSeq,
		Recipient: grant.Recipient,
		Tier:      uint8(grant.Tier),
		Amount:    new(big.Int).Set(grant.Amount),
	}
	if grant.Timestamp > 0 {
		stored.Timestamp = uint64(grant.Timestamp)
	}
	if err := l.store.KVPut(grantKey(stored.Seq), stored); err != nil {
		return nil, err
	}
	index.Seqs = append(index.Seqs, stored.Seq)
	index.NextSeq++
	if err := l.store.KVPut(grantIndexKey, index); err != nil {
		return nil, err
	}
	out := grant.Copy()
	out.Seq = stored.Seq
	return out, nil
}

// List returns every recorded grant in settlement order.
func (l *GrantLedger) List() ([]*Grant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var index grantIndex
	ok, err := l.store.KVGet(grantIndexKey, &index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	grants := make([]*Grant, 0, len(index.Seqs))
	for _, seq := range index.Seqs {
		var stored storedGrant
		ok, err := l.store.KVGet(grantKey(seq), &stored)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("pass: grant %d indexed but missing", seq)
		}
		grants = append(grants, fromStoredGrant(stored))
	}
	return grants, nil
}

// ByRecipient returns the grants settled for a single identity.
func (l *GrantLedger) ByRecipient(addr ethcommon.Address) ([]*Grant, error) {
	all, err := l.List()
	if err != nil {
		return nil, err
	}
	grants := make([]*Grant, 0, 1)
	for _, grant := range all {
		if grant.Recipient == addr {
			grants = append(grants, grant)
		}
	}
	return grants, nil
}

func fromStoredGrant(stored storedGrant) *Grant {
	grant := &Grant{
		Seq:       stored.Seq,
		Recipient: ethcommon.Address(stored.Recipient),
		Tier:      Tier(stored.Tier),
		Amount:    big.NewInt(0),
		Timestamp: int64(stored.Timestamp),
	}
	if stored.Amount != nil {
		grant.Amount = new(big.Int).Set(stored.Amount)
	}
	return grant
}

func grantKey(seq uint64) []byte {
	return append(append([]byte(nil), grantRecordPrefix...), []byte(fmt.Sprintf("%020d", seq))...)
}
