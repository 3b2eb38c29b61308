package pass

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidShares indicates the payee configuration is unusable; this is
	// fatal at construction and must prevent the system from starting.
	ErrInvalidShares = errors.New("pass: invalid payee shares")
	// ErrNothingToRelease indicates the payee has no pending entitlement.
	ErrNothingToRelease = errors.New("pass: nothing to release")
	// ErrSplitterReentry indicates a withdrawal re-entered while another was
	// still in flight for the same splitter.
	ErrSplitterReentry = errors.New("pass: withdrawal already in progress")
	// ErrSplitterCorrupted signals the ledger invariant released <= entitlement
	// was violated. This is an internal fault, never a user error.
	ErrSplitterCorrupted = errors.New("pass: splitter ledger corrupted")
)

var (
	splitterTotalKey       = []byte("pass/splitter/total")
	splitterReleasedPrefix = []byte("pass/splitter/released/")
)

// Payee pairs a beneficiary with its share weight.
type Payee struct {
	Address ethcommon.Address
	Shares  uint64
}

// TransferFunc hands an amount to the external ledger for delivery to the
// beneficiary. The splitter's own ledger is always updated before this is
// invoked.
type TransferFunc func(to ethcommon.Address, amount *big.Int) error

type storedSplitterTotal struct {
	TotalReceived *big.Int
}

type storedSplitterReleased struct {
	Released *big.Int
}

// Splitter distributes received payments among a fixed set of beneficiaries
// proportional to their shares, via pull-based withdrawal. The payee list and
// weights are sealed at construction. Floor-division remainders stay in the
// splitter permanently; they are never swept to a payee.
type Splitter struct {
	mu          sync.Mutex
	store       Storage
	payees      []Payee
	totalShares *big.Int
	transfer    TransferFunc
	withdrawing bool
}

// NewSplitter validates the payee set and binds the splitter to its storage
// backend and external transfer hook. Every share weight must be a positive
// integer, else construction fails with ErrInvalidShares.
func NewSplitter(store Storage, payees []Payee, transfer TransferFunc) (*Splitter, error) {
	if store == nil {
		return nil, fmt.Errorf("pass: splitter storage not configured")
	}
	if transfer == nil {
		return nil, fmt.Errorf("pass: splitter transfer hook not configured")
	}
	if len(payees) == 0 {
		return nil, fmt.Errorf("%w: at least one payee required", ErrInvalidShares)
	}
	totalShares := new(big.Int)
	seen := make(map[ethcommon.Address]struct{}, len(payees))
	for _, payee := range payees {
		if payee.Address == (ethcommon.Address{}) {
			return nil, fmt.Errorf("%w: payee must not be the zero address", ErrInvalidShares)
		}
		if payee.Shares == 0 {
			return nil, fmt.Errorf("%w: payee %s has zero shares", ErrInvalidShares, payee.Address.Hex())
		}
		if _, ok := seen[payee.Address]; ok {
			return nil, fmt.Errorf("%w: duplicate payee %s", ErrInvalidShares, payee.Address.Hex())
		}
		seen[payee.Address] = struct{}{}
		totalShares.Add(totalShares, new(big.Int).SetUint64(payee.Shares))
	}
	return &Splitter{
		store:       store,
		payees:      append([]Payee(nil), payees...),
		totalShares: totalShares,
		transfer:    transfer,
	}, nil
}

// Payees returns a copy of the sealed beneficiary list.
func (s *Splitter) Payees() []Payee {
	return append([]Payee(nil), s.payees...)
}

// TotalShares returns the sum of all share weights.
func (s *Splitter) TotalShares() *big.Int {
	return new(big.Int).Set(s.totalShares)
}

// Credit records an incoming payment as a single atomic ledger update.
func (s *Splitter) Credit(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("pass: credit amount must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	total, err := s.totalReceived()
	if err != nil {
		return nil, err
	}
	total.Add(total, amount)
	if err := s.store.KVPut(splitterTotalKey, storedSplitterTotal{TotalReceived: total}); err != nil {
		return nil, err
	}
	return total, nil
}

// TotalReceived returns the monotonic sum of all credited payments.
func (s *Splitter) TotalReceived() (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalReceived()
}

// Released returns the amount already withdrawn by the payee.
func (s *Splitter) Released(addr ethcommon.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released(addr)
}

// Releasable computes the payee's pending entitlement:
// floor(totalReceived * shares / totalShares) - released.
func (s *Splitter) Releasable(addr ethcommon.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releasable(addr)
}

// Withdraw pays out the payee's pending entitlement. The ledger update is
// committed before the external transfer is issued so a re-entering caller
// can never observe stale released state. If the transfer itself fails the
// ledger update is rolled back; no funds moved.
func (s *Splitter) Withdraw(addr ethcommon.Address) (*big.Int, error) {
	s.mu.Lock()
	if s.withdrawing {
		s.mu.Unlock()
		return nil, ErrSplitterReentry
	}
	s.withdrawing = true
	amount, prior, err := s.commitWithdrawal(addr)
	if err != nil {
		s.withdrawing = false
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	transferErr := s.transfer(addr, new(big.Int).Set(amount))

	s.mu.Lock()
	s.withdrawing = false
	if transferErr != nil {
		if putErr := s.store.KVPut(releasedKey(addr), storedSplitterReleased{Released: prior}); putErr != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("pass: transfer failed and rollback failed: %v: %w", putErr, transferErr)
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("pass: transfer to %s failed: %w", addr.Hex(), transferErr)
	}
	s.mu.Unlock()
	return amount, nil
}

// commitWithdrawal computes the entitlement and persists the incremented
// released counter. Caller holds the mutex.
func (s *Splitter) commitWithdrawal(addr ethcommon.Address) (amount, prior *big.Int, err error) {
	amount, err = s.releasable(addr)
	if err != nil {
		return nil, nil, err
	}
	if amount.Sign() == 0 {
		return nil, nil, ErrNothingToRelease
	}
	prior, err = s.released(addr)
	if err != nil {
		return nil, nil, err
	}
	updated := new(big.Int).Add(prior, amount)
	if err := s.store.KVPut(releasedKey(addr), storedSplitterReleased{Released: updated}); err != nil {
		return nil, nil, err
	}
	return amount, prior, nil
}

func (s *Splitter) totalReceived() (*big.Int, error) {
	var stored storedSplitterTotal
	ok, err := s.store.KVGet(splitterTotalKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored.TotalReceived == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(stored.TotalReceived), nil
}

func (s *Splitter) released(addr ethcommon.Address) (*big.Int, error) {
	var stored storedSplitterReleased
	ok, err := s.store.KVGet(releasedKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored.Released == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(stored.Released), nil
}

func (s *Splitter) releasable(addr ethcommon.Address) (*big.Int, error) {
	shares := s.sharesOf(addr)
	if shares == 0 {
		return nil, fmt.Errorf("pass: %s is not a payee", addr.Hex())
	}
	total, err := s.totalReceived()
	if err != nil {
		return nil, err
	}
	released, err := s.released(addr)
	if err != nil {
		return nil, err
	}
	entitlement := new(big.Int).Mul(total, new(big.Int).SetUint64(shares))
	entitlement.Div(entitlement, s.totalShares)
	pending := entitlement.Sub(entitlement, released)
	if pending.Sign() < 0 {
		return nil, ErrSplitterCorrupted
	}
	return pending, nil
}

func (s *Splitter) sharesOf(addr ethcommon.Address) uint64 {
	for _, payee := range s.payees {
		if payee.Address == addr {
			return payee.Shares
		}
	}
	return 0
}

func releasedKey(addr ethcommon.Address) []byte {
	return append(append([]byte(nil), splitterReleasedPrefix...), addr.Bytes()...)
}
