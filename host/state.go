package host

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"slices"

	"github.com/holiman/uint256"

	"github.com/nerwo/escrow-go/hash"
	"github.com/nerwo/escrow-go/types"
	"github.com/nerwo/escrow-go/util"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

/*
State holds account balances, contract storage and the event log of the
host ledger.

Every mutation is recorded in a journal so that any suffix of changes can be
undone with RevertToSnapshot - this is what makes a failed call (including
all the nested calls it made) leave no trace.
*/
type State struct {
	balances map[types.Address]*uint256.Int
	storage  map[types.Address]map[string][]byte
	events   []*types.Event
	journal  []journalEntry
}

type journalEntry interface {
	revert(s *State)
}

type (
	balanceChange struct {
		addr types.Address
		prev *uint256.Int // nil when the account didn't exist
	}

	storageChange struct {
		addr    types.Address
		key     string
		prev    []byte
		existed bool
	}

	eventAdded struct{}
)

func (ch balanceChange) revert(s *State) {
	if ch.prev == nil {
		delete(s.balances, ch.addr)
		return
	}
	s.balances[ch.addr] = ch.prev
}

func (ch storageChange) revert(s *State) {
	if !ch.existed {
		delete(s.storage[ch.addr], ch.key)
		if len(s.storage[ch.addr]) == 0 {
			delete(s.storage, ch.addr)
		}
		return
	}
	s.storage[ch.addr][ch.key] = ch.prev
}

func (eventAdded) revert(s *State) {
	s.events[len(s.events)-1] = nil
	s.events = s.events[:len(s.events)-1]
}

func NewState() *State {
	return &State{
		balances: make(map[types.Address]*uint256.Int),
		storage:  make(map[types.Address]map[string][]byte),
	}
}

// Snapshot returns identifier of the current revision of the state.
func (s *State) Snapshot() int {
	return len(s.journal)
}

// RevertToSnapshot undoes all the changes made after the snapshot was taken.
func (s *State) RevertToSnapshot(id int) {
	if id < 0 || id > len(s.journal) {
		panic(fmt.Errorf("invalid state snapshot %d (journal length %d)", id, len(s.journal)))
	}
	for i := len(s.journal) - 1; i >= id; i-- {
		s.journal[i].revert(s)
		s.journal[i] = nil
	}
	s.journal = s.journal[:id]
}

// Commit makes the changes permanent, snapshots taken before are invalidated.
func (s *State) Commit() {
	clear(s.journal)
	s.journal = s.journal[:0]
}

// Balance returns copy of the balance of the account.
func (s *State) Balance(addr types.Address) *uint256.Int {
	if b, ok := s.balances[addr]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

func (s *State) setBalance(addr types.Address, amount *uint256.Int) {
	s.journal = append(s.journal, balanceChange{addr: addr, prev: s.balances[addr]})
	if amount.IsZero() {
		delete(s.balances, addr)
		return
	}
	s.balances[addr] = amount.Clone()
}

func (s *State) AddBalance(addr types.Address, amount *uint256.Int) error {
	sum, ok := util.SafeAdd(s.Balance(addr), amount)
	if !ok {
		return fmt.Errorf("%w: account %s", ErrBalanceOverflow, addr)
	}
	s.setBalance(addr, sum)
	return nil
}

func (s *State) SubBalance(addr types.Address, amount *uint256.Int) error {
	balance := s.Balance(addr)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: account %s has %s, needs %s", ErrInsufficientBalance, addr, balance, amount)
	}
	s.setBalance(addr, balance.Sub(balance, amount))
	return nil
}

// Transfer moves amount from one account to another.
func (s *State) Transfer(from, to types.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := s.SubBalance(from, amount); err != nil {
		return err
	}
	return s.AddBalance(to, amount)
}

// Storage returns view of the contract storage of the account.
func (s *State) Storage(addr types.Address) *Storage {
	return &Storage{state: s, addr: addr}
}

func (s *State) addEvent(ev *types.Event) {
	s.journal = append(s.journal, eventAdded{})
	s.events = append(s.events, ev)
}

// Events returns events emitted by all the successful calls so far.
func (s *State) Events() []*types.Event {
	return slices.Clone(s.events)
}

/*
Hash returns digest of the whole state: hash of the balances, contract storage
and the event log digests.
*/
func (s *State) Hash() ([]byte, error) {
	balances := hash.NewSHA256()
	accounts := sortedAddresses(s.balances)
	balances.Write(uint64(len(accounts)))
	for _, addr := range accounts {
		balances.Write(addr)
		balances.Write(s.balances[addr])
	}

	storage := hash.NewSHA256()
	contracts := sortedAddresses(s.storage)
	storage.Write(uint64(len(contracts)))
	for _, addr := range contracts {
		storage.Write(addr)
		// map of strings is encoded with sorted keys by the deterministic encoder
		storage.Write(s.storage[addr])
	}

	events := hash.NewSHA256()
	events.Write(uint64(len(s.events)))
	for _, ev := range s.events {
		events.Write(ev)
	}

	var parts [][]byte
	for _, h := range []*hash.Hash{balances, storage, events} {
		sum, err := h.Sum()
		if err != nil {
			return nil, err
		}
		parts = append(parts, sum)
	}
	return hash.SumHashes(crypto.SHA256, parts...), nil
}

func sortedAddresses[V any](m map[types.Address]V) []types.Address {
	keys := make([]types.Address, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b types.Address) int { return bytes.Compare(a[:], b[:]) })
	return keys
}

/*
Storage is the key-value store of a single contract. Values are copied in
and out so the caller can't modify the state behind the journal's back.
*/
type Storage struct {
	state *State
	addr  types.Address
}

func (st *Storage) Get(key []byte) ([]byte, bool) {
	v, ok := st.state.storage[st.addr][string(key)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

func (st *Storage) Set(key, value []byte) {
	m, ok := st.state.storage[st.addr]
	if !ok {
		m = make(map[string][]byte)
		st.state.storage[st.addr] = m
	}
	prev, existed := m[string(key)]
	st.state.journal = append(st.state.journal, storageChange{addr: st.addr, key: string(key), prev: prev, existed: existed})
	m[string(key)] = bytes.Clone(value)
}
