package escrow

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/nerwo/escrow-go/cbor"
	"github.com/nerwo/escrow-go/types"
	"github.com/nerwo/escrow-go/util"
)

// Storage is the contract key-value store the ledger keeps its records in.
type Storage interface {
	Get(key []byte) ([]byte, bool)
	Set(key, value []byte)
}

type DisputeState uint8

const (
	NoDispute DisputeState = iota
	DisputeRequested
	DisputeResolved
)

func (s DisputeState) String() string {
	switch s {
	case NoDispute:
		return "none"
	case DisputeRequested:
		return "requested"
	case DisputeResolved:
		return "resolved"
	default:
		return fmt.Sprintf("dispute(%d)", uint8(s))
	}
}

type Transaction struct {
	_         struct{}      `cbor:",toarray"`
	ID        TxID          `json:"id,string"`
	Sender    types.Address `json:"sender"`
	Receiver  types.Address `json:"receiver"`
	Deposit   uint256.Int   `json:"deposit"`   // amount deposited at creation
	Remaining uint256.Int   `json:"remaining"` // amount still held in custody
	Timeout   time.Duration `json:"timeout"`
	CreatedAt int64         `json:"createdAt,string"` // unix nanoseconds
	Dispute   DisputeState  `json:"dispute"`
	DisputeID uint64        `json:"disputeId,string"` // ID assigned by the arbitrator
	Metadata  string        `json:"metadata"`
}

// Released returns the amount which has left custody so far.
func (tx *Transaction) Released() *uint256.Int {
	return new(uint256.Int).Sub(&tx.Deposit, &tx.Remaining)
}

func (tx *Transaction) IsSettled() bool {
	return tx.Remaining.IsZero()
}

// Deadline returns the time after which the timeout disposition is available.
func (tx *Transaction) Deadline() time.Time {
	return time.Unix(0, tx.CreatedAt).Add(tx.Timeout)
}

var (
	counterKey = []byte("tx/count")
	txKeyPfx   = []byte("tx/")
)

func txKey(id TxID) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, txKeyPfx...), id)
}

/*
Ledger is the only component which modifies escrow transaction records. It
doesn't check who is asking, authorization is up to the caller.
*/
type Ledger struct {
	store Storage
}

func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// Count returns the number of transactions created, which is also the ID of the latest one.
func (l *Ledger) Count() (uint64, error) {
	data, ok := l.store.Get(counterKey)
	if !ok {
		return 0, nil
	}
	var n uint64
	if err := cbor.UnmarshalTaggedValue(types.EscrowCounterTag, data, &n); err != nil {
		return 0, fmt.Errorf("decoding transaction counter: %w", err)
	}
	return n, nil
}

func (l *Ledger) Create(sender, receiver types.Address, deposit *uint256.Int, timeout time.Duration, metadata string, now time.Time) (TxID, error) {
	if deposit.IsZero() {
		return 0, &InvalidAmountError{}
	}
	if receiver == types.ZeroAddress {
		return 0, ErrInvalidReceiver
	}
	if timeout < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}

	n, err := l.Count()
	if err != nil {
		return 0, err
	}
	id := n + 1
	tx := &Transaction{
		ID:        id,
		Sender:    sender,
		Receiver:  receiver,
		Timeout:   timeout,
		CreatedAt: now.UnixNano(),
		Metadata:  metadata,
	}
	tx.Deposit.Set(deposit)
	tx.Remaining.Set(deposit)
	if err := l.put(tx); err != nil {
		return 0, err
	}
	data, err := cbor.MarshalTaggedValue(types.EscrowCounterTag, id)
	if err != nil {
		return 0, fmt.Errorf("encoding transaction counter: %w", err)
	}
	l.store.Set(counterKey, data)
	return id, nil
}

func (l *Ledger) Get(id TxID) (*Transaction, error) {
	data, ok := l.store.Get(txKey(id))
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	tx := &Transaction{}
	if err := cbor.UnmarshalTaggedValue(types.EscrowTransactionTag, data, tx); err != nil {
		return nil, fmt.Errorf("decoding transaction %d: %w", id, err)
	}
	return tx, nil
}

/*
Debit decrements the remaining amount of the transaction. The amount must have
been validated by the caller, debit exceeding the remaining amount is a bug and
is refused without modifying the record.
*/
func (l *Ledger) Debit(id TxID, amount *uint256.Int) (*Transaction, error) {
	tx, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	remaining, ok := util.SafeSub(&tx.Remaining, amount)
	if !ok {
		return nil, fmt.Errorf("%w: transaction %d, amount %s", ErrDebitExceedsRemaining, id, amount.Dec())
	}
	tx.Remaining = *remaining
	return tx, l.put(tx)
}

// RequestDispute moves the transaction from NoDispute to DisputeRequested.
func (l *Ledger) RequestDispute(id TxID) (*Transaction, error) {
	return l.update(id, func(tx *Transaction) error {
		if tx.Dispute != NoDispute {
			return fmt.Errorf("%w: transaction %d dispute is %s", ErrInvalidDisputeState, id, tx.Dispute)
		}
		tx.Dispute = DisputeRequested
		return nil
	})
}

// AttachDispute records the ID the arbitrator assigned to the dispute.
func (l *Ledger) AttachDispute(id TxID, disputeID uint64) (*Transaction, error) {
	return l.update(id, func(tx *Transaction) error {
		if tx.Dispute != DisputeRequested {
			return fmt.Errorf("%w: transaction %d dispute is %s", ErrInvalidDisputeState, id, tx.Dispute)
		}
		tx.DisputeID = disputeID
		return nil
	})
}

// ResolveDispute moves the transaction from DisputeRequested to DisputeResolved.
func (l *Ledger) ResolveDispute(id TxID) (*Transaction, error) {
	return l.update(id, func(tx *Transaction) error {
		if tx.Dispute != DisputeRequested {
			return fmt.Errorf("%w: transaction %d dispute is %s", ErrInvalidDisputeState, id, tx.Dispute)
		}
		tx.Dispute = DisputeResolved
		return nil
	})
}

func (l *Ledger) update(id TxID, f func(tx *Transaction) error) (*Transaction, error) {
	tx, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if err := f(tx); err != nil {
		return nil, err
	}
	return tx, l.put(tx)
}

func (l *Ledger) put(tx *Transaction) error {
	if tx == nil {
		return errors.New("transaction is nil")
	}
	data, err := cbor.MarshalTaggedValue(types.EscrowTransactionTag, tx)
	if err != nil {
		return fmt.Errorf("encoding transaction %d: %w", tx.ID, err)
	}
	l.store.Set(txKey(tx.ID), data)
	return nil
}
