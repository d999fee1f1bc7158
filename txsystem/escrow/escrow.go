/*
Package escrow implements the escrow contract: value deposited by a sender is
held in custody and released to the receiver (pay), back to the sender
(reimburse) or according to the ruling of an arbitrator.

Every release first debits the transaction record and only then moves the
value out, so a recipient reentering the contract during the transfer sees the
decremented remaining amount.
*/
package escrow

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/nerwo/escrow-go/cbor"
	"github.com/nerwo/escrow-go/host"
	"github.com/nerwo/escrow-go/types"
	"github.com/nerwo/escrow-go/util"
)

// Config is fixed at construction, the contract has no means to change it.
type Config struct {
	Platform       types.Address // receives the fee of the payments to receiver
	FeeBasisPoints uint64
	Arbitrator     types.Address
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("escrow config is nil")
	}
	if c.Platform == types.ZeroAddress {
		return errors.New("platform address is not set")
	}
	if c.Arbitrator == types.ZeroAddress {
		return errors.New("arbitrator address is not set")
	}
	if c.FeeBasisPoints > util.BasisPointsDenominator {
		return fmt.Errorf("fee %d basis points exceeds %d", c.FeeBasisPoints, util.BasisPointsDenominator)
	}
	return nil
}

type Escrow struct {
	cfg Config
}

var _ host.Contract = (*Escrow)(nil)

func New(cfg Config) (*Escrow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid escrow configuration: %w", err)
	}
	return &Escrow{cfg: cfg}, nil
}

func (e *Escrow) Config() Config { return e.cfg }

func (e *Escrow) Execute(ctx *host.Context) (types.RawCBOR, error) {
	if ctx.Method() != MethodCreateTransaction && !ctx.Value().IsZero() {
		return nil, fmt.Errorf("%w: method %d", ErrValueNotAccepted, ctx.Method())
	}

	switch ctx.Method() {
	case MethodCreateTransaction:
		return e.createTransaction(ctx)
	case MethodPay:
		return nil, e.pay(ctx)
	case MethodReimburse:
		return nil, e.reimburse(ctx)
	case MethodRequestDispute:
		return nil, e.requestDispute(ctx)
	case MethodApplyRuling:
		return nil, e.applyRuling(ctx)
	case MethodExecuteTimeout:
		return nil, e.executeTimeout(ctx)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, ctx.Method())
	}
}

func (e *Escrow) createTransaction(ctx *host.Context) (types.RawCBOR, error) {
	attr := &CreateTransactionAttributes{}
	if err := ctx.UnmarshalArgs(attr); err != nil {
		return nil, err
	}
	if ctx.Caller() == ctx.Self() {
		return nil, fmt.Errorf("%w: escrow can't be the sender", ErrInvalidSender)
	}
	if attr.Receiver == ctx.Self() {
		return nil, fmt.Errorf("%w: escrow can't be the receiver", ErrInvalidReceiver)
	}

	deposit := ctx.Value()
	id, err := NewLedger(ctx.Storage()).Create(ctx.Caller(), attr.Receiver, deposit, attr.Timeout, attr.Metadata, ctx.Now())
	if err != nil {
		return nil, err
	}
	if err := ctx.Emit(EventTransactionCreated, &TransactionCreated{ID: id, Sender: ctx.Caller(), Receiver: attr.Receiver, Amount: *deposit}); err != nil {
		return nil, err
	}
	ctx.Log().WithFields(logrus.Fields{"tx_id": id, "sender": ctx.Caller().Hex(), "receiver": attr.Receiver.Hex(), "deposit": deposit.Dec()}).Info("escrow transaction created")
	return cbor.Marshal(id)
}

func (e *Escrow) pay(ctx *host.Context) error {
	attr := &PayAttributes{}
	if err := ctx.UnmarshalArgs(attr); err != nil {
		return err
	}
	ledger := NewLedger(ctx.Storage())
	tx, err := ledger.Get(attr.ID)
	if err != nil {
		return err
	}
	if ctx.Caller() != tx.Sender {
		return &InvalidCallerError{Expected: tx.Sender}
	}
	if err := checkRelease(tx, &attr.Amount); err != nil {
		return err
	}
	return e.release(ctx, ledger, tx, &attr.Amount, new(uint256.Int), ctx.Caller())
}

func (e *Escrow) reimburse(ctx *host.Context) error {
	attr := &PayAttributes{}
	if err := ctx.UnmarshalArgs(attr); err != nil {
		return err
	}
	ledger := NewLedger(ctx.Storage())
	tx, err := ledger.Get(attr.ID)
	if err != nil {
		return err
	}
	if ctx.Caller() != tx.Receiver {
		return &InvalidCallerError{Expected: tx.Receiver}
	}
	if err := checkRelease(tx, &attr.Amount); err != nil {
		return err
	}
	return e.release(ctx, ledger, tx, new(uint256.Int), &attr.Amount, ctx.Caller())
}

// checkRelease validates cooperative release of amount, caller must have been authorized.
func checkRelease(tx *Transaction, amount *uint256.Int) error {
	if err := ValidateAmount(amount, &tx.Remaining); err != nil {
		return err
	}
	if tx.Dispute == DisputeRequested {
		return fmt.Errorf("%w: transaction %d", ErrDisputeActive, tx.ID)
	}
	return nil
}

/*
release debits toReceiver+toSender from the transaction and then sends the
value out: the fee to the platform, the net of toReceiver to the receiver and
toSender back to the sender. Payment events are attributed to party.

Caller must have validated that the sum doesn't exceed the remaining amount.
*/
func (e *Escrow) release(ctx *host.Context, ledger *Ledger, tx *Transaction, toReceiver, toSender *uint256.Int, party types.Address) error {
	total, err := util.AddAmounts(toReceiver, toSender)
	if err != nil {
		return err
	}
	if _, err := ledger.Debit(tx.ID, total); err != nil {
		return err
	}
	fee, net := SplitFee(toReceiver, e.cfg.FeeBasisPoints)

	if err := send(ctx, e.cfg.Platform, fee); err != nil {
		return err
	}
	if err := send(ctx, tx.Receiver, net); err != nil {
		return err
	}
	if err := send(ctx, tx.Sender, toSender); err != nil {
		return err
	}

	if !toReceiver.IsZero() {
		if err := ctx.Emit(EventPayment, &Payment{ID: tx.ID, Amount: *toReceiver, Party: party}); err != nil {
			return err
		}
		if !fee.IsZero() {
			if err := ctx.Emit(EventFeeRecipientPayment, &FeeRecipientPayment{ID: tx.ID, Fee: *fee}); err != nil {
				return err
			}
		}
	}
	if !toSender.IsZero() {
		if err := ctx.Emit(EventPayment, &Payment{ID: tx.ID, Amount: *toSender, Party: party}); err != nil {
			return err
		}
	}

	ctx.Log().WithFields(logrus.Fields{
		"tx_id":       tx.ID,
		"party":       party.Hex(),
		"to_receiver": toReceiver.Dec(),
		"fee":         fee.Dec(),
		"to_sender":   toSender.Dec(),
	}).Info("escrow released")
	return nil
}

// GetTransaction reads the transaction record from the storage of the escrow contract.
func GetTransaction(state *host.State, escrow types.Address, id TxID) (*Transaction, error) {
	return NewLedger(state.Storage(escrow)).Get(id)
}

func TransactionCount(state *host.State, escrow types.Address) (uint64, error) {
	return NewLedger(state.Storage(escrow)).Count()
}
