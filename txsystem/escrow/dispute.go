package escrow

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/nerwo/escrow-go/cbor"
	"github.com/nerwo/escrow-go/host"
	"github.com/nerwo/escrow-go/txsystem/arbitration"
)

/*
requestDispute freezes cooperative releases of the transaction and opens a
dispute with the arbitrator. Either party may request it while the
transaction still holds value.
*/
func (e *Escrow) requestDispute(ctx *host.Context) error {
	attr := &RequestDisputeAttributes{}
	if err := ctx.UnmarshalArgs(attr); err != nil {
		return err
	}
	ledger := NewLedger(ctx.Storage())
	tx, err := ledger.Get(attr.ID)
	if err != nil {
		return err
	}
	if ctx.Caller() != tx.Sender && ctx.Caller() != tx.Receiver {
		return &InvalidCallerError{Expected: tx.Sender}
	}
	if tx.IsSettled() {
		return fmt.Errorf("%w: transaction %d is settled", ErrInvalidDisputeState, tx.ID)
	}
	if _, err := ledger.RequestDispute(tx.ID); err != nil {
		return err
	}

	ret, err := ctx.Call(e.cfg.Arbitrator, nil, arbitration.MethodCreateDispute, &arbitration.CreateDisputeAttributes{ArbitrableID: tx.ID})
	if err != nil {
		return fmt.Errorf("creating dispute for transaction %d: %w", tx.ID, err)
	}
	var disputeID uint64
	if err := cbor.Unmarshal(ret, &disputeID); err != nil {
		return fmt.Errorf("decoding dispute ID returned by arbitrator: %w", err)
	}
	if _, err := ledger.AttachDispute(tx.ID, disputeID); err != nil {
		return err
	}

	if err := ctx.Emit(EventDisputeRequested, &DisputeRequest{ID: tx.ID, DisputeID: disputeID, Party: ctx.Caller()}); err != nil {
		return err
	}
	ctx.Log().WithFields(logrus.Fields{"tx_id": tx.ID, "dispute_id": disputeID, "party": ctx.Caller().Hex()}).Info("dispute requested")
	return nil
}

/*
applyRuling releases everything still held by the disputed transaction
according to the ruling. Only the arbitrator may call it.
*/
func (e *Escrow) applyRuling(ctx *host.Context) error {
	if ctx.Caller() != e.cfg.Arbitrator {
		return &InvalidCallerError{Expected: e.cfg.Arbitrator}
	}
	attr := &arbitration.RuleAttributes{}
	if err := ctx.UnmarshalArgs(attr); err != nil {
		return err
	}
	if !attr.Ruling.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidRuling, attr.Ruling)
	}
	ledger := NewLedger(ctx.Storage())
	tx, err := ledger.Get(attr.ArbitrableID)
	if err != nil {
		return err
	}
	if tx.Dispute != DisputeRequested || tx.DisputeID != attr.DisputeID {
		return fmt.Errorf("%w: transaction %d dispute is %s (ID %d), ruling is for dispute %d",
			ErrInvalidDisputeState, tx.ID, tx.Dispute, tx.DisputeID, attr.DisputeID)
	}
	if tx, err = ledger.ResolveDispute(tx.ID); err != nil {
		return err
	}

	toReceiver, toSender := rulingSplit(attr.Ruling, &tx.Remaining)
	if err := e.release(ctx, ledger, tx, toReceiver, toSender, ctx.Caller()); err != nil {
		return err
	}
	return ctx.Emit(EventRuling, &Ruling{ID: tx.ID, DisputeID: attr.DisputeID, Ruling: attr.Ruling})
}

// rulingSplit returns how the remaining amount is divided between the parties.
func rulingSplit(r arbitration.Ruling, remaining *uint256.Int) (toReceiver, toSender *uint256.Int) {
	switch r {
	case arbitration.RulingSenderWins:
		return new(uint256.Int), remaining.Clone()
	case arbitration.RulingReceiverWins:
		return remaining.Clone(), new(uint256.Int)
	default:
		half := new(uint256.Int).Rsh(remaining, 1)
		return half, new(uint256.Int).Sub(remaining, half)
	}
}

/*
executeTimeout pays everything still held to the receiver once the payment
timeout has passed without a dispute being requested. Anyone may call it.
*/
func (e *Escrow) executeTimeout(ctx *host.Context) error {
	attr := &ExecuteTimeoutAttributes{}
	if err := ctx.UnmarshalArgs(attr); err != nil {
		return err
	}
	ledger := NewLedger(ctx.Storage())
	tx, err := ledger.Get(attr.ID)
	if err != nil {
		return err
	}
	if tx.Dispute == DisputeRequested {
		return fmt.Errorf("%w: transaction %d", ErrDisputeActive, tx.ID)
	}
	if tx.IsSettled() {
		return &InvalidAmountError{}
	}
	if ctx.Now().Before(tx.Deadline()) {
		return fmt.Errorf("%w: transaction %d deadline is %s", ErrTimeoutNotReached, tx.ID, tx.Deadline())
	}
	return e.release(ctx, ledger, tx, tx.Remaining.Clone(), new(uint256.Int), ctx.Caller())
}
