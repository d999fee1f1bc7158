/*
Package arbitrator implements a centralized arbitration authority: any
contract may open a dispute with it, rulings are given by a single owner
address. Arbitration fees and appeals are not supported.
*/
package arbitrator

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nerwo/escrow-go/cbor"
	"github.com/nerwo/escrow-go/host"
	"github.com/nerwo/escrow-go/txsystem/arbitration"
	"github.com/nerwo/escrow-go/types"
)

const (
	MethodCreateDispute = arbitration.MethodCreateDispute
	MethodGiveRuling    = types.Method(1)
)

const (
	EventDisputeCreation = "DisputeCreation"
	EventRulingGiven     = "RulingGiven"
)

var (
	ErrNotOwner         = errors.New("caller is not the owner of the arbitrator")
	ErrDisputeNotFound  = errors.New("dispute not found")
	ErrDisputeClosed    = errors.New("dispute is already ruled")
	ErrValueNotAccepted = errors.New("arbitrator does not accept value")
	ErrUnknownMethod    = errors.New("unknown method")
)

type Status uint8

const (
	StatusWaiting Status = iota
	StatusSolved
)

type (
	Dispute struct {
		_            struct{}           `cbor:",toarray"`
		ID           uint64             `json:"id,string"`
		Arbitrable   types.Address      `json:"arbitrable"` // contract which created the dispute and receives the ruling
		ArbitrableID uint64             `json:"arbitrableId,string"`
		Status       Status             `json:"status"`
		Ruling       arbitration.Ruling `json:"ruling"`
	}

	GiveRulingAttributes struct {
		_         struct{} `cbor:",toarray"`
		DisputeID uint64
		Ruling    arbitration.Ruling
	}

	DisputeCreation struct {
		_            struct{} `cbor:",toarray"`
		DisputeID    uint64
		Arbitrable   types.Address
		ArbitrableID uint64
	}

	RulingGiven struct {
		_          struct{} `cbor:",toarray"`
		DisputeID  uint64
		Arbitrable types.Address
		Ruling     arbitration.Ruling
	}
)

var counterKey = []byte("dispute/count")

func disputeKey(id uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte("dispute/"), id)
}

type Arbitrator struct {
	owner types.Address
}

var _ host.Contract = (*Arbitrator)(nil)

func New(owner types.Address) (*Arbitrator, error) {
	if owner == types.ZeroAddress {
		return nil, errors.New("arbitrator owner address is not set")
	}
	return &Arbitrator{owner: owner}, nil
}

func (a *Arbitrator) Owner() types.Address { return a.owner }

func (a *Arbitrator) Execute(ctx *host.Context) (types.RawCBOR, error) {
	if !ctx.Value().IsZero() {
		return nil, ErrValueNotAccepted
	}
	switch ctx.Method() {
	case MethodCreateDispute:
		return a.createDispute(ctx)
	case MethodGiveRuling:
		return nil, a.giveRuling(ctx)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, ctx.Method())
	}
}

func (a *Arbitrator) createDispute(ctx *host.Context) (types.RawCBOR, error) {
	attr := &arbitration.CreateDisputeAttributes{}
	if err := ctx.UnmarshalArgs(attr); err != nil {
		return nil, err
	}
	n, err := disputeCount(ctx.Storage())
	if err != nil {
		return nil, err
	}
	d := &Dispute{ID: n + 1, Arbitrable: ctx.Caller(), ArbitrableID: attr.ArbitrableID}
	if err := putDispute(ctx.Storage(), d); err != nil {
		return nil, err
	}
	data, err := cbor.MarshalTaggedValue(types.ArbitratorCounterTag, d.ID)
	if err != nil {
		return nil, fmt.Errorf("encoding dispute counter: %w", err)
	}
	ctx.Storage().Set(counterKey, data)

	if err := ctx.Emit(EventDisputeCreation, &DisputeCreation{DisputeID: d.ID, Arbitrable: d.Arbitrable, ArbitrableID: d.ArbitrableID}); err != nil {
		return nil, err
	}
	ctx.Log().WithFields(logrus.Fields{"dispute_id": d.ID, "arbitrable": d.Arbitrable.Hex(), "arbitrable_id": d.ArbitrableID}).Info("dispute created")
	return cbor.Marshal(d.ID)
}

func (a *Arbitrator) giveRuling(ctx *host.Context) error {
	if ctx.Caller() != a.owner {
		return ErrNotOwner
	}
	attr := &GiveRulingAttributes{}
	if err := ctx.UnmarshalArgs(attr); err != nil {
		return err
	}
	d, err := getDispute(ctx.Storage(), attr.DisputeID)
	if err != nil {
		return err
	}
	if d.Status != StatusWaiting {
		return fmt.Errorf("%w: %d", ErrDisputeClosed, d.ID)
	}
	// the dispute is closed before the arbitrable contract gets control
	d.Status = StatusSolved
	d.Ruling = attr.Ruling
	if err := putDispute(ctx.Storage(), d); err != nil {
		return err
	}

	rule := &arbitration.RuleAttributes{DisputeID: d.ID, ArbitrableID: d.ArbitrableID, Ruling: attr.Ruling}
	if _, err := ctx.Call(d.Arbitrable, nil, arbitration.MethodRule, rule); err != nil {
		return fmt.Errorf("delivering ruling of dispute %d: %w", d.ID, err)
	}
	if err := ctx.Emit(EventRulingGiven, &RulingGiven{DisputeID: d.ID, Arbitrable: d.Arbitrable, Ruling: attr.Ruling}); err != nil {
		return err
	}
	ctx.Log().WithFields(logrus.Fields{"dispute_id": d.ID, "ruling": attr.Ruling.String()}).Info("ruling given")
	return nil
}

// GetDispute reads the dispute record from the storage of the arbitrator contract.
func GetDispute(state *host.State, arbitrator types.Address, id uint64) (*Dispute, error) {
	return getDispute(state.Storage(arbitrator), id)
}

func disputeCount(store *host.Storage) (uint64, error) {
	data, ok := store.Get(counterKey)
	if !ok {
		return 0, nil
	}
	var n uint64
	if err := cbor.UnmarshalTaggedValue(types.ArbitratorCounterTag, data, &n); err != nil {
		return 0, fmt.Errorf("decoding dispute counter: %w", err)
	}
	return n, nil
}

func getDispute(store *host.Storage, id uint64) (*Dispute, error) {
	data, ok := store.Get(disputeKey(id))
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDisputeNotFound, id)
	}
	d := &Dispute{}
	if err := cbor.UnmarshalTaggedValue(types.ArbitratorDisputeTag, data, d); err != nil {
		return nil, fmt.Errorf("decoding dispute %d: %w", id, err)
	}
	return d, nil
}

func putDispute(store *host.Storage, d *Dispute) error {
	data, err := cbor.MarshalTaggedValue(types.ArbitratorDisputeTag, d)
	if err != nil {
		return fmt.Errorf("encoding dispute %d: %w", d.ID, err)
	}
	store.Set(disputeKey(d.ID), data)
	return nil
}
