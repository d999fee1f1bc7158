package escrow

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/nerwo/escrow-go/txsystem/arbitration"
	"github.com/nerwo/escrow-go/types"
)

const (
	EventTransactionCreated  = "TransactionCreated"
	EventPayment             = "Payment"
	EventFeeRecipientPayment = "FeeRecipientPayment"
	EventDisputeRequested    = "DisputeRequested"
	EventRuling              = "Ruling"
)

type (
	TransactionCreated struct {
		_        struct{} `cbor:",toarray"`
		ID       TxID
		Sender   types.Address
		Receiver types.Address
		Amount   uint256.Int
	}

	// Payment is emitted for every release, Party is the address whose call
	// authorized it.
	Payment struct {
		_      struct{} `cbor:",toarray"`
		ID     TxID
		Amount uint256.Int
		Party  types.Address
	}

	FeeRecipientPayment struct {
		_   struct{} `cbor:",toarray"`
		ID  TxID
		Fee uint256.Int
	}

	DisputeRequest struct {
		_         struct{} `cbor:",toarray"`
		ID        TxID
		DisputeID uint64
		Party     types.Address
	}

	Ruling struct {
		_         struct{} `cbor:",toarray"`
		ID        TxID
		DisputeID uint64
		Ruling    arbitration.Ruling
	}
)

// DecodeEvent decodes the payload of an event emitted by the escrow contract.
func DecodeEvent(ev *types.Event) (any, error) {
	var data any
	switch ev.Name {
	case EventTransactionCreated:
		data = &TransactionCreated{}
	case EventPayment:
		data = &Payment{}
	case EventFeeRecipientPayment:
		data = &FeeRecipientPayment{}
	case EventDisputeRequested:
		data = &DisputeRequest{}
	case EventRuling:
		data = &Ruling{}
	default:
		return nil, fmt.Errorf("unknown escrow event %q", ev.Name)
	}
	if err := ev.UnmarshalData(data); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", ev.Name, err)
	}
	return data, nil
}
