package types

import (
	"fmt"

	"github.com/nerwo/escrow-go/cbor"
)

// Event is an observable fact emitted by a contract while executing a call.
type Event struct {
	_        struct{} `cbor:",toarray"`
	Contract Address
	Name     string
	Data     RawCBOR
}

func NewEvent(contract Address, name string, data any) (*Event, error) {
	raw, err := cbor.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", name, err)
	}
	return &Event{Contract: contract, Name: name, Data: raw}, nil
}

func (e *Event) UnmarshalData(v any) error {
	return cbor.Unmarshal(e.Data, v)
}

func (e *Event) String() string {
	return fmt.Sprintf("%s@%s", e.Name, e.Contract.Hex())
}
