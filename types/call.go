package types

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/nerwo/escrow-go/cbor"
	"github.com/nerwo/escrow-go/hash"
)

var ErrCallIsNil = errors.New("call is nil")

// Method selects the contract entry point a Call is dispatched to.
type Method uint16

// MethodReceive is the method of a plain value transfer, contracts are
// notified of incoming value through it.
const MethodReceive Method = 0

type Call struct {
	_       struct{} `cbor:",toarray"`
	Version ABVersion
	From    Address     // the caller, "msg.sender" of the callee
	To      Address     // account or contract being called
	Value   uint256.Int // value moved from From to To before the callee runs
	Method  Method
	Args    RawCBOR // method specific arguments
}

/*
NewCall builds version 1 Call. The args value (if not nil) is CBOR encoded
into the Args field.
*/
func NewCall(from, to Address, value *uint256.Int, method Method, args any) (*Call, error) {
	c := &Call{Version: 1, From: from, To: to, Method: method}
	if value != nil {
		c.Value.Set(value)
	}
	if args != nil {
		if err := c.SetArgs(args); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Call) GetVersion() ABVersion {
	if c != nil && c.Version > 0 {
		return c.Version
	}
	return 1
}

// SetArgs converts provided args struct to CBOR and sets the Args field.
func (c *Call) SetArgs(args any) error {
	if c == nil {
		return ErrCallIsNil
	}
	data, err := cbor.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshaling call arguments: %w", err)
	}
	c.Args = data
	return nil
}

func (c *Call) UnmarshalArgs(v any) error {
	if c == nil {
		return ErrCallIsNil
	}
	if len(c.Args) == 0 {
		return errors.New("call has no arguments")
	}
	if err := cbor.Unmarshal(c.Args, v); err != nil {
		return fmt.Errorf("decoding arguments of method %d: %w", c.Method, err)
	}
	return nil
}

// IsTransfer returns true for plain value transfers.
func (c *Call) IsTransfer() bool {
	return c.Method == MethodReceive
}

func (c *Call) Hash() ([]byte, error) {
	if c == nil {
		return nil, ErrCallIsNil
	}
	return hash.Sum(c)
}
