/*
Package rogue provides an adversarial contract for tests: it reacts to
receiving value by calling back into another contract.
*/
package rogue

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/nerwo/escrow-go/host"
	"github.com/nerwo/escrow-go/types"
)

// MethodForward makes the contract perform a call, args are ForwardAttributes.
const MethodForward types.Method = 1

var (
	ErrRefused  = errors.New("rogue refuses to receive value")
	ErrNotOwner = errors.New("only owner can forward calls")
)

type ForwardAttributes struct {
	_      struct{} `cbor:",toarray"`
	To     types.Address
	Value  uint256.Int
	Method types.Method
	Args   types.RawCBOR
}

/*
Contract is a test double which can be made a party of an escrow
transaction (through forwarded calls) and which misbehaves when paid.

Fields are plain Go state and are not reverted together with the host
state when a call fails.
*/
type Contract struct {
	Owner types.Address // the only address allowed to use MethodForward

	Refuse bool // fail every incoming transfer

	// call made on receipt of value
	Target types.Address
	Method types.Method
	Args   any
	// number of reentrant calls still to make
	Reentries int
	// ignore failure of the reentrant call instead of failing the transfer
	Swallow bool

	// Results of the reentrant calls made so far, nil for success.
	Results []error
}

var _ host.Contract = (*Contract)(nil)

func (c *Contract) Execute(ctx *host.Context) (types.RawCBOR, error) {
	switch ctx.Method() {
	case types.MethodReceive:
		return nil, c.receive(ctx)
	case MethodForward:
		if ctx.Caller() != c.Owner {
			return nil, ErrNotOwner
		}
		attr := &ForwardAttributes{}
		if err := ctx.UnmarshalArgs(attr); err != nil {
			return nil, err
		}
		var args any
		if len(attr.Args) > 0 {
			args = attr.Args
		}
		return ctx.Call(attr.To, &attr.Value, attr.Method, args)
	default:
		return nil, fmt.Errorf("rogue: unknown method %d", ctx.Method())
	}
}

func (c *Contract) receive(ctx *host.Context) error {
	if c.Refuse {
		return ErrRefused
	}
	if c.Reentries <= 0 {
		return nil
	}
	c.Reentries--
	_, err := ctx.Call(c.Target, nil, c.Method, c.Args)
	c.Results = append(c.Results, err)
	if err != nil && !c.Swallow {
		return fmt.Errorf("reentrant call: %w", err)
	}
	return nil
}

/*
NewForwardCall wraps inner so that it's executed by the rogue contract on
behalf of owner. The value of the inner call is sent along with the outer
call so the rogue doesn't have to be funded in advance.
*/
func NewForwardCall(owner, rogue types.Address, inner *types.Call) (*types.Call, error) {
	if inner == nil {
		return nil, types.ErrCallIsNil
	}
	return types.NewCall(owner, rogue, &inner.Value, MethodForward, &ForwardAttributes{
		To:     inner.To,
		Value:  inner.Value,
		Method: inner.Method,
		Args:   inner.Args,
	})
}
