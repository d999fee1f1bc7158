package host

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/nerwo/escrow-go/types"
)

// Context is the view of the host a contract has while executing a call.
type Context struct {
	chain *Chain
	call  *types.Call
	depth int
	log   logrus.FieldLogger
}

// Caller returns the address which made the call ("msg.sender").
func (ctx *Context) Caller() types.Address { return ctx.call.From }

// Self returns the address of the executing contract.
func (ctx *Context) Self() types.Address { return ctx.call.To }

// Value returns copy of the value sent with the call.
func (ctx *Context) Value() *uint256.Int { return ctx.call.Value.Clone() }

func (ctx *Context) Method() types.Method { return ctx.call.Method }

func (ctx *Context) UnmarshalArgs(v any) error { return ctx.call.UnmarshalArgs(v) }

// Now returns the current block time.
func (ctx *Context) Now() time.Time { return ctx.chain.now }

func (ctx *Context) Depth() int { return ctx.depth }

func (ctx *Context) Log() logrus.FieldLogger { return ctx.log }

// Storage returns the storage of the executing contract.
func (ctx *Context) Storage() *Storage {
	return ctx.chain.state.Storage(ctx.call.To)
}

func (ctx *Context) Balance(addr types.Address) *uint256.Int {
	return ctx.chain.state.Balance(addr)
}

/*
Call makes a nested call on behalf of the executing contract. Control is
handed to the callee which may call back into any contract, including the
caller. When the nested call fails its effects are reverted and the error is
returned, the caller decides whether to propagate it.
*/
func (ctx *Context) Call(to types.Address, value *uint256.Int, method types.Method, args any) (types.RawCBOR, error) {
	call, err := types.NewCall(ctx.call.To, to, value, method, args)
	if err != nil {
		return nil, err
	}
	ctx.log.WithFields(logrus.Fields{"callee": to.Hex(), "method": method, "value": call.Value.Dec()}).Debug("nested call")
	return ctx.chain.execute(call, ctx.depth+1, ctx.log)
}

// Transfer sends value to the account, the recipient contract (if any) is
// executed with types.MethodReceive.
func (ctx *Context) Transfer(to types.Address, amount *uint256.Int) error {
	_, err := ctx.Call(to, amount, types.MethodReceive, nil)
	return err
}

// Emit adds event to the log, it's discarded if the call fails.
func (ctx *Context) Emit(name string, data any) error {
	ev, err := types.NewEvent(ctx.call.To, name, data)
	if err != nil {
		return err
	}
	ctx.chain.state.addEvent(ev)
	return nil
}
