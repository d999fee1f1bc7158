package host

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/nerwo/escrow-go/types"
)

// MaxCallDepth limits the nesting of calls, a call made at deeper level fails.
const MaxCallDepth = 64

var (
	ErrCallDepthExceeded = errors.New("call depth exceeded")
	ErrNoContract        = errors.New("no contract at address")
	ErrContractExists    = errors.New("contract already deployed")
	ErrInvalidVersion    = errors.New("unsupported call version")
	ErrCallerIsContract  = errors.New("contract can't originate external call")
)

/*
Contract is the code deployed to an address. Execute is invoked for every call
addressed to the contract, including plain value transfers (method
types.MethodReceive). Returning an error reverts all the state changes made by
the call, including the value moved with it.
*/
type Contract interface {
	Execute(ctx *Context) (types.RawCBOR, error)
}

// ContractFunc is an adapter to allow the use of ordinary functions as Contract.
type ContractFunc func(ctx *Context) (types.RawCBOR, error)

func (f ContractFunc) Execute(ctx *Context) (types.RawCBOR, error) {
	return f(ctx)
}

// Receipt describes the outcome of successful call.
type Receipt struct {
	CallID   uuid.UUID
	CallHash []byte
	Return   types.RawCBOR
	Events   []*types.Event
}

/*
Chain is single threaded in-memory host ledger: calls submitted with Submit
run to completion (including all the calls they make) before Submit returns.
Chain is not safe for concurrent use.
*/
type Chain struct {
	state     *State
	contracts map[types.Address]Contract
	nonces    map[types.Address]uint64
	now       time.Time
	log       logrus.FieldLogger
}

type Option func(*Chain)

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Chain) {
		c.log = log
	}
}

// WithTime sets the initial block time.
func WithTime(t time.Time) Option {
	return func(c *Chain) {
		c.now = t
	}
}

func New(opts ...Option) *Chain {
	c := &Chain{
		state:     NewState(),
		contracts: make(map[types.Address]Contract),
		nonces:    make(map[types.Address]uint64),
		now:       time.Unix(1_700_000_000, 0).UTC(),
		log:       logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Chain) State() *State { return c.state }

func (c *Chain) Now() time.Time { return c.now }

func (c *Chain) SetTime(t time.Time) { c.now = t }

func (c *Chain) AdvanceTime(d time.Duration) { c.now = c.now.Add(d) }

func (c *Chain) Balance(addr types.Address) *uint256.Int {
	return c.state.Balance(addr)
}

// Fund mints amount to the account, meant for setting up genesis balances.
func (c *Chain) Fund(addr types.Address, amount *uint256.Int) error {
	if err := c.state.AddBalance(addr, amount); err != nil {
		return err
	}
	c.state.Commit()
	return nil
}

// Deploy installs the contract to an address derived from deployer and its nonce.
func (c *Chain) Deploy(deployer types.Address, contract Contract) types.Address {
	nonce := c.nonces[deployer]
	c.nonces[deployer] = nonce + 1
	addr := types.ContractAddress(deployer, nonce)
	c.contracts[addr] = contract
	c.log.WithFields(logrus.Fields{"deployer": deployer.Hex(), "contract": addr.Hex()}).Debug("contract deployed")
	return addr
}

// DeployAt installs the contract to given address.
func (c *Chain) DeployAt(addr types.Address, contract Contract) error {
	if _, ok := c.contracts[addr]; ok {
		return fmt.Errorf("%w: %s", ErrContractExists, addr)
	}
	c.contracts[addr] = contract
	return nil
}

func (c *Chain) Contract(addr types.Address) (Contract, bool) {
	ctr, ok := c.contracts[addr]
	return ctr, ok
}

/*
Submit executes externally submitted call. The call is atomic: in case of error
none of its effects (balance changes, storage writes, events) remain.
Contracts act only through Context, so a call with contract as the sender is
refused.
*/
func (c *Chain) Submit(call *types.Call) (*Receipt, error) {
	if call == nil {
		return nil, types.ErrCallIsNil
	}
	if v := call.GetVersion(); v != 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}
	if _, ok := c.contracts[call.From]; ok {
		return nil, fmt.Errorf("%w: %s", ErrCallerIsContract, call.From)
	}
	callHash, err := call.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing call: %w", err)
	}
	callID := uuid.New()
	log := c.log.WithFields(logrus.Fields{
		"call_id":   callID.String(),
		"call_hash": hexutil.Encode(callHash),
		"from":      call.From.Hex(),
		"to":        call.To.Hex(),
		"method":    call.Method,
	})

	eventIdx := len(c.state.events)
	snap := c.state.Snapshot()
	ret, err := c.execute(call, 0, log)
	if err != nil {
		c.state.RevertToSnapshot(snap)
		c.state.Commit()
		log.WithError(err).Info("call reverted")
		return nil, err
	}
	events := c.state.Events()[eventIdx:]
	c.state.Commit()
	log.WithField("events", len(events)).Debug("call executed")

	return &Receipt{CallID: callID, CallHash: callHash, Return: ret, Events: events}, nil
}

func (c *Chain) execute(call *types.Call, depth int, log logrus.FieldLogger) (types.RawCBOR, error) {
	if depth > MaxCallDepth {
		return nil, fmt.Errorf("%w: depth %d", ErrCallDepthExceeded, depth)
	}

	snap := c.state.Snapshot()
	if err := c.state.Transfer(call.From, call.To, &call.Value); err != nil {
		c.state.RevertToSnapshot(snap)
		return nil, fmt.Errorf("moving call value: %w", err)
	}

	contract, ok := c.contracts[call.To]
	if !ok {
		if call.IsTransfer() {
			return nil, nil
		}
		c.state.RevertToSnapshot(snap)
		return nil, fmt.Errorf("%w: %s", ErrNoContract, call.To)
	}

	ctx := &Context{
		chain: c,
		call:  call,
		depth: depth,
		log:   log.WithFields(logrus.Fields{"contract": call.To.Hex(), "depth": depth}),
	}
	ret, err := contract.Execute(ctx)
	if err != nil {
		c.state.RevertToSnapshot(snap)
		return nil, err
	}
	return ret, nil
}
