/*
Package sim replays escrow scenarios on an in-memory host ledger.
*/
package sim

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/nerwo/escrow-go/cbor"
	"github.com/nerwo/escrow-go/config"
	"github.com/nerwo/escrow-go/host"
	"github.com/nerwo/escrow-go/txsystem/arbitration"
	"github.com/nerwo/escrow-go/txsystem/arbitrator"
	"github.com/nerwo/escrow-go/txsystem/escrow"
	"github.com/nerwo/escrow-go/types"
	"github.com/nerwo/escrow-go/util"
)

type Runner struct {
	chain      *host.Chain
	escrow     types.Address
	arbitrator types.Address
	accounts   map[string]types.Address
	log        logrus.FieldLogger
}

type StepResult struct {
	Index  int
	Action string
	Err    error // error of the call, nil when it succeeded
	Return types.RawCBOR
	Events []*types.Event
}

type Report struct {
	Steps    []StepResult
	Balances map[string]*uint256.Int
	Escrow   types.Address
}

// NewRunner deploys the arbitrator and the escrow contract as described by cfg.
func NewRunner(cfg *config.Config, log logrus.FieldLogger) (*Runner, error) {
	court, err := cfg.CourtAddress()
	if err != nil {
		return nil, err
	}
	platform, err := cfg.PlatformAddress()
	if err != nil {
		return nil, err
	}

	r := &Runner{
		chain:    host.New(host.WithLogger(log)),
		accounts: map[string]types.Address{"platform": platform, "court": court},
		log:      log,
	}
	arb, err := arbitrator.New(court)
	if err != nil {
		return nil, err
	}
	r.arbitrator = r.chain.Deploy(court, arb)
	r.accounts["arbitrator"] = r.arbitrator

	ec, err := cfg.Escrow(r.arbitrator)
	if err != nil {
		return nil, err
	}
	esc, err := escrow.New(ec)
	if err != nil {
		return nil, err
	}
	r.escrow = r.chain.Deploy(platform, esc)
	r.accounts["escrow"] = r.escrow
	return r, nil
}

func (r *Runner) Chain() *host.Chain { return r.chain }

/*
Run funds the scenario accounts and submits the steps in order. A failing
call doesn't stop the run unless the failure was not expected by the step, the
returned error describes the first mismatch.
*/
func (r *Runner) Run(sc *Scenario) (*Report, error) {
	for _, name := range slices.Sorted(maps.Keys(sc.Accounts)) {
		addr := r.address(name)
		if err := r.chain.Fund(addr, uint256.NewInt(sc.Accounts[name])); err != nil {
			return nil, fmt.Errorf("funding account %s: %w", name, err)
		}
		r.log.WithFields(logrus.Fields{"account": name, "address": addr.Hex(), "balance": sc.Accounts[name]}).Debug("account funded")
	}

	rep := &Report{Escrow: r.escrow}
	for i, step := range sc.Steps {
		res := StepResult{Index: i + 1, Action: step.Action}
		receipt, err := r.step(&step)
		if err != nil {
			res.Err = err
		} else if receipt != nil {
			res.Return = receipt.Return
			res.Events = receipt.Events
		}
		rep.Steps = append(rep.Steps, res)

		switch {
		case step.ExpectError == "" && err != nil:
			return rep, fmt.Errorf("step %d (%s) failed: %w", i+1, step.Action, err)
		case step.ExpectError != "" && err == nil:
			return rep, fmt.Errorf("step %d (%s) succeeded, expected error %q", i+1, step.Action, step.ExpectError)
		case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
			return rep, fmt.Errorf("step %d (%s) failed with %q, expected error %q", i+1, step.Action, err, step.ExpectError)
		}
	}

	rep.Balances = make(map[string]*uint256.Int, len(r.accounts))
	for name, addr := range r.accounts {
		rep.Balances[name] = r.chain.Balance(addr)
	}
	return rep, nil
}

func (r *Runner) step(s *Step) (*host.Receipt, error) {
	if s.Action == ActionAdvance {
		r.chain.AdvanceTime(s.Duration)
		return nil, nil
	}

	call, err := r.call(s)
	if err != nil {
		return nil, err
	}
	return r.chain.Submit(call)
}

func (r *Runner) call(s *Step) (*types.Call, error) {
	from := r.address(s.From)
	amount := uint256.NewInt(s.Amount)
	switch s.Action {
	case ActionCreate:
		return escrow.NewCreateTransactionCall(from, r.escrow, amount, s.Timeout, r.address(s.Receiver), s.Metadata)
	case ActionPay:
		return escrow.NewPayCall(from, r.escrow, s.Tx, amount)
	case ActionReimburse:
		return escrow.NewReimburseCall(from, r.escrow, s.Tx, amount)
	case ActionDispute:
		return escrow.NewRequestDisputeCall(from, r.escrow, s.Tx)
	case ActionTimeout:
		return escrow.NewExecuteTimeoutCall(from, r.escrow, s.Tx)
	case ActionRule:
		ruling, err := arbitration.ParseRuling(s.Ruling)
		if err != nil {
			return nil, err
		}
		return types.NewCall(from, r.arbitrator, nil, arbitrator.MethodGiveRuling, &arbitrator.GiveRulingAttributes{DisputeID: s.Dispute, Ruling: ruling})
	default:
		return nil, fmt.Errorf("unknown action %q", s.Action)
	}
}

// address resolves account name, hex strings are used as is.
func (r *Runner) address(name string) types.Address {
	if addr, ok := r.accounts[name]; ok {
		return addr
	}
	addr := types.NameToAddress(name)
	if types.IsHexAddress(name) {
		addr = types.HexToAddress(name)
	}
	r.accounts[name] = addr
	return addr
}

// DescribeEvent returns human readable description of an event emitted by
// the escrow or the arbitrator contract.
func DescribeEvent(ev *types.Event) string {
	var data any
	switch ev.Name {
	case arbitrator.EventDisputeCreation:
		data = &arbitrator.DisputeCreation{}
	case arbitrator.EventRulingGiven:
		data = &arbitrator.RulingGiven{}
	default:
		d, err := escrow.DecodeEvent(ev)
		if err != nil {
			return fmt.Sprintf("%s: %v", ev, err)
		}
		return fmt.Sprintf("%s %s", ev.Name, describe(d))
	}
	if err := ev.UnmarshalData(data); err != nil {
		return fmt.Sprintf("%s: %v", ev, err)
	}
	return fmt.Sprintf("%s %s", ev.Name, describe(data))
}

func describe(data any) string {
	switch d := data.(type) {
	case *escrow.TransactionCreated:
		return fmt.Sprintf("id=%d sender=%s receiver=%s amount=%s", d.ID, d.Sender.Hex(), d.Receiver.Hex(), d.Amount.Dec())
	case *escrow.Payment:
		return fmt.Sprintf("id=%d amount=%s party=%s", d.ID, d.Amount.Dec(), d.Party.Hex())
	case *escrow.FeeRecipientPayment:
		return fmt.Sprintf("id=%d fee=%s", d.ID, d.Fee.Dec())
	case *escrow.DisputeRequest:
		return fmt.Sprintf("id=%d dispute=%d party=%s", d.ID, d.DisputeID, d.Party.Hex())
	case *escrow.Ruling:
		return fmt.Sprintf("id=%d dispute=%d ruling=%s", d.ID, d.DisputeID, d.Ruling)
	case *arbitrator.DisputeCreation:
		return fmt.Sprintf("dispute=%d arbitrable=%s item=%d", d.DisputeID, d.Arbitrable.Hex(), d.ArbitrableID)
	case *arbitrator.RulingGiven:
		return fmt.Sprintf("dispute=%d arbitrable=%s ruling=%s", d.DisputeID, d.Arbitrable.Hex(), d.Ruling)
	default:
		return fmt.Sprintf("%+v", d)
	}
}

// Failed returns the steps whose call failed.
func (rep *Report) Failed() []StepResult {
	return util.FilterSlice(rep.Steps, func(s StepResult) bool { return s.Err != nil })
}

// ReturnedID decodes the transaction ID returned by the create step.
func (res *StepResult) ReturnedID() (escrow.TxID, error) {
	var id escrow.TxID
	if err := cbor.Unmarshal(res.Return, &id); err != nil {
		return 0, err
	}
	return id, nil
}
