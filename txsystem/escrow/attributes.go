package escrow

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/nerwo/escrow-go/txsystem/arbitration"
	"github.com/nerwo/escrow-go/types"
)

const (
	MethodCreateTransaction types.Method = 1
	MethodPay               types.Method = 2
	MethodReimburse         types.Method = 3
	MethodRequestDispute    types.Method = 4
	MethodExecuteTimeout    types.Method = 5
	// MethodApplyRuling is called by the arbitrator, args are arbitration.RuleAttributes.
	MethodApplyRuling = arbitration.MethodRule
)

// TxID identifies escrow transaction, IDs are assigned sequentially starting from 1.
type TxID = uint64

type (
	CreateTransactionAttributes struct {
		_        struct{}      `cbor:",toarray"`
		Timeout  time.Duration // after that much time without dispute the receiver may be paid by anyone
		Receiver types.Address
		Metadata string
	}

	// PayAttributes are the arguments of both pay and reimburse.
	PayAttributes struct {
		_      struct{} `cbor:",toarray"`
		ID     TxID
		Amount uint256.Int
	}

	RequestDisputeAttributes struct {
		_  struct{} `cbor:",toarray"`
		ID TxID
	}

	ExecuteTimeoutAttributes struct {
		_  struct{} `cbor:",toarray"`
		ID TxID
	}
)

func NewCreateTransactionCall(sender, escrow types.Address, deposit *uint256.Int, timeout time.Duration, receiver types.Address, metadata string) (*types.Call, error) {
	return types.NewCall(sender, escrow, deposit, MethodCreateTransaction, &CreateTransactionAttributes{
		Timeout:  timeout,
		Receiver: receiver,
		Metadata: metadata,
	})
}

func NewPayCall(from, escrow types.Address, id TxID, amount *uint256.Int) (*types.Call, error) {
	return types.NewCall(from, escrow, nil, MethodPay, newPayAttributes(id, amount))
}

func NewReimburseCall(from, escrow types.Address, id TxID, amount *uint256.Int) (*types.Call, error) {
	return types.NewCall(from, escrow, nil, MethodReimburse, newPayAttributes(id, amount))
}

func NewRequestDisputeCall(from, escrow types.Address, id TxID) (*types.Call, error) {
	return types.NewCall(from, escrow, nil, MethodRequestDispute, &RequestDisputeAttributes{ID: id})
}

func NewExecuteTimeoutCall(from, escrow types.Address, id TxID) (*types.Call, error) {
	return types.NewCall(from, escrow, nil, MethodExecuteTimeout, &ExecuteTimeoutAttributes{ID: id})
}

func newPayAttributes(id TxID, amount *uint256.Int) *PayAttributes {
	a := &PayAttributes{ID: id}
	if amount != nil {
		a.Amount.Set(amount)
	}
	return a
}
