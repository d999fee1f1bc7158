package arbitrator

import (
	"testing"

	"github.com/holiman/uint256"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/nerwo/escrow-go/cbor"
	"github.com/nerwo/escrow-go/host"
	"github.com/nerwo/escrow-go/testutils/accounts"
	"github.com/nerwo/escrow-go/txsystem/arbitration"
	"github.com/nerwo/escrow-go/types"
)

var (
	owner    = accounts.WithSuffix(1)
	stranger = accounts.WithSuffix(2)
)

func setup(t *testing.T) (*host.Chain, types.Address) {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	c := host.New(host.WithLogger(log))
	require.NoError(t, c.Fund(stranger, uint256.NewInt(100)))
	arb, err := New(owner)
	require.NoError(t, err)
	require.Equal(t, owner, arb.Owner())
	return c, c.Deploy(owner, arb)
}

func submit(t *testing.T, c *host.Chain, from, to types.Address, method types.Method, args any) (*host.Receipt, error) {
	t.Helper()
	call, err := types.NewCall(from, to, nil, method, args)
	require.NoError(t, err)
	return c.Submit(call)
}

// deployArbitrable deploys contract which opens a dispute when called with
// method 1 and records the rulings it receives.
func deployArbitrable(t *testing.T, c *host.Chain, arbAddr types.Address, rulings *[]*arbitration.RuleAttributes) types.Address {
	t.Helper()
	return c.Deploy(stranger, host.ContractFunc(func(ctx *host.Context) (types.RawCBOR, error) {
		switch ctx.Method() {
		case 1:
			var item uint64
			if err := ctx.UnmarshalArgs(&item); err != nil {
				return nil, err
			}
			return ctx.Call(arbAddr, nil, arbitration.MethodCreateDispute, &arbitration.CreateDisputeAttributes{ArbitrableID: item})
		case arbitration.MethodRule:
			require.Equal(t, arbAddr, ctx.Caller())
			attr := &arbitration.RuleAttributes{}
			if err := ctx.UnmarshalArgs(attr); err != nil {
				return nil, err
			}
			if !attr.Ruling.Valid() {
				return nil, ErrUnknownMethod
			}
			*rulings = append(*rulings, attr)
			return nil, nil
		}
		return nil, ErrUnknownMethod
	}))
}

func Test_New(t *testing.T) {
	_, err := New(types.ZeroAddress)
	require.EqualError(t, err, "arbitrator owner address is not set")
}

func Test_CreateDispute(t *testing.T) {
	c, arbAddr := setup(t)
	var rulings []*arbitration.RuleAttributes
	arbitrable := deployArbitrable(t, c, arbAddr, &rulings)

	for i := range 3 {
		r, err := submit(t, c, stranger, arbitrable, 1, uint64(10+i))
		require.NoError(t, err)
		var id uint64
		require.NoError(t, cbor.Unmarshal(r.Return, &id))
		require.EqualValues(t, i+1, id)

		require.Len(t, r.Events, 1)
		require.Equal(t, EventDisputeCreation, r.Events[0].Name)
		ev := &DisputeCreation{}
		require.NoError(t, r.Events[0].UnmarshalData(ev))
		require.Equal(t, &DisputeCreation{DisputeID: id, Arbitrable: arbitrable, ArbitrableID: uint64(10 + i)}, ev)
	}

	d, err := GetDispute(c.State(), arbAddr, 2)
	require.NoError(t, err)
	require.Equal(t, &Dispute{ID: 2, Arbitrable: arbitrable, ArbitrableID: 11, Status: StatusWaiting}, d)

	_, err = GetDispute(c.State(), arbAddr, 4)
	require.ErrorIs(t, err, ErrDisputeNotFound)
}

func Test_GiveRuling(t *testing.T) {
	c, arbAddr := setup(t)
	var rulings []*arbitration.RuleAttributes
	arbitrable := deployArbitrable(t, c, arbAddr, &rulings)
	_, err := submit(t, c, stranger, arbitrable, 1, uint64(42))
	require.NoError(t, err)

	_, err = submit(t, c, stranger, arbAddr, MethodGiveRuling, &GiveRulingAttributes{DisputeID: 1, Ruling: arbitration.RulingSenderWins})
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = submit(t, c, owner, arbAddr, MethodGiveRuling, &GiveRulingAttributes{DisputeID: 1, Ruling: 9})
	require.ErrorIs(t, err, ErrUnknownMethod, "error of the arbitrable contract is returned")
	d, err := GetDispute(c.State(), arbAddr, 1)
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, d.Status)

	r, err := submit(t, c, owner, arbAddr, MethodGiveRuling, &GiveRulingAttributes{DisputeID: 1, Ruling: arbitration.RulingReceiverWins})
	require.NoError(t, err)
	require.Equal(t, []*arbitration.RuleAttributes{{DisputeID: 1, ArbitrableID: 42, Ruling: arbitration.RulingReceiverWins}}, rulings)
	require.Len(t, r.Events, 1)
	require.Equal(t, EventRulingGiven, r.Events[0].Name)

	d, err = GetDispute(c.State(), arbAddr, 1)
	require.NoError(t, err)
	require.Equal(t, StatusSolved, d.Status)
	require.Equal(t, arbitration.RulingReceiverWins, d.Ruling)

	_, err = submit(t, c, owner, arbAddr, MethodGiveRuling, &GiveRulingAttributes{DisputeID: 1, Ruling: arbitration.RulingReceiverWins})
	require.ErrorIs(t, err, ErrDisputeClosed)
	require.Len(t, rulings, 1)
}

func Test_GiveRuling_noContract(t *testing.T) {
	c, arbAddr := setup(t)
	// dispute opened by an account without code can't receive the ruling
	r, err := submit(t, c, stranger, arbAddr, MethodCreateDispute, &arbitration.CreateDisputeAttributes{ArbitrableID: 1})
	require.NoError(t, err)
	var id uint64
	require.NoError(t, cbor.Unmarshal(r.Return, &id))

	_, err = submit(t, c, owner, arbAddr, MethodGiveRuling, &GiveRulingAttributes{DisputeID: id, Ruling: arbitration.RulingRefused})
	require.ErrorIs(t, err, host.ErrNoContract)
	require.ErrorContains(t, err, "delivering ruling of dispute 1")
}

func Test_Arbitrator_refusedCalls(t *testing.T) {
	c, arbAddr := setup(t)

	call, err := types.NewCall(stranger, arbAddr, uint256.NewInt(1), MethodCreateDispute, &arbitration.CreateDisputeAttributes{ArbitrableID: 1})
	require.NoError(t, err)
	_, err = c.Submit(call)
	require.ErrorIs(t, err, ErrValueNotAccepted)
	require.Equal(t, uint256.NewInt(100), c.Balance(stranger))

	_, err = submit(t, c, stranger, arbAddr, 77, nil)
	require.ErrorIs(t, err, ErrUnknownMethod)

	_, err = submit(t, c, owner, arbAddr, MethodGiveRuling, &GiveRulingAttributes{DisputeID: 5})
	require.ErrorIs(t, err, ErrDisputeNotFound)
}
