package escrow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerwo/escrow-go/testutils/rogue"
	"github.com/nerwo/escrow-go/txsystem/arbitration"
	"github.com/nerwo/escrow-go/txsystem/arbitrator"
	"github.com/nerwo/escrow-go/types"
)

func Test_RequestDispute(t *testing.T) {
	env := newTestEnv(t, 250)
	id := env.create(t, sender, receiver, 101)

	_, err := env.requestDispute(t, stranger, id)
	requireInvalidCaller(t, err, sender)
	_, err = env.requestDispute(t, receiver, id+1)
	require.ErrorIs(t, err, ErrNotFound)

	r, err := env.requestDispute(t, receiver, id)
	require.NoError(t, err)
	require.Len(t, r.Events, 2)
	require.Equal(t, env.arbitrator, r.Events[0].Contract)
	require.Equal(t, arbitrator.EventDisputeCreation, r.Events[0].Name)
	require.Equal(t, []any{&DisputeRequest{ID: id, DisputeID: 1, Party: receiver}}, escrowEvents(t, r.Events, env.escrow))

	tx := env.tx(t, id)
	require.Equal(t, DisputeRequested, tx.Dispute)
	require.EqualValues(t, 1, tx.DisputeID)

	d, err := arbitrator.GetDispute(env.chain.State(), env.arbitrator, 1)
	require.NoError(t, err)
	require.Equal(t, env.escrow, d.Arbitrable)
	require.Equal(t, id, d.ArbitrableID)
	require.Equal(t, arbitrator.StatusWaiting, d.Status)

	before := env.stateHash(t)

	_, err = env.pay(t, sender, id, 1)
	require.ErrorIs(t, err, ErrDisputeActive)
	_, err = env.reimburse(t, receiver, id, 101)
	require.ErrorIs(t, err, ErrDisputeActive)
	// authorization and amount are checked first
	_, err = env.pay(t, stranger, id, 1)
	requireInvalidCaller(t, err, sender)
	_, err = env.pay(t, sender, id, 102)
	requireInvalidAmount(t, err, 101)

	_, err = env.requestDispute(t, sender, id)
	require.ErrorIs(t, err, ErrInvalidDisputeState)

	env.chain.AdvanceTime(2 * time.Hour)
	_, err = env.executeTimeout(t, stranger, id)
	require.ErrorIs(t, err, ErrDisputeActive)

	require.Equal(t, before, env.stateHash(t))
}

func Test_RequestDispute_settled(t *testing.T) {
	env := newTestEnv(t, 250)
	id := env.create(t, sender, receiver, 10)
	_, err := env.pay(t, sender, id, 10)
	require.NoError(t, err)

	_, err = env.requestDispute(t, sender, id)
	require.ErrorIs(t, err, ErrInvalidDisputeState)
}

func Test_RequestDispute_arbitratorFails(t *testing.T) {
	env := newTestEnv(t, 250)
	// escrow pointing to an address without code can't open disputes
	esc, err := New(Config{Platform: platform, FeeBasisPoints: 250, Arbitrator: stranger})
	require.NoError(t, err)
	env.escrow = env.chain.Deploy(platform, esc)
	id := env.create(t, sender, receiver, 10)
	before := env.stateHash(t)

	_, err = env.requestDispute(t, sender, id)
	require.ErrorContains(t, err, "creating dispute for transaction 1")
	require.Equal(t, before, env.stateHash(t))
	require.Equal(t, NoDispute, env.tx(t, id).Dispute)
}

func Test_ApplyRuling(t *testing.T) {
	const deposit = 10_001

	testCases := []struct {
		ruling   arbitration.Ruling
		sender   uint64 // amount returned to sender
		receiver uint64 // net amount received
		fee      uint64
		events   func(id TxID, arb types.Address) []any
	}{
		{
			ruling: arbitration.RulingSenderWins,
			sender: deposit,
			events: func(id TxID, arb types.Address) []any {
				return []any{
					&Payment{ID: id, Amount: *u(deposit), Party: arb},
					&Ruling{ID: id, DisputeID: 1, Ruling: arbitration.RulingSenderWins},
				}
			},
		},
		{
			ruling:   arbitration.RulingReceiverWins,
			receiver: deposit - 250,
			fee:      250,
			events: func(id TxID, arb types.Address) []any {
				return []any{
					&Payment{ID: id, Amount: *u(deposit), Party: arb},
					&FeeRecipientPayment{ID: id, Fee: *u(250)},
					&Ruling{ID: id, DisputeID: 1, Ruling: arbitration.RulingReceiverWins},
				}
			},
		},
		{
			ruling:   arbitration.RulingRefused,
			sender:   5001,
			receiver: 4875,
			fee:      125,
			events: func(id TxID, arb types.Address) []any {
				return []any{
					&Payment{ID: id, Amount: *u(5000), Party: arb},
					&FeeRecipientPayment{ID: id, Fee: *u(125)},
					&Payment{ID: id, Amount: *u(5001), Party: arb},
					&Ruling{ID: id, DisputeID: 1, Ruling: arbitration.RulingRefused},
				}
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.ruling.String(), func(t *testing.T) {
			env := newTestEnv(t, 250)
			id := env.create(t, sender, receiver, deposit)
			_, err := env.requestDispute(t, sender, id)
			require.NoError(t, err)

			r, err := env.giveRuling(t, court, 1, tc.ruling)
			require.NoError(t, err)
			require.Equal(t, tc.events(id, env.arbitrator), escrowEvents(t, r.Events, env.escrow))

			require.EqualValues(t, initialBalance-deposit+tc.sender, env.balance(sender))
			require.EqualValues(t, initialBalance+tc.receiver, env.balance(receiver))
			require.EqualValues(t, tc.fee, env.balance(platform))
			require.Zero(t, env.balance(env.escrow))

			tx := env.tx(t, id)
			require.Equal(t, DisputeResolved, tx.Dispute)
			require.True(t, tx.IsSettled())

			d, err := arbitrator.GetDispute(env.chain.State(), env.arbitrator, 1)
			require.NoError(t, err)
			require.Equal(t, arbitrator.StatusSolved, d.Status)
			require.Equal(t, tc.ruling, d.Ruling)

			_, err = env.giveRuling(t, court, 1, tc.ruling)
			require.ErrorIs(t, err, arbitrator.ErrDisputeClosed)
			_, err = env.pay(t, sender, id, 1)
			requireInvalidAmount(t, err, 0)
			_, err = env.requestDispute(t, sender, id)
			require.ErrorIs(t, err, ErrInvalidDisputeState)
		})
	}
}

func Test_ApplyRuling_refused(t *testing.T) {
	env := newTestEnv(t, 250)
	id := env.create(t, sender, receiver, 100)
	_, err := env.requestDispute(t, sender, id)
	require.NoError(t, err)
	before := env.stateHash(t)

	t.Run("not the arbitrator", func(t *testing.T) {
		for _, caller := range []types.Address{sender, receiver, court, stranger} {
			_, err := env.submit(t)(types.NewCall(caller, env.escrow, nil, MethodApplyRuling, &arbitration.RuleAttributes{DisputeID: 1, ArbitrableID: id, Ruling: arbitration.RulingSenderWins}))
			requireInvalidCaller(t, err, env.arbitrator)
		}
	})

	t.Run("not the owner of the arbitrator", func(t *testing.T) {
		_, err := env.giveRuling(t, sender, 1, arbitration.RulingSenderWins)
		require.ErrorIs(t, err, arbitrator.ErrNotOwner)
	})

	t.Run("invalid ruling", func(t *testing.T) {
		_, err := env.giveRuling(t, court, 1, arbitration.Ruling(7))
		require.ErrorIs(t, err, ErrInvalidRuling)
		d, err := arbitrator.GetDispute(env.chain.State(), env.arbitrator, 1)
		require.NoError(t, err)
		require.Equal(t, arbitrator.StatusWaiting, d.Status, "the arbitrator state must be reverted too")
	})

	t.Run("unknown dispute", func(t *testing.T) {
		_, err := env.giveRuling(t, court, 2, arbitration.RulingSenderWins)
		require.ErrorIs(t, err, arbitrator.ErrDisputeNotFound)
	})

	require.Equal(t, before, env.stateHash(t))
}

func Test_ApplyRuling_disputeMismatch(t *testing.T) {
	env := newTestEnv(t, 250)
	id := env.create(t, sender, receiver, 100)
	other := env.create(t, sender, receiver, 100)
	_, err := env.requestDispute(t, sender, id)
	require.NoError(t, err)

	// the arbitrator contract is replaced by an account we control
	esc, err := New(Config{Platform: platform, Arbitrator: court})
	require.NoError(t, err)
	env.escrow = env.chain.Deploy(platform, esc)

	_, err = env.submit(t)(types.NewCall(court, env.escrow, nil, MethodApplyRuling, &arbitration.RuleAttributes{DisputeID: 1, ArbitrableID: other, Ruling: arbitration.RulingSenderWins}))
	require.ErrorIs(t, err, ErrNotFound, "new escrow has no transactions")

	env.create(t, sender, receiver, 100)
	_, err = env.submit(t)(types.NewCall(court, env.escrow, nil, MethodApplyRuling, &arbitration.RuleAttributes{DisputeID: 1, ArbitrableID: 1, Ruling: arbitration.RulingSenderWins}))
	require.ErrorIs(t, err, ErrInvalidDisputeState, "ruling for transaction which is not disputed")
}

func Test_ApplyRuling_transferFails(t *testing.T) {
	env := newTestEnv(t, 250)
	rc, rogueAddr, id := newRogueReceiver(t, env, 100)
	rc.Refuse = true
	_, err := env.requestDispute(t, sender, id)
	require.NoError(t, err)

	_, err = env.giveRuling(t, court, 1, arbitration.RulingReceiverWins)
	var transferErr *TransferFailedError
	require.ErrorAs(t, err, &transferErr)
	require.Equal(t, rogueAddr, transferErr.Recipient)
	require.ErrorIs(t, err, rogue.ErrRefused)

	d, err := arbitrator.GetDispute(env.chain.State(), env.arbitrator, 1)
	require.NoError(t, err)
	require.Equal(t, arbitrator.StatusWaiting, d.Status)
	require.Equal(t, DisputeRequested, env.tx(t, id).Dispute)

	_, err = env.giveRuling(t, court, 1, arbitration.RulingSenderWins)
	require.NoError(t, err)
	require.EqualValues(t, initialBalance, env.balance(sender))
}

func Test_ExecuteTimeout_subSecondClock(t *testing.T) {
	env := newTestEnv(t, 250)
	env.chain.AdvanceTime(900 * time.Millisecond)
	id := env.create(t, sender, receiver, 100)
	require.True(t, env.chain.Now().Add(time.Hour).Equal(env.tx(t, id).Deadline()))

	env.chain.AdvanceTime(time.Hour - 500*time.Millisecond)
	_, err := env.executeTimeout(t, stranger, id)
	require.ErrorIs(t, err, ErrTimeoutNotReached)

	env.chain.AdvanceTime(500 * time.Millisecond)
	_, err = env.executeTimeout(t, stranger, id)
	require.NoError(t, err)
	require.True(t, env.tx(t, id).IsSettled())
}

func Test_ExecuteTimeout(t *testing.T) {
	env := newTestEnv(t, 250)
	id := env.create(t, sender, receiver, 10_000)
	_, err := env.pay(t, sender, id, 2000)
	require.NoError(t, err)

	_, err = env.executeTimeout(t, stranger, id)
	require.ErrorIs(t, err, ErrTimeoutNotReached)
	env.chain.AdvanceTime(time.Hour - time.Second)
	_, err = env.executeTimeout(t, stranger, id)
	require.ErrorIs(t, err, ErrTimeoutNotReached)

	env.chain.AdvanceTime(time.Second)
	r, err := env.executeTimeout(t, stranger, id)
	require.NoError(t, err)
	require.Equal(t, []any{
		&Payment{ID: id, Amount: *u(8000), Party: stranger},
		&FeeRecipientPayment{ID: id, Fee: *u(200)},
	}, escrowEvents(t, r.Events, env.escrow))
	require.EqualValues(t, initialBalance+9750, env.balance(receiver))
	require.EqualValues(t, 250, env.balance(platform))
	require.EqualValues(t, initialBalance, env.balance(stranger))
	require.True(t, env.tx(t, id).IsSettled())

	_, err = env.executeTimeout(t, stranger, id)
	requireInvalidAmount(t, err, 0)
	_, err = env.executeTimeout(t, stranger, id+1)
	require.ErrorIs(t, err, ErrNotFound)
}
