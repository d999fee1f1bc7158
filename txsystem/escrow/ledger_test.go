package escrow

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/nerwo/escrow-go/host"
	"github.com/nerwo/escrow-go/testutils/accounts"
	"github.com/nerwo/escrow-go/types"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, *host.State) {
	t.Helper()
	state := host.NewState()
	return NewLedger(state.Storage(accounts.WithSuffix(0xee))), state
}

func Test_Ledger_Create(t *testing.T) {
	l, _ := newTestLedger(t)
	sender, receiver := accounts.WithSuffix(1), accounts.WithSuffix(2)

	n, err := l.Count()
	require.NoError(t, err)
	require.Zero(t, n)

	var amountErr *InvalidAmountError
	_, err = l.Create(sender, receiver, uint256.NewInt(0), time.Hour, "", testNow)
	require.ErrorAs(t, err, &amountErr)
	require.True(t, amountErr.Max.IsZero())

	_, err = l.Create(sender, types.ZeroAddress, uint256.NewInt(1), time.Hour, "", testNow)
	require.ErrorIs(t, err, ErrInvalidReceiver)

	_, err = l.Create(sender, receiver, uint256.NewInt(1), -time.Second, "", testNow)
	require.ErrorIs(t, err, ErrInvalidTimeout)

	for i := range 3 {
		id, err := l.Create(sender, receiver, uint256.NewInt(uint64(100+i)), time.Hour, "note", testNow)
		require.NoError(t, err)
		require.EqualValues(t, i+1, id)
	}
	n, err = l.Count()
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	tx, err := l.Get(2)
	require.NoError(t, err)
	require.Equal(t, &Transaction{
		ID:        2,
		Sender:    sender,
		Receiver:  receiver,
		Deposit:   *uint256.NewInt(101),
		Remaining: *uint256.NewInt(101),
		Timeout:   time.Hour,
		CreatedAt: testNow.UnixNano(),
		Metadata:  "note",
	}, tx)
	require.Equal(t, testNow.Add(time.Hour), tx.Deadline().UTC())
	require.True(t, tx.Released().IsZero())
	require.False(t, tx.IsSettled())

	_, err = l.Get(4)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = l.Get(0)
	require.ErrorIs(t, err, ErrNotFound)
}

func Test_Ledger_Debit(t *testing.T) {
	l, state := newTestLedger(t)
	id, err := l.Create(accounts.WithSuffix(1), accounts.WithSuffix(2), uint256.NewInt(100), time.Hour, "", testNow)
	require.NoError(t, err)

	tx, err := l.Debit(id, uint256.NewInt(30))
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(70), &tx.Remaining)
	require.Equal(t, uint256.NewInt(30), tx.Released())

	before, err := state.Hash()
	require.NoError(t, err)
	_, err = l.Debit(id, uint256.NewInt(71))
	require.ErrorIs(t, err, ErrDebitExceedsRemaining)
	after, err := state.Hash()
	require.NoError(t, err)
	require.Equal(t, before, after, "refused debit must not modify the record")

	tx, err = l.Debit(id, uint256.NewInt(70))
	require.NoError(t, err)
	require.True(t, tx.IsSettled())

	// settled record stays readable
	tx, err = l.Get(id)
	require.NoError(t, err)
	require.True(t, tx.Remaining.IsZero())
	require.Equal(t, uint256.NewInt(100), &tx.Deposit)

	_, err = l.Debit(id+1, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrNotFound)
}

func Test_Ledger_dispute(t *testing.T) {
	l, _ := newTestLedger(t)
	id, err := l.Create(accounts.WithSuffix(1), accounts.WithSuffix(2), uint256.NewInt(100), time.Hour, "", testNow)
	require.NoError(t, err)

	_, err = l.AttachDispute(id, 5)
	require.ErrorIs(t, err, ErrInvalidDisputeState)
	_, err = l.ResolveDispute(id)
	require.ErrorIs(t, err, ErrInvalidDisputeState)

	tx, err := l.RequestDispute(id)
	require.NoError(t, err)
	require.Equal(t, DisputeRequested, tx.Dispute)
	_, err = l.RequestDispute(id)
	require.ErrorIs(t, err, ErrInvalidDisputeState)

	_, err = l.AttachDispute(id, 5)
	require.NoError(t, err)
	tx, err = l.ResolveDispute(id)
	require.NoError(t, err)
	require.Equal(t, DisputeResolved, tx.Dispute)
	require.EqualValues(t, 5, tx.DisputeID)

	_, err = l.RequestDispute(id)
	require.ErrorIs(t, err, ErrInvalidDisputeState, "dispute can be requested only once")

	require.Equal(t, "resolved", DisputeResolved.String())
	require.Equal(t, "dispute(7)", DisputeState(7).String())
}
