package escrow

import (
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/nerwo/escrow-go/host"
	"github.com/nerwo/escrow-go/types"
)

/*
send moves amount out of the escrow to the recipient. The recipient (if it is
a contract) runs before send returns and may call back into the escrow, so the
ledger must already reflect the release when send is called.

Failure is reported as TransferFailedError, the caller is expected to return
it so that the host reverts the debit together with the transfer.
*/
func send(ctx *host.Context, to types.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := ctx.Transfer(to, amount); err != nil {
		ctx.Log().WithFields(logrus.Fields{"recipient": to.Hex(), "amount": amount.Dec()}).WithError(err).Warn("outbound transfer failed")
		return &TransferFailedError{Recipient: to, Err: err}
	}
	return nil
}
