package escrow

import (
	"github.com/holiman/uint256"

	"github.com/nerwo/escrow-go/util"
)

/*
ValidateAmount checks that requested amount can be released from a transaction
holding remaining in custody. In case of error the InvalidAmountError carries
the remaining amount so that caller can retry with exact boundary value.
*/
func ValidateAmount(requested, remaining *uint256.Int) error {
	if requested.IsZero() || requested.Gt(remaining) {
		return &InvalidAmountError{Max: *remaining}
	}
	return nil
}

/*
SplitFee splits amount released to the receiver into the platform fee and the
net amount, fee is rounded down so fee+net == amount always holds.
*/
func SplitFee(amount *uint256.Int, feeBasisPoints uint64) (fee, net *uint256.Int) {
	fee = util.BasisPoints(amount, feeBasisPoints)
	net = new(uint256.Int).Sub(amount, fee)
	return fee, net
}
