package util

import (
	"fmt"

	"github.com/holiman/uint256"
)

// BasisPointsDenominator is the number of basis points in a whole (100%).
const BasisPointsDenominator = 10_000

// AddAmounts adds a list of amounts together, returning an error if the sum overflows 256 bits.
func AddAmounts(ns ...*uint256.Int) (*uint256.Int, error) {
	sum := new(uint256.Int)
	for _, n := range ns {
		if _, overflow := sum.AddOverflow(sum, n); overflow {
			return nil, fmt.Errorf("uint256 sum overflow: %v", ns)
		}
	}
	return sum, nil
}

// SafeAdd returns a+b and checks for overflow
func SafeAdd(a, b *uint256.Int) (*uint256.Int, bool) {
	r, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, false
	}
	return r, true
}

// SafeSub returns a-b and checks for underflow
func SafeSub(a, b *uint256.Int) (*uint256.Int, bool) {
	r, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, false
	}
	return r, true
}

/*
BasisPoints returns floor(amount * bp / 10000).

The product is calculated with 512 bit precision so it can't overflow, the
result never exceeds amount as long as bp <= BasisPointsDenominator.
*/
func BasisPoints(amount *uint256.Int, bp uint64) *uint256.Int {
	r, _ := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(bp), uint256.NewInt(BasisPointsDenominator))
	return r
}
