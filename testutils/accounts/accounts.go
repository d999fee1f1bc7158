package accounts

import (
	"crypto/rand"
	"testing"

	"github.com/nerwo/escrow-go/types"
)

// WithSuffix returns address whose last byte is suffix, all the other bytes are zero.
func WithSuffix(suffix byte) types.Address {
	var a types.Address
	a[len(a)-1] = suffix
	return a
}

func Random(t *testing.T) types.Address {
	var a types.Address
	if err := Fill(a[:]); err != nil {
		t.Fatal("failed to generate address:", err)
	}
	return a
}

/*
Fill fills the buf with random bytes.
Meant to be used where any non-zero address is good enough.
*/
func Fill(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}
