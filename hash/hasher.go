package hash

import (
	"crypto"
	"fmt"
	"hash"

	"github.com/fxamacker/cbor/v2"
)

/*
New creates "hash calculator" using given hash function.
Values written to the hash are encoded as CBOR before hashing so the digest
of a value is independent of its in-memory layout.
*/
func New(h hash.Hash) *Hash {
	return &Hash{h: h, enc: encoderMode.NewEncoder(h)}
}

// NewSHA256 is a shorthand for New(crypto.SHA256.New()), the algorithm
// used for host state digests.
func NewSHA256() *Hash {
	return New(crypto.SHA256.New())
}

type Hash struct {
	h   hash.Hash
	enc *cbor.Encoder
	err error
}

/*
Write serializes argument as CBOR and adds it to the hash.
*/
func (h *Hash) Write(v any) {
	if h.err != nil {
		return
	}
	h.err = h.enc.Encode(v)
}

/*
Sum returns the hash value calculated and first error (if any) that happened
during the hashing (in case of non-nil error the hash value is not valid).
*/
func (h *Hash) Sum() ([]byte, error) {
	return h.h.Sum(nil), h.err
}

var encoderMode cbor.EncMode

func init() {
	var err error
	if encoderMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(fmt.Errorf("initializing CBOR encoder mode: %w", err))
	}
}
