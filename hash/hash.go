package hash

import "crypto"

// SumHashes hashes the hashes, for hashing other values use Sum or New() instead.
func SumHashes(hashAlgorithm crypto.Hash, hashes ...[]byte) []byte {
	hasher := hashAlgorithm.New()
	for _, hash := range hashes {
		hasher.Write(hash)
	}
	return hasher.Sum(nil)
}

// Sum returns SHA256 digest of the CBOR encoding of the values.
func Sum(values ...any) ([]byte, error) {
	hasher := NewSHA256()
	for _, value := range values {
		hasher.Write(value)
	}
	return hasher.Sum()
}
