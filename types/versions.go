package types

import "github.com/nerwo/escrow-go/cbor"

type ABTag = cbor.Tag
type ABVersion uint64

// tags of the records kept in contract storage
const (
	_ = iota + ABTag(1000)
	EscrowTransactionTag
	EscrowCounterTag
	ArbitratorDisputeTag
	ArbitratorCounterTag
)
