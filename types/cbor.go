package types

import "github.com/nerwo/escrow-go/cbor"

// RawCBOR is already encoded CBOR data item (call arguments, event payloads).
type RawCBOR = cbor.RawCBOR
