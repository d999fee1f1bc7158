/*
Package arbitration describes the calls exchanged between an arbitrable
contract (escrow) and an arbitration authority. It holds no logic, only the
method identifiers and argument encodings both sides have to agree on.
*/
package arbitration

import (
	"fmt"

	"github.com/nerwo/escrow-go/types"
)

const (
	// MethodCreateDispute is implemented by arbitrators, returns the dispute ID (CBOR uint).
	MethodCreateDispute types.Method = 0x100
	// MethodRule is implemented by arbitrable contracts, only the arbitrator may call it.
	MethodRule types.Method = 0x101
)

// Ruling is the outcome of a dispute.
type Ruling uint64

const (
	RulingRefused      Ruling = iota // arbitrator refused to arbitrate, value is split
	RulingSenderWins                 // value is reimbursed to the sender
	RulingReceiverWins               // value is paid to the receiver
)

func (r Ruling) Valid() bool {
	return r <= RulingReceiverWins
}

func (r Ruling) String() string {
	switch r {
	case RulingRefused:
		return "refused"
	case RulingSenderWins:
		return "sender-wins"
	case RulingReceiverWins:
		return "receiver-wins"
	default:
		return fmt.Sprintf("ruling(%d)", uint64(r))
	}
}

// ParseRuling is the inverse of Ruling.String.
func ParseRuling(s string) (Ruling, error) {
	for r := RulingRefused; r.Valid(); r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown ruling %q", s)
}

type (
	CreateDisputeAttributes struct {
		_            struct{} `cbor:",toarray"`
		ArbitrableID uint64   // ID of the disputed item in the arbitrable contract
	}

	RuleAttributes struct {
		_            struct{} `cbor:",toarray"`
		DisputeID    uint64
		ArbitrableID uint64
		Ruling       Ruling
	}
)
