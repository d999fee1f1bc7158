package types

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Address identifies an account on the host ledger: either an externally
// controlled account or a deployed contract. Both are treated the same way,
// nothing in this module branches on the kind of account.
type Address = common.Address

// ZeroAddress is the unset address, never a valid counterparty.
var ZeroAddress = Address{}

func HexToAddress(s string) Address {
	return common.HexToAddress(s)
}

func IsHexAddress(s string) bool {
	return common.IsHexAddress(s)
}

// ContractAddress derives the address of a contract deployed by the deployer
// with the given nonce.
func ContractAddress(deployer Address, nonce uint64) Address {
	return ethcrypto.CreateAddress(deployer, nonce)
}

// NameToAddress derives an address from a human readable account name, used
// by tooling where accounts are referred to by name.
func NameToAddress(name string) Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte(name)))
}
