package dextest

import "github.com/ethereum/go-ethereum/accounts/abi"

func mustABI(parsed abi.ABI, err error) abi.ABI {
	if err != nil {
		panic(err)
	}
	return parsed
}
