package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EscrowABI is the ABI of the settlement Escrow contract
const EscrowABI = `[
	{
		"inputs": [
			{"internalType": "bytes32", "name": "orderHash", "type": "bytes32"},
			{"internalType": "bytes32", "name": "hashLock", "type": "bytes32"},
			{"internalType": "address", "name": "token", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "uint256", "name": "timeLock", "type": "uint256"}
		],
		"name": "lockFunds",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "bytes32", "name": "orderHash", "type": "bytes32"},
			{"internalType": "uint256", "name": "dstChainId", "type": "uint256"}
		],
		"name": "initiateBridge",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "bytes32", "name": "orderHash", "type": "bytes32"},
			{"internalType": "uint256", "name": "srcChainId", "type": "uint256"}
		],
		"name": "verifyBridge",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "bytes32", "name": "orderHash", "type": "bytes32"},
			{"internalType": "address", "name": "token", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "executeSwap",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "bytes32", "name": "orderHash", "type": "bytes32"},
			{"internalType": "address", "name": "recipient", "type": "address"}
		],
		"name": "releaseFunds",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "bytes32", "name": "orderHash", "type": "bytes32"}
		],
		"name": "escrowOf",
		"outputs": [
			{"internalType": "address", "name": "", "type": "address"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "bytes32", "name": "orderHash", "type": "bytes32"},
			{"indexed": true, "internalType": "address", "name": "token", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "FundsLocked",
		"type": "event"
	}
]`

// Escrow is a binding to the Escrow contract
type Escrow struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
}

// NewEscrow creates a new binding for the contract deployed at address
func NewEscrow(address common.Address, backend bind.ContractBackend) (*Escrow, error) {
	parsed, err := abi.JSON(strings.NewReader(EscrowABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse escrow ABI: %v", err)
	}
	contract := bind.NewBoundContract(address, parsed, backend, backend, backend)
	return &Escrow{address: address, abi: parsed, contract: contract}, nil
}

// Address returns the contract address
func (e *Escrow) Address() common.Address {
	return e.address
}

// LockFunds locks amount of token under hashLock until timeLock (unix seconds)
func (e *Escrow) LockFunds(opts *bind.TransactOpts, orderHash, hashLock [32]byte, token common.Address, amount, timeLock *big.Int) (*types.Transaction, error) {
	return e.contract.Transact(opts, "lockFunds", orderHash, hashLock, token, amount, timeLock)
}

// InitiateBridge starts the transfer of locked funds towards dstChainID
func (e *Escrow) InitiateBridge(opts *bind.TransactOpts, orderHash [32]byte, dstChainID *big.Int) (*types.Transaction, error) {
	return e.contract.Transact(opts, "initiateBridge", orderHash, dstChainID)
}

// VerifyBridge confirms on the destination that the bridged funds arrived
func (e *Escrow) VerifyBridge(opts *bind.TransactOpts, orderHash [32]byte, srcChainID *big.Int) (*types.Transaction, error) {
	return e.contract.Transact(opts, "verifyBridge", orderHash, srcChainID)
}

// ExecuteSwap swaps the bridged funds into amount of token
func (e *Escrow) ExecuteSwap(opts *bind.TransactOpts, orderHash [32]byte, token common.Address, amount *big.Int) (*types.Transaction, error) {
	return e.contract.Transact(opts, "executeSwap", orderHash, token, amount)
}

// ReleaseFunds pays the settled funds out to recipient
func (e *Escrow) ReleaseFunds(opts *bind.TransactOpts, orderHash [32]byte, recipient common.Address) (*types.Transaction, error) {
	return e.contract.Transact(opts, "releaseFunds", orderHash, recipient)
}

// EscrowOf returns the escrow account holding funds for orderHash
func (e *Escrow) EscrowOf(opts *bind.CallOpts, orderHash [32]byte) (common.Address, error) {
	var out []interface{}
	if err := e.contract.Call(opts, &out, "escrowOf", orderHash); err != nil {
		return common.Address{}, err
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("unexpected escrowOf result length %d", len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected escrowOf result type %T", out[0])
	}
	return addr, nil
}

// PackLockFunds returns calldata for lockFunds, used for gas estimation and logging
func (e *Escrow) PackLockFunds(orderHash, hashLock [32]byte, token common.Address, amount, timeLock *big.Int) ([]byte, error) {
	return e.abi.Pack("lockFunds", orderHash, hashLock, token, amount, timeLock)
}
