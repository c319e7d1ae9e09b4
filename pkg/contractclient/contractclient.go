// Package contractclient adapts the teacher's ContractClient contract
// (visible in the pack only through its test file,
// pkg/contractclient/contractclient_test.go — the implementation was never
// checked in) to a read-only surface: Call and calldata-encoding helpers,
// with the Send/signing half dropped since execution is out of scope here.
package contractclient

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller is the minimal chain-read surface a ContractClient needs. It is
// satisfied by pkg/chainio's ethclient-backed implementation and by test
// fakes alike, per spec §9's requirement that every read-side adapter be
// testable against a fake chain client.
type Caller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Client wraps one deployed contract's ABI + address, mirroring the
// teacher's ContractClient: Abi()/ContractAddress() accessors plus a Call
// method, without Send (no signing/broadcast in this CORE).
type Client struct {
	caller  Caller
	address common.Address
	abi     abi.ABI
}

func New(caller Caller, address common.Address, contractABI abi.ABI) *Client {
	return &Client{caller: caller, address: address, abi: contractABI}
}

func (c *Client) Abi() abi.ABI                    { return c.abi }
func (c *Client) ContractAddress() common.Address { return c.address }

// Call packs method+args, issues an eth_call and unpacks the result.
func (c *Client) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.caller.CallContract(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// Pack is exposed directly for components (builder, batcher) that need
// calldata without issuing a call, e.g. to embed in a TransactionStep or a
// multicall entry.
func (c *Client) Pack(method string, args ...interface{}) ([]byte, error) {
	return c.abi.Pack(method, args...)
}
