package chainio

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller answers every CallContract with a pre-packed aggregate3
// response, regardless of the request — enough to exercise Aggregate3's
// pack/unpack round trip without a live RPC endpoint.
type fakeCaller struct {
	results []Result3
	err     error
}

func (f *fakeCaller) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	type outTuple struct {
		Success    bool
		ReturnData []byte
	}
	tuples := make([]outTuple, len(f.results))
	for i, r := range f.results {
		tuples[i] = outTuple{Success: r.Success, ReturnData: r.ReturnData}
	}
	return Multicall3ABI().Methods["aggregate3"].Outputs.Pack(tuples)
}

func TestAggregate3RoundTrip(t *testing.T) {
	target := common.HexToAddress("0x1111111111111111111111111111111111111111")
	caller := &fakeCaller{results: []Result3{
		{Success: true, ReturnData: []byte{0x01, 0x02}},
		{Success: false, ReturnData: nil},
	}}

	results, err := Aggregate3(context.Background(), caller, target, []Call3{
		{Target: target, AllowFailure: true, CallData: []byte{0xAA}},
		{Target: target, AllowFailure: true, CallData: []byte{0xBB}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, []byte{0x01, 0x02}, results[0].ReturnData)
	assert.False(t, results[1].Success)
}

func TestAggregate3PropagatesCallError(t *testing.T) {
	caller := &fakeCaller{err: assert.AnError}
	_, err := Aggregate3(context.Background(), caller, common.Address{}, []Call3{
		{Target: common.Address{}, CallData: []byte{0x01}},
	})
	assert.Error(t, err)
}

func TestMulticall3ABIParsesBothMethods(t *testing.T) {
	m3 := Multicall3ABI()
	_, ok := m3.Methods["aggregate3"]
	assert.True(t, ok)
	_, ok = m3.Methods["aggregate3Value"]
	assert.True(t, ok)
}

func TestEthClientCallerSatisfiesInterface(t *testing.T) {
	var _ Caller = EthClientCaller{}
	var _ Caller = &EthClientCaller{}
}

func TestAggregate3EmptyCalls(t *testing.T) {
	caller := &fakeCaller{results: nil}
	results, err := Aggregate3(context.Background(), caller, common.Address{}, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
