// Package batch groups adjacent steps sharing a protocol and chain (with
// no intra-group data dependency) into a single Multicall3 call, directly
// generalising the teacher's Unstake, which packs exitFarming+claimReward
// into one multicallData [][]byte and sends it through a single
// farmingCenterClient.Send(..., "multicall", multicallData) call.
package batch

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blackhole-labs/stratplan/pkg/chainio"
	"github.com/blackhole-labs/stratplan/pkg/txbuilder"
)

// GasSavings computes the spec's per-group formula, floored at zero:
// (n-1)*21_000 - n*2_500.
func GasSavings(n int) uint64 {
	if n <= 1 {
		return 0
	}
	saving := int64(n-1)*21_000 - int64(n)*2_500
	if saving < 0 {
		return 0
	}
	return uint64(saving)
}

// Group is one batched multicall.
type Group struct {
	ID          string
	Steps       []*txbuilder.TransactionStep
	IsValueless bool
	Calldata    []byte
	TotalValue  *big.Int
	GasSavings  uint64
}

// Result is the spec's {groups[], unbatchable[], gas_savings,
// final_tx_count, original_tx_count} contract.
type Result struct {
	Groups          []Group
	Unbatchable     []*txbuilder.TransactionStep
	GasSavings      uint64
	FinalTxCount    int
	OriginalTxCount int
}

func isSkippable(step *txbuilder.TransactionStep) bool {
	return step.ApprovalStatus != nil && step.ApprovalStatus.CanSkip
}

func hasOutputDependency(prev, next *txbuilder.TransactionStep) bool {
	if prev.TokenOut == nil || next.TokenIn == nil {
		return false
	}
	return prev.TokenOut.Address == next.TokenIn.Address
}

func sameBatchable(a, b *txbuilder.TransactionStep) bool {
	return a.Protocol != "" && a.Protocol == b.Protocol && a.ChainID == b.ChainID
}

// Analyze runs the single left-to-right grouping pass described in spec
// §4.G and writes batch_info onto every grouped step in place, so the
// original step order (and hence UI progress-bar coherence) is always
// preserved (Testable Property 8).
func Analyze(plan *txbuilder.TransactionPlan) *Result {
	var active []*txbuilder.TransactionStep
	for _, s := range plan.Steps {
		if isSkippable(s) {
			continue
		}
		active = append(active, s)
	}

	result := &Result{OriginalTxCount: len(active)}

	i := 0
	groupSeq := 0
	for i < len(active) {
		cur := active[i]

		if cur.Action == txbuilder.ActionApprove && i+1 < len(active) {
			next := active[i+1]
			if next.Action != txbuilder.ActionApprove && next.ChainID == cur.ChainID &&
				cur.TokenIn != nil && next.TokenIn != nil && cur.TokenIn.Address == next.TokenIn.Address {
				groupSeq++
				g := makeGroup(groupSeq, []*txbuilder.TransactionStep{cur, next})
				result.Groups = append(result.Groups, g)
				i += 2
				continue
			}
		}

		j := i + 1
		for j < len(active) && sameBatchable(active[j-1], active[j]) && !hasOutputDependency(active[j-1], active[j]) {
			j++
		}
		groupSize := j - i
		if groupSize > 1 {
			groupSeq++
			g := makeGroup(groupSeq, active[i:j])
			result.Groups = append(result.Groups, g)
			i = j
			continue
		}

		result.Unbatchable = append(result.Unbatchable, cur)
		i++
	}

	for _, g := range result.Groups {
		result.GasSavings += g.GasSavings
	}
	result.FinalTxCount = len(result.Groups) + len(result.Unbatchable)
	return result
}

func makeGroup(seq int, steps []*txbuilder.TransactionStep) Group {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	total := big.NewInt(0)
	for _, s := range steps {
		if s.Value != nil {
			total.Add(total, s.Value)
		}
	}
	isValueless := total.Sign() == 0

	groupID := idOf(seq)
	for i, s := range steps {
		others := make([]string, 0, len(ids)-1)
		for _, id := range ids {
			if id != s.ID {
				others = append(others, id)
			}
		}
		s.BatchInfo = &txbuilder.BatchInfo{
			BatchID:      groupID,
			IndexInBatch: i,
			TotalInBatch: len(steps),
			BatchedWith:  others,
		}
	}

	calldata, err := encodeMulticall(steps, isValueless)
	if err != nil {
		calldata = nil
	}

	return Group{
		ID:          groupID,
		Steps:       steps,
		IsValueless: isValueless,
		Calldata:    calldata,
		TotalValue:  total,
		GasSavings:  GasSavings(len(steps)),
	}
}

func idOf(seq int) string {
	return "batch-" + strconv.Itoa(seq)
}

// encodeMulticall packs the group's steps into Multicall3's aggregate3 (for
// value-less groups) or aggregate3Value (otherwise), with allowFailure set
// to false on every call for atomicity, per spec §4.G.
func encodeMulticall(steps []*txbuilder.TransactionStep, isValueless bool) ([]byte, error) {
	m3 := chainio.Multicall3ABI()
	if isValueless {
		type tuple struct {
			Target       common.Address
			AllowFailure bool
			CallData     []byte
		}
		tuples := make([]tuple, len(steps))
		for i, s := range steps {
			tuples[i] = tuple{Target: s.To, AllowFailure: false, CallData: s.Calldata}
		}
		return m3.Pack("aggregate3", tuples)
	}
	type tupleValue struct {
		Target       common.Address
		AllowFailure bool
		Value        *big.Int
		CallData     []byte
	}
	tuples := make([]tupleValue, len(steps))
	for i, s := range steps {
		v := s.Value
		if v == nil {
			v = big.NewInt(0)
		}
		tuples[i] = tupleValue{Target: s.To, AllowFailure: false, Value: v, CallData: s.Calldata}
	}
	return m3.Pack("aggregate3Value", tuples)
}
