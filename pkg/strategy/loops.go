package strategy

import "math"

// DetectedLoop is a cycle found in the authored (pre-optimisation) graph.
// Cycles are first-class data here: the simulator never descends into one
// directly: pkg/simulate breaks each leverage loop found here by dropping
// its closing edge before topological sort. Iterations is not set by
// DetectLoops.
type DetectedLoop struct {
	BlockIDs       []string
	EdgeIDs        []string
	Iterations     int
	EntryBlockID   string
	ExitBlockID    string
	IsLeverageLoop bool
	StakeBlockID   string
	LendBlockID    string
	BorrowBlockID  string
}

// DetectLoops enumerates simple cycles via DFS with a recursion stack,
// classifying each as a leverage loop iff its node-type multiset contains
// {Stake, Lend, Borrow} as a subset (Testable Property 3).
func DetectLoops(s *Strategy) []DetectedLoop {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string
	var loops []DetectedLoop

	var dfs func(id string)
	dfs = func(id string) {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		for _, e := range s.OutgoingEdges(id) {
			target := e.TargetID
			if onStack[target] {
				loops = append(loops, buildLoop(s, path, target, e.ID))
			} else if !visited[target] {
				dfs(target)
			}
		}

		path = path[:len(path)-1]
		onStack[id] = false
	}

	for _, b := range s.Blocks {
		if !visited[b.ID()] {
			dfs(b.ID())
		}
	}
	return loops
}

// buildLoop slices path from cycleStart's first occurrence to form the
// cycle's node list, then resolves the edge id for each consecutive pair
// plus the closing edge (last -> cycleStart).
func buildLoop(s *Strategy, path []string, cycleStart, closingEdgeID string) DetectedLoop {
	start := -1
	for i, id := range path {
		if id == cycleStart {
			start = i
			break
		}
	}
	if start == -1 {
		// Should not happen: cycleStart is on the recursion stack, hence in path.
		start = 0
	}
	nodeIDs := append([]string{}, path[start:]...)

	edgeIDs := make([]string, 0, len(nodeIDs))
	for i := 0; i < len(nodeIDs)-1; i++ {
		if id := findEdgeID(s, nodeIDs[i], nodeIDs[i+1]); id != "" {
			edgeIDs = append(edgeIDs, id)
		}
	}
	edgeIDs = append(edgeIDs, closingEdgeID)

	loop := DetectedLoop{
		BlockIDs:     nodeIDs,
		EdgeIDs:      edgeIDs,
		EntryBlockID: nodeIDs[0],
		ExitBlockID:  nodeIDs[len(nodeIDs)-1],
	}
	classify(s, &loop)
	return loop
}

func findEdgeID(s *Strategy, source, target string) string {
	for _, e := range s.Edges {
		if e.SourceID == source && e.TargetID == target {
			return e.ID
		}
	}
	return ""
}

func classify(s *Strategy, loop *DetectedLoop) {
	var hasStake, hasLend, hasBorrow bool
	for _, id := range loop.BlockIDs {
		b := s.BlockByID(id)
		if b == nil {
			continue
		}
		switch b.Type() {
		case NodeStake:
			hasStake = true
			if loop.StakeBlockID == "" {
				loop.StakeBlockID = id
			}
		case NodeLend:
			hasLend = true
			if loop.LendBlockID == "" {
				loop.LendBlockID = id
			}
		case NodeBorrow:
			hasBorrow = true
			if loop.BorrowBlockID == "" {
				loop.BorrowBlockID = id
			}
		}
	}
	loop.IsLeverageLoop = hasStake && hasLend && hasBorrow
}

// LoopIterationResult is the geometric-series unrolling of a leverage loop.
type LoopIterationResult struct {
	PerIterValues     []float64
	TotalValue        float64
	EffectiveLeverage float64
}

// CalculateLoopIterations unrolls n iterations of a leverage loop:
// v_0 = initialValue; v_{i+1} = v_i * ltvPercent/100. total is the sum of
// all n values (including v_0); effective_leverage = total / initial.
func CalculateLoopIterations(initialValue, ltvPercent float64, n int) LoopIterationResult {
	if n <= 0 {
		return LoopIterationResult{}
	}
	values := make([]float64, n)
	values[0] = initialValue
	for i := 1; i < n; i++ {
		values[i] = values[i-1] * ltvPercent / 100
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	leverage := 0.0
	if initialValue != 0 {
		leverage = total / initialValue
	}
	return LoopIterationResult{PerIterValues: values, TotalValue: total, EffectiveLeverage: leverage}
}

// IterationHealthFactor is the per-iteration collateral/debt/HF snapshot.
type IterationHealthFactor struct {
	Collateral float64
	Debt       float64
	HealthFactor float64 // +Inf when Debt == 0
}

// CalculateHealthFactors walks the same geometric series as
// CalculateLoopIterations, reporting cumulative collateral (running total
// of values so far), cumulative debt (collateral minus the initial stake,
// since every unit borrowed is immediately re-staked as new collateral),
// and HF = collateral * liqThreshold / debt at each step.
func CalculateHealthFactors(initialValue, ltvPercent, liqThreshold float64, n int) []IterationHealthFactor {
	iter := CalculateLoopIterations(initialValue, ltvPercent, n)
	out := make([]IterationHealthFactor, n)
	running := 0.0
	for i, v := range iter.PerIterValues {
		running += v
		collateral := running
		debt := collateral - initialValue
		hf := math.Inf(1)
		if debt > 0 {
			hf = collateral * liqThreshold / debt
		}
		out[i] = IterationHealthFactor{Collateral: collateral, Debt: debt, HealthFactor: hf}
	}
	return out
}
