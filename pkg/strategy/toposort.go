package strategy

import "github.com/blackhole-labs/stratplan/pkg/coreerr"

// TopologicalOrder returns the strategy's blocks ordered so every edge's
// source precedes its target, using Kahn's algorithm. Initially ready
// blocks keep their slice order; blocks freed later are queued in the order
// their indegree reaches zero (following edge order), so the result is
// deterministic for a given input (Testable Property 1). Returns KindGraphHasCycles if the
// graph (after the caller has unrolled any loops) is not a DAG.
func TopologicalOrder(s *Strategy) ([]string, error) {
	indegree := make(map[string]int, len(s.Blocks))
	order := make([]string, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		indegree[b.ID()] = 0
	}
	for _, e := range s.Edges {
		if _, ok := indegree[e.TargetID]; ok {
			indegree[e.TargetID]++
		}
	}

	// ready holds node ids with indegree 0, in discovery order; a node is
	// appended to ready the first time its indegree drops to zero and is
	// processed FIFO; two nodes freed by the same source are queued in
	// that source's outgoing-edge order, not by their block order.
	var ready []string
	inReady := make(map[string]bool)
	enqueueIfReady := func(id string) {
		if indegree[id] == 0 && !inReady[id] {
			ready = append(ready, id)
			inReady[id] = true
		}
	}
	for _, b := range s.Blocks {
		enqueueIfReady(b.ID())
	}

	visited := make(map[string]bool, len(s.Blocks))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		order = append(order, id)
		for _, e := range s.OutgoingEdges(id) {
			indegree[e.TargetID]--
			enqueueIfReady(e.TargetID)
		}
	}

	if len(order) != len(s.Blocks) {
		return nil, coreerr.New(coreerr.KindGraphHasCycles, "strategy graph contains a cycle not resolved by loop unrolling")
	}
	return order, nil
}
