package vecindex

import (
	"container/heap"
	"sort"
)

type candidate struct {
	key uint64
	sim float32
}

// candidateHeap is a max-heap by similarity, used as the exploration
// frontier during greedy layer search.
type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].sim > h[j].sim }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)         { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// resultHeap is a min-heap by similarity, used to keep the best ef
// candidates seen so far (worst at the root for cheap eviction).
type resultHeap []candidate

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return h[i].sim < h[j].sim }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// searchLayer runs greedy beam search for the ef closest nodes to query at
// the given layer, starting from entry.
func (ix *Index) searchLayer(query []float32, entry uint64, ef int, layer int) []candidate {
	entryNode, ok := ix.nodes[entry]
	if !ok {
		return nil
	}

	visited := map[uint64]bool{entry: true}
	entrySim := dot(query, entryNode.vector)

	candHeap := &candidateHeap{{entry, entrySim}}
	resHeap := &resultHeap{{entry, entrySim}}

	for candHeap.Len() > 0 {
		top := (*candHeap)[0]
		if resHeap.Len() >= ef && top.sim < (*resHeap)[0].sim {
			break
		}
		heap.Pop(candHeap)

		nd, ok := ix.nodes[top.key]
		if !ok {
			continue
		}
		var neighbors []uint64
		if layer < len(nd.layers) {
			neighbors = nd.layers[layer]
		}
		for _, nk := range neighbors {
			if visited[nk] {
				continue
			}
			visited[nk] = true
			other, ok := ix.nodes[nk]
			if !ok {
				continue
			}
			sim := dot(query, other.vector)
			if resHeap.Len() < ef {
				heap.Push(candHeap, candidate{nk, sim})
				heap.Push(resHeap, candidate{nk, sim})
				continue
			}
			if sim > (*resHeap)[0].sim {
				heap.Push(candHeap, candidate{nk, sim})
				heap.Push(resHeap, candidate{nk, sim})
				heap.Pop(resHeap)
			}
		}
	}

	out := make([]candidate, len(*resHeap))
	copy(out, *resHeap)
	sort.Slice(out, func(i, j int) bool { return out[i].sim > out[j].sim })
	return out
}

// greedyClosest walks layer lc from entry toward the single closest node
// to query, used to descend from the top layer before the ef-wide search
// at layer 0.
func (ix *Index) greedyClosest(query []float32, entry uint64, layer int) uint64 {
	cur := entry
	nd, ok := ix.nodes[cur]
	if !ok {
		return entry
	}
	curSim := dot(query, nd.vector)

	for {
		nd, ok := ix.nodes[cur]
		if !ok || layer >= len(nd.layers) {
			return cur
		}
		improved := false
		for _, nk := range nd.layers[layer] {
			other, ok := ix.nodes[nk]
			if !ok {
				continue
			}
			sim := dot(query, other.vector)
			if sim > curSim {
				curSim = sim
				cur = nk
				improved = true
			}
		}
		if !improved {
			return cur
		}
	}
}

// selectClosest sorts candidates by descending similarity and returns the
// top max.
func selectClosest(cands []candidate, max int) []candidate {
	sort.Slice(cands, func(i, j int) bool { return cands[i].sim > cands[j].sim })
	if len(cands) > max {
		cands = cands[:max]
	}
	out := make([]candidate, len(cands))
	copy(out, cands)
	return out
}

// sortResults orders results by descending similarity, tie-breaking by
// ascending internal key for determinism across runs with identical
// insert order.
func sortResults(results []Result, idToKey map[string]uint64) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return idToKey[results[i].ID] < idToKey[results[j].ID]
	})
}
