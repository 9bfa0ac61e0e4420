// Package repomap ranks a project's symbols by PageRank centrality and
// renders a token-budgeted map of the most central ones.
package repomap

import "math"

const (
	damping       = 0.85
	maxIterations = 50
	convergence   = 1e-6
)

// PageRank computes centrality scores over a directed graph given as an
// adjacency list of out-edges. Scores are normalised to sum to 1.0.
// An empty graph yields an empty map; a single node scores 1.0.
func PageRank(nodes []string, outEdges map[string][]string) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return map[string]float64{}
	}
	if n == 1 {
		return map[string]float64{nodes[0]: 1.0}
	}

	known := make(map[string]bool, n)
	for _, node := range nodes {
		known[node] = true
	}

	// Only edges between known nodes participate.
	out := make(map[string][]string, n)
	for src, targets := range outEdges {
		if !known[src] {
			continue
		}
		for _, dst := range targets {
			if known[dst] {
				out[src] = append(out[src], dst)
			}
		}
	}

	rank := make(map[string]float64, n)
	for _, node := range nodes {
		rank[node] = 1.0 / float64(n)
	}

	base := (1.0 - damping) / float64(n)
	for iter := 0; iter < maxIterations; iter++ {
		next := make(map[string]float64, n)
		dangling := 0.0
		for _, node := range nodes {
			if len(out[node]) == 0 {
				dangling += rank[node]
			}
		}
		share := damping * dangling / float64(n)

		for _, node := range nodes {
			next[node] = base + share
		}
		for _, node := range nodes {
			targets := out[node]
			if len(targets) == 0 {
				continue
			}
			contribution := damping * rank[node] / float64(len(targets))
			for _, dst := range targets {
				next[dst] += contribution
			}
		}

		maxDelta := 0.0
		for _, node := range nodes {
			if d := math.Abs(next[node] - rank[node]); d > maxDelta {
				maxDelta = d
			}
		}
		rank = next
		if maxDelta < convergence {
			break
		}
	}

	sum := 0.0
	for _, score := range rank {
		sum += score
	}
	if sum > 0 {
		for node := range rank {
			rank[node] /= sum
		}
	}
	return rank
}
