// Package graph builds a type reference graph from resolved cross-references
// and computes PageRank over it.
package graph

import (
	"math"
	"sort"

	"github.com/phobologic/csdoc/internal/model"
	"github.com/phobologic/csdoc/internal/symtab"
)

// TopLevel returns the outermost type enclosing fqn, or fqn itself when it
// is a top-level declaration. Namespaces and unknown names return "".
func TopLevel(table *symtab.Table, fqn string) string {
	d, ok := table.Lookup(fqn)
	if !ok {
		return ""
	}
	for d.Parent != "" {
		p, ok := table.Lookup(d.Parent)
		if !ok {
			break
		}
		d = p
	}
	return d.FullName
}

// BuildGraph creates edges between top-level types from resolved references.
// The source of an edge is the type containing the referencing declaration
// and the target is the type containing the referenced one. Each edge lists
// the referenced names once, in first-seen order.
func BuildGraph(table *symtab.Table, refs []model.CrossReference) []model.Edge {
	type edgeKey struct{ src, tgt string }
	edgeSymbols := make(map[edgeKey][]string)

	for _, ref := range refs {
		if ref.State != model.Resolved {
			continue
		}
		src := TopLevel(table, ref.Source)
		tgt := TopLevel(table, ref.Resolved)
		if src == "" || tgt == "" || src == tgt {
			continue
		}
		key := edgeKey{src, tgt}
		if !contains(edgeSymbols[key], ref.Resolved) {
			edgeSymbols[key] = append(edgeSymbols[key], ref.Resolved)
		}
	}

	var edges []model.Edge
	for key, syms := range edgeSymbols {
		edges = append(edges, model.Edge{
			Source:  key.src,
			Target:  key.tgt,
			Symbols: syms,
		})
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	return edges
}

// Rank applies PageRank over names using edges. Every name gets a rank, and
// ranks sum to 1. Without edges the ranks are uniform.
func Rank(names []string, edges []model.Edge) map[string]float64 {
	if len(names) == 0 {
		return nil
	}

	nodes := make(map[string]struct{}, len(names))
	for _, n := range names {
		nodes[n] = struct{}{}
	}

	if len(edges) == 0 {
		uniform := 1.0 / float64(len(nodes))
		ranks := make(map[string]float64, len(nodes))
		for n := range nodes {
			ranks[n] = uniform
		}
		return ranks
	}

	// Each referenced symbol counts as one edge.
	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	for _, e := range edges {
		if _, ok := nodes[e.Source]; !ok {
			continue
		}
		if _, ok := nodes[e.Target]; !ok {
			continue
		}
		for range e.Symbols {
			outEdges[e.Source] = append(outEdges[e.Source], e.Target)
			outDegree[e.Source]++
		}
	}

	return pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	// Iterate in sorted order so floating point sums are reproducible.
	order := sortedKeys(nodes)
	sources := make([]string, 0, len(outEdges))
	for src := range outEdges {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for _, node := range order {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		next := make(map[string]float64, n)

		var danglingSum float64
		for _, node := range order {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for _, node := range order {
			next[node] = teleport + danglingContrib
		}

		for _, src := range sources {
			contrib := alpha * rank[src] / float64(outDegree[src])
			for _, tgt := range outEdges[src] {
				next[tgt] += contrib
			}
		}

		var diff float64
		for _, node := range order {
			diff += math.Abs(next[node] - rank[node])
		}

		rank = next

		if diff < tol {
			break
		}
	}

	return rank
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
