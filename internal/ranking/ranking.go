// Package ranking narrows a rendered document to its most relevant types or
// to the declarations matching a query.
package ranking

import (
	"sort"
	"strings"

	"github.com/phobologic/csdoc/internal/model"
)

// SelectTop returns a new Document with only the maxTypes highest ranked
// top-level nodes, kept in their original order. If maxTypes is <= 0 or
// >= len(doc.Nodes), doc is returned unchanged.
func SelectTop(doc *model.Document, maxTypes int) *model.Document {
	if maxTypes <= 0 || maxTypes >= len(doc.Nodes) {
		return doc
	}

	idx := make([]int, len(doc.Nodes))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return doc.Nodes[idx[a]].Rank > doc.Nodes[idx[b]].Rank
	})
	idx = idx[:maxTypes]
	sort.Ints(idx)

	selected := make(map[string]struct{}, maxTypes)
	nodes := make([]model.Node, 0, maxTypes)
	for _, i := range idx {
		nodes = append(nodes, doc.Nodes[i])
		selected[doc.Nodes[i].FullName] = struct{}{}
	}

	var edges []model.Edge
	for i := range doc.Edges {
		e := &doc.Edges[i]
		_, srcOK := selected[e.Source]
		_, tgtOK := selected[e.Target]
		if srcOK && tgtOK {
			edges = append(edges, *e)
		}
	}

	return derive(doc, nodes, edges)
}

// FilterByName returns a new Document containing only declarations whose
// fully-qualified name contains substr (case-insensitive). A matched type
// keeps all of its members; an unmatched type is kept only as the path to a
// matched member. Types directly connected by an edge to a matched type are
// included without members, together with the edges that connect them.
func FilterByName(doc *model.Document, substr string) *model.Document {
	lower := strings.ToLower(substr)

	matched := make(map[string]struct{})
	var nodes []model.Node
	for i := range doc.Nodes {
		if n, ok := pruneByName(doc.Nodes[i], lower); ok {
			nodes = append(nodes, n)
			matched[n.FullName] = struct{}{}
		}
	}

	related := make(map[string]struct{})
	var edges []model.Edge
	for i := range doc.Edges {
		e := &doc.Edges[i]
		_, srcOK := matched[e.Source]
		_, tgtOK := matched[e.Target]
		if !srcOK && !tgtOK {
			continue
		}
		edges = append(edges, *e)
		if !srcOK {
			related[e.Source] = struct{}{}
		}
		if !tgtOK {
			related[e.Target] = struct{}{}
		}
	}

	// Keep input order when adding related types.
	if len(related) > 0 {
		var all []model.Node
		for i := range doc.Nodes {
			n := doc.Nodes[i]
			if _, ok := matched[n.FullName]; ok {
				for j := range nodes {
					if nodes[j].FullName == n.FullName {
						all = append(all, nodes[j])
						break
					}
				}
				continue
			}
			if _, ok := related[n.FullName]; ok {
				n.Members = nil
				all = append(all, n)
			}
		}
		nodes = all
	}

	return derive(doc, nodes, edges)
}

func pruneByName(n model.Node, lower string) (model.Node, bool) {
	if strings.Contains(strings.ToLower(n.FullName), lower) {
		return n, true
	}
	var members []model.Node
	for _, m := range n.Members {
		if pm, ok := pruneByName(m, lower); ok {
			members = append(members, pm)
		}
	}
	if len(members) == 0 {
		return model.Node{}, false
	}
	n.Members = members
	return n, true
}

// FilterByFile returns a new Document containing only declarations defined
// in files whose path contains substr (case-insensitive), with every edge
// touching the remaining types.
func FilterByFile(doc *model.Document, substr string) *model.Document {
	lower := strings.ToLower(substr)
	match := func(n *model.Node) bool {
		return strings.Contains(strings.ToLower(n.Location.File), lower)
	}

	kept := make(map[string]struct{})
	var nodes []model.Node
	for i := range doc.Nodes {
		if n, ok := pruneBy(doc.Nodes[i], match); ok {
			nodes = append(nodes, n)
			kept[n.FullName] = struct{}{}
		}
	}

	var edges []model.Edge
	for i := range doc.Edges {
		e := &doc.Edges[i]
		_, srcOK := kept[e.Source]
		_, tgtOK := kept[e.Target]
		if srcOK || tgtOK {
			edges = append(edges, *e)
		}
	}

	out := derive(doc, nodes, edges)
	var files []string
	for _, f := range doc.Files {
		if strings.Contains(strings.ToLower(f), lower) {
			files = append(files, f)
		}
	}
	out.Files = files
	return out
}

// pruneBy keeps the members of n that satisfy match. A partial type matches
// when any of its members was declared in a matching file.
func pruneBy(n model.Node, match func(*model.Node) bool) (model.Node, bool) {
	self := match(&n)
	var members []model.Node
	for _, m := range n.Members {
		if pm, ok := pruneBy(m, match); ok {
			members = append(members, pm)
		}
	}
	if !self && len(members) == 0 {
		return model.Node{}, false
	}
	n.Members = members
	return n, true
}

// derive builds a Document around nodes, keeping the diagnostics of the
// declarations that remain plus those not tied to any symbol.
func derive(doc *model.Document, nodes []model.Node, edges []model.Edge) *model.Document {
	names := make(map[string]struct{})
	var collect func(ns []model.Node)
	collect = func(ns []model.Node) {
		for i := range ns {
			names[ns[i].FullName] = struct{}{}
			collect(ns[i].Members)
		}
	}
	collect(nodes)

	var diags []model.Diagnostic
	for _, d := range doc.Diagnostics {
		if d.Symbol == "" {
			diags = append(diags, d)
			continue
		}
		if _, ok := names[d.Symbol]; ok {
			diags = append(diags, d)
		}
	}

	return &model.Document{
		Name:        doc.Name,
		Files:       doc.Files,
		Nodes:       nodes,
		Edges:       edges,
		Diagnostics: diags,
	}
}
