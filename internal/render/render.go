// Package render turns a resolved symbol table into document nodes and
// encodes documents in the supported output formats.
package render

import (
	"iter"
	"strings"

	"github.com/phobologic/csdoc/internal/model"
	"github.com/phobologic/csdoc/internal/signature"
	"github.com/phobologic/csdoc/internal/symtab"
	"github.com/phobologic/csdoc/internal/xref"
)

// Renderer produces nodes from a built table and its resolutions. It holds no
// iteration state, so Nodes may be ranged any number of times.
type Renderer struct {
	table    *symtab.Table
	res      *xref.Resolutions
	prefixes []string
	ranks    map[string]float64
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithShortenPrefixes drops the given namespace prefixes from rendered types.
func WithShortenPrefixes(prefixes []string) Option {
	return func(r *Renderer) { r.prefixes = prefixes }
}

// WithRanks attaches a rank to top-level nodes by fully-qualified name.
func WithRanks(ranks map[string]float64) Option {
	return func(r *Renderer) { r.ranks = ranks }
}

// New returns a Renderer over table. res may be nil.
func New(table *symtab.Table, res *xref.Resolutions, opts ...Option) *Renderer {
	r := &Renderer{table: table, res: res}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Nodes yields one node per top-level declaration in input order. Nodes are
// rendered as they are pulled.
func (r *Renderer) Nodes() iter.Seq[model.Node] {
	return func(yield func(model.Node) bool) {
		for _, d := range r.table.Roots() {
			if !yield(r.Node(d)) {
				return
			}
		}
	}
}

// Node renders d and its members.
func (r *Renderer) Node(d *model.Declaration) model.Node {
	n := model.Node{
		Kind:      d.Kind,
		Name:      d.Name,
		FullName:  d.FullName,
		Signature: Signature(d, r.prefixes),
		Location:  d.Location,
		Rank:      r.ranks[d.FullName],
	}
	n.Attributes = append([]string(nil), d.Attributes...)
	for _, b := range d.Bases {
		n.Inherits = append(n.Inherits, signature.FormatType(b, r.prefixes))
	}
	if doc := d.Doc; doc != nil {
		n.Summary = doc.Summary
		n.Remarks = doc.Remarks
		n.Returns = doc.Returns
		if n.Returns == "" {
			n.Returns = doc.Value
		}
	}
	n.Params = r.params(d)

	for _, ref := range r.res.For(d) {
		n.Refs = append(n.Refs, model.NodeRef{
			Target:   ref.Target,
			State:    ref.State,
			Resolved: ref.Resolved,
			URL:      ref.URL,
		})
	}
	for _, m := range d.Members {
		n.Members = append(n.Members, r.Node(m))
	}
	return n
}

// params renders the signature parameters followed by any documented
// parameters the signature does not declare.
func (r *Renderer) params(d *model.Declaration) []model.NodeParam {
	var out []model.NodeParam
	seen := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		text, _ := d.Doc.Param(p.Name)
		out = append(out, model.NodeParam{
			Name:    p.Name,
			Type:    signature.FormatType(p.Type, r.prefixes),
			Shape:   p.Type.Shape,
			Default: p.Default,
			Text:    text,
		})
		seen[p.Name] = true
	}
	if d.Doc != nil {
		for _, p := range d.Doc.Params {
			if !seen[p.Name] {
				out = append(out, model.NodeParam{Name: p.Name, Text: p.Text})
			}
		}
	}
	return out
}

// Signature renders the declaration the way it reads in source, with
// namespace prefixes shortened.
func Signature(d *model.Declaration, prefixes []string) string {
	var parts []string
	parts = append(parts, d.Modifiers...)

	typ := ""
	if d.Type != nil {
		typ = signature.FormatType(*d.Type, prefixes)
	}
	params := func() string {
		list := make([]string, len(d.Params))
		for i, p := range d.Params {
			list[i] = signature.FormatParam(p, prefixes)
		}
		return strings.Join(list, ", ")
	}
	typeParams := ""
	if len(d.TypeParams) > 0 {
		typeParams = "<" + strings.Join(d.TypeParams, ", ") + ">"
	}

	switch d.Kind {
	case model.Namespace:
		return "namespace " + d.FullName

	case model.Class, model.Struct, model.Interface, model.Enum:
		parts = append(parts, string(d.Kind), d.Name+typeParams)
		if len(d.Bases) > 0 {
			bases := make([]string, len(d.Bases))
			for i, b := range d.Bases {
				bases[i] = signature.FormatType(b, prefixes)
			}
			parts = append(parts, ":", strings.Join(bases, ", "))
		}

	case model.Enumerator:
		if d.Value != "" {
			return d.Name + " = " + d.Value
		}
		return d.Name

	case model.Constructor:
		parts = append(parts, d.Name+"("+params()+")")

	case model.Method, model.Delegate:
		parts = appendNonEmpty(parts, typ)
		parts = append(parts, d.Name+typeParams+"("+params()+")")

	case model.Indexer:
		parts = appendNonEmpty(parts, typ)
		parts = append(parts, "this["+params()+"]")
		parts = append(parts, accessorBlock(d.Accessors))

	case model.Property:
		parts = appendNonEmpty(parts, typ)
		parts = append(parts, d.Name, accessorBlock(d.Accessors))

	case model.Event:
		parts = append(parts, "event")
		parts = appendNonEmpty(parts, typ)
		parts = append(parts, d.Name)

	default:
		parts = appendNonEmpty(parts, typ)
		parts = append(parts, d.Name)
		if d.Value != "" {
			parts = append(parts, "=", d.Value)
		}
	}
	return strings.Join(parts, " ")
}

func appendNonEmpty(parts []string, s string) []string {
	if s == "" {
		return parts
	}
	return append(parts, s)
}

func accessorBlock(accessors []string) string {
	if len(accessors) == 0 {
		return "{ }"
	}
	return "{ " + strings.Join(accessors, "; ") + "; }"
}

// Document collects every node into a document. edges and diags are copied
// in as given.
func (r *Renderer) Document(name string, files []string, edges []model.Edge, diags []model.Diagnostic) *model.Document {
	doc := &model.Document{
		Name:        name,
		Files:       files,
		Edges:       edges,
		Diagnostics: diags,
	}
	for n := range r.Nodes() {
		doc.Nodes = append(doc.Nodes, n)
	}
	return doc
}
