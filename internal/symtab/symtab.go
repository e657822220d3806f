// Package symtab merges parsed declarations into a symbol table keyed by
// fully-qualified name.
package symtab

import (
	"sort"
	"strings"

	"github.com/phobologic/csdoc/internal/model"
)

// Table maps fully-qualified names to merged declarations. It is immutable
// once built.
type Table struct {
	entries    map[string][]*model.Declaration
	byName     map[string][]string
	namespaces map[string]struct{}
	names      []string
	roots      []*model.Declaration
}

type indexed struct {
	seq  int
	decl *model.Declaration
}

// Build merges decls, given in input order, into a table. Partial type
// fragments sharing a name are unioned. Members are keyed by name, plus
// parameter types for callables; a key seen twice keeps the definition with
// the earliest location and reports DuplicateMemberDefinition for the other.
// The result does not depend on the order fragments are supplied in.
func Build(decls []*model.Declaration) (*Table, []model.Diagnostic) {
	t := &Table{
		entries:    make(map[string][]*model.Declaration),
		byName:     make(map[string][]string),
		namespaces: make(map[string]struct{}),
	}

	items := make([]indexed, len(decls))
	for i, d := range decls {
		items[i] = indexed{seq: i, decl: d}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].decl.Location.Before(items[j].decl.Location)
	})

	var diags []model.Diagnostic
	types := make(map[string]*model.Declaration)
	frags := make(map[string][]fragment)
	firstSeq := make(map[string]int)

	// Types first, so members always find their merged parent.
	for _, it := range items {
		d := it.decl
		if !d.Kind.IsType() {
			continue
		}
		if insideRejected(types, frags, d.Parent, d.Location) {
			frags[d.FullName] = append(frags[d.FullName], fragment{loc: d.Location, rejected: true})
			continue
		}
		merged, ok := types[d.FullName]
		if !ok {
			types[d.FullName] = cloneDecl(d)
		} else if diag, dup := mergeFragment(merged, d); dup {
			diags = append(diags, diag)
			frags[d.FullName] = append(frags[d.FullName], fragment{loc: d.Location, rejected: true})
			continue
		}
		frags[d.FullName] = append(frags[d.FullName], fragment{loc: d.Location})
		if seq, ok := firstSeq[d.FullName]; !ok || it.seq < seq {
			firstSeq[d.FullName] = it.seq
		}
	}

	memberKeys := make(map[string]map[string]*model.Declaration)
	placed := make(map[string]bool)
	for _, it := range items {
		d := it.decl
		if insideRejected(types, frags, d.Parent, d.Location) {
			continue
		}
		var clone *model.Declaration
		if d.Kind.IsType() {
			if placed[d.FullName] {
				continue // later fragment, already merged or rejected
			}
			placed[d.FullName] = true
			clone = types[d.FullName]
		} else {
			clone = cloneDecl(d)
		}

		parent := types[d.Parent]
		scope := d.Parent
		if parent == nil {
			scope = "namespace:" + d.Namespace
		}
		if !d.Kind.IsType() || parent != nil {
			keys := memberKeys[scope]
			if keys == nil {
				keys = make(map[string]*model.Declaration)
				memberKeys[scope] = keys
			}
			key := MemberKey(d)
			if first, seen := keys[key]; seen {
				diag := model.NewDiagnostic(model.DuplicateMemberDefinition, d.Location,
					"%s %s is already defined at %s", d.Kind, d.FullName, first.Location)
				diag.Symbol = d.FullName
				diags = append(diags, diag)
				continue
			}
			keys[key] = clone
		}
		if parent != nil {
			parent.Members = append(parent.Members, clone)
		}
		t.add(clone)
	}

	// Roots follow input order of their first fragment.
	for name, d := range types {
		if d.Parent == "" || types[d.Parent] == nil {
			t.roots = append(t.roots, types[name])
		}
	}
	for _, it := range items {
		d := it.decl
		if d.Kind.IsType() || (d.Parent != "" && types[d.Parent] != nil) {
			continue
		}
		entries := t.entries[d.FullName]
		if len(entries) == 0 {
			continue
		}
		t.roots = append(t.roots, entries[0])
		if seq, ok := firstSeq[d.FullName]; !ok || it.seq < seq {
			firstSeq[d.FullName] = it.seq
		}
	}
	sort.SliceStable(t.roots, func(i, j int) bool {
		return firstSeq[t.roots[i].FullName] < firstSeq[t.roots[j].FullName]
	})
	t.roots = dedupe(t.roots)

	for _, d := range decls {
		t.addNamespace(d.Namespace)
	}

	t.names = make([]string, 0, len(t.entries)+len(t.namespaces))
	for name := range t.entries {
		t.names = append(t.names, name)
	}
	for ns := range t.namespaces {
		if _, ok := t.entries[ns]; !ok {
			t.names = append(t.names, ns)
		}
	}
	sort.Strings(t.names)
	for simple := range t.byName {
		sort.Strings(t.byName[simple])
	}

	model.SortDiagnostics(diags)
	return t, diags
}

// fragment is one physical piece of a type. A rejected fragment duplicates
// a non-partial type and contributes nothing to the table.
type fragment struct {
	loc      model.Location
	rejected bool
}

// insideRejected reports whether a declaration at loc, nested in parent,
// belongs to a rejected fragment of parent or of any enclosing type. The
// owning fragment is the closest one above loc in the same file.
func insideRejected(types map[string]*model.Declaration, frags map[string][]fragment, parent string, loc model.Location) bool {
	for parent != "" {
		var owner *fragment
		for i := range frags[parent] {
			f := &frags[parent][i]
			if f.loc.File != loc.File || f.loc.Line > loc.Line {
				continue
			}
			if owner == nil || f.loc.Line >= owner.loc.Line {
				owner = f
			}
		}
		if owner == nil {
			return false
		}
		if owner.rejected {
			return true
		}
		p := types[parent]
		if p == nil {
			return false
		}
		parent, loc = p.Parent, owner.loc
	}
	return false
}

func dedupe(decls []*model.Declaration) []*model.Declaration {
	seen := make(map[*model.Declaration]struct{}, len(decls))
	out := decls[:0]
	for _, d := range decls {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

func (t *Table) add(d *model.Declaration) {
	if _, ok := t.entries[d.FullName]; !ok {
		t.byName[d.Name] = append(t.byName[d.Name], d.FullName)
	}
	t.entries[d.FullName] = append(t.entries[d.FullName], d)
}

func (t *Table) addNamespace(ns string) {
	if ns == "" {
		return
	}
	parts := strings.Split(ns, ".")
	for i := range parts {
		t.namespaces[strings.Join(parts[:i+1], ".")] = struct{}{}
	}
}

// MemberKey identifies a member within its type: a kind family and the name,
// with parameter types appended for callables so overloads stay distinct.
func MemberKey(d *model.Declaration) string {
	if !d.Kind.IsCallable() {
		return "member:" + d.Name
	}
	types := make([]string, len(d.Params))
	for i, p := range d.Params {
		t := p.Type.Text
		if len(p.Modifiers) > 0 {
			t = strings.Join(p.Modifiers, " ") + " " + t
		}
		types[i] = t
	}
	return "call:" + d.Name + "(" + strings.Join(types, ",") + ")"
}

func cloneDecl(d *model.Declaration) *model.Declaration {
	c := *d
	c.Modifiers = append([]string(nil), d.Modifiers...)
	c.Attributes = append([]string(nil), d.Attributes...)
	c.Bases = append([]model.TypeRef(nil), d.Bases...)
	c.Fragments = append([]model.Location(nil), d.Fragments...)
	c.Members = nil
	c.Doc = cloneDoc(d.Doc)
	return &c
}

func cloneDoc(d *model.DocComment) *model.DocComment {
	if d == nil {
		return nil
	}
	c := *d
	c.Refs = append([]model.CrossReference(nil), d.Refs...)
	c.Exceptions = append([]model.DocException(nil), d.Exceptions...)
	c.SeeAlso = append([]string(nil), d.SeeAlso...)
	return &c
}

// mergeFragment folds a later fragment into merged. When the two cannot be
// parts of one partial type it reports a duplicate and leaves merged as is.
func mergeFragment(merged, frag *model.Declaration) (model.Diagnostic, bool) {
	if merged.Kind != frag.Kind || !merged.HasModifier("partial") || !contains(frag.Modifiers, "partial") {
		diag := model.NewDiagnostic(model.DuplicateMemberDefinition, frag.Location,
			"%s %s is already defined at %s", frag.Kind, frag.FullName, merged.Location)
		diag.Symbol = frag.FullName
		return diag, true
	}

	merged.Fragments = append(merged.Fragments, frag.Fragments...)
	for _, m := range frag.Modifiers {
		if !merged.HasModifier(m) {
			merged.Modifiers = append(merged.Modifiers, m)
		}
	}
	for _, a := range frag.Attributes {
		if !contains(merged.Attributes, a) {
			merged.Attributes = append(merged.Attributes, a)
		}
	}
	for _, b := range frag.Bases {
		if !hasBase(merged.Bases, b) {
			merged.Bases = append(merged.Bases, b)
		}
	}
	if len(merged.TypeParams) == 0 {
		merged.TypeParams = append([]string(nil), frag.TypeParams...)
	}
	merged.Doc = mergeDoc(merged.Doc, frag.Doc)
	return model.Diagnostic{}, false
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func hasBase(bases []model.TypeRef, b model.TypeRef) bool {
	for _, x := range bases {
		if x.Text == b.Text {
			return true
		}
	}
	return false
}

// mergeDoc fills empty fields of a from b and unions the references.
func mergeDoc(a, b *model.DocComment) *model.DocComment {
	if b == nil {
		return a
	}
	if a == nil {
		return cloneDoc(b)
	}
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&a.Summary, b.Summary)
	fill(&a.Remarks, b.Remarks)
	fill(&a.Returns, b.Returns)
	fill(&a.Value, b.Value)
	fill(&a.Example, b.Example)
	if len(a.Params) == 0 {
		a.Params = b.Params
	}
	if len(a.TypeParams) == 0 {
		a.TypeParams = b.TypeParams
	}
	a.Exceptions = append(a.Exceptions, b.Exceptions...)
	for _, s := range b.SeeAlso {
		if !contains(a.SeeAlso, s) {
			a.SeeAlso = append(a.SeeAlso, s)
		}
	}
	a.Refs = append(a.Refs, b.Refs...)
	a.Malformed = a.Malformed || b.Malformed
	return a
}

// Lookup returns the declaration for a fully-qualified name. For overloaded
// members it returns the earliest overload.
func (t *Table) Lookup(fqn string) (*model.Declaration, bool) {
	ds := t.entries[fqn]
	if len(ds) == 0 {
		return nil, false
	}
	return ds[0], true
}

// Overloads returns every declaration sharing fqn, earliest first.
func (t *Table) Overloads(fqn string) []*model.Declaration {
	return t.entries[fqn]
}

// IsNamespace reports whether name is a declared namespace or a prefix of one.
func (t *Table) IsNamespace(name string) bool {
	_, ok := t.namespaces[name]
	return ok
}

// Has reports whether name is a declaration or a namespace.
func (t *Table) Has(name string) bool {
	_, ok := t.entries[name]
	return ok || t.IsNamespace(name)
}

// ByName returns the fully-qualified names of declarations with the given
// simple name, sorted.
func (t *Table) ByName(name string) []string {
	return t.byName[name]
}

// Names returns every declaration and namespace name, sorted.
func (t *Table) Names() []string {
	return t.names
}

// Match returns the sorted names equal to target or ending in "."+target.
func (t *Table) Match(target string) []string {
	var out []string
	suffix := "." + target
	for _, n := range t.names {
		if n == target || strings.HasSuffix(n, suffix) {
			out = append(out, n)
		}
	}
	return out
}

// Roots returns the top-level declarations in input order of their first
// fragment. Nested declarations are reached through Members.
func (t *Table) Roots() []*model.Declaration {
	return t.roots
}

// Walk visits every declaration depth-first, roots in input order and
// members in source order.
func (t *Table) Walk(fn func(d *model.Declaration)) {
	var visit func(d *model.Declaration)
	visit = func(d *model.Declaration) {
		fn(d)
		for _, m := range d.Members {
			visit(m)
		}
	}
	for _, r := range t.roots {
		visit(r)
	}
}

// Len returns the number of distinct fully-qualified names.
func (t *Table) Len() int {
	return len(t.entries)
}
