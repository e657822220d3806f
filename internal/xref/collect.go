package xref

import (
	"context"

	"github.com/phobologic/csdoc/internal/model"
	"github.com/phobologic/csdoc/internal/symtab"
)

// Resolutions holds the resolved references of every declaration in a
// table. The declarations themselves are left untouched.
type Resolutions struct {
	byDecl map[*model.Declaration][]model.CrossReference
	all    []model.CrossReference
}

// For returns the resolved references of d in comment order, followed by its
// signature references.
func (r *Resolutions) For(d *model.Declaration) []model.CrossReference {
	if r == nil {
		return nil
	}
	return r.byDecl[d]
}

// All returns every resolved reference in table walk order.
func (r *Resolutions) All() []model.CrossReference {
	if r == nil {
		return nil
	}
	return r.all
}

// SignatureRefs returns references for the types named in d's signature:
// its declared type, parameter types and base types, including generic
// arguments. Type parameters in scope and tuple wrappers are skipped, and
// each name is referenced once.
func SignatureRefs(table *symtab.Table, d *model.Declaration) []model.CrossReference {
	skip := make(map[string]bool)
	for cur := d; cur != nil; {
		for _, tp := range cur.TypeParams {
			skip[tp] = true
		}
		if cur.Parent == "" {
			break
		}
		p, ok := table.Lookup(cur.Parent)
		if !ok {
			break
		}
		cur = p
	}

	var refs []model.CrossReference
	var add func(t model.TypeRef)
	add = func(t model.TypeRef) {
		if t.Name != "" && t.Name[0] != '(' {
			key := Normalize(t.Text)
			if !skip[key] {
				skip[key] = true
				refs = append(refs, model.CrossReference{
					Target:   t.Text,
					Source:   d.FullName,
					Origin:   model.FromSignature,
					Location: d.Location,
				})
			}
		}
		for _, g := range t.Generics {
			add(g)
		}
	}

	if d.Type != nil {
		add(*d.Type)
	}
	for _, p := range d.Params {
		add(p.Type)
	}
	for _, b := range d.Bases {
		add(b)
	}
	return refs
}

// ResolveTable resolves the documentation references of every declaration
// in table, plus signature references when linkSignatures is set.
// Diagnostics are returned in walk order.
func (r *Resolver) ResolveTable(ctx context.Context, linkSignatures bool) (*Resolutions, []model.Diagnostic) {
	res := &Resolutions{byDecl: make(map[*model.Declaration][]model.CrossReference)}
	var diags []model.Diagnostic

	r.table.Walk(func(d *model.Declaration) {
		var refs []model.CrossReference
		if d.Doc != nil {
			refs = append(refs, d.Doc.Refs...)
		}
		if linkSignatures {
			refs = append(refs, SignatureRefs(r.table, d)...)
		}
		if len(refs) == 0 {
			return
		}
		resolved, ds := r.ResolveAll(ctx, refs)
		res.byDecl[d] = resolved
		res.all = append(res.all, resolved...)
		diags = append(diags, ds...)
	})
	return res, diags
}
