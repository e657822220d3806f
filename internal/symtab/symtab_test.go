package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/csdoc/internal/model"
)

func decl(kind model.DeclKind, ns, parent, name, file string, line int, mods ...string) *model.Declaration {
	full := name
	switch {
	case parent != "":
		full = parent + "." + name
	case ns != "":
		full = ns + "." + name
	}
	loc := model.Location{File: file, Line: line}
	return &model.Declaration{
		Name:      name,
		FullName:  full,
		Kind:      kind,
		Namespace: ns,
		Parent:    parent,
		Modifiers: mods,
		Location:  loc,
		Fragments: []model.Location{loc},
	}
}

func memberNames(d *model.Declaration) []string {
	var names []string
	for _, m := range d.Members {
		names = append(names, m.Name)
	}
	return names
}

func partialFixture() []*model.Declaration {
	a := decl(model.Class, "N", "", "C", "a.cs", 3, "public", "partial")
	a.Doc = &model.DocComment{Summary: "From A.", Refs: []model.CrossReference{{Target: "X", Source: "N.C"}}}
	b := decl(model.Class, "N", "", "C", "b.cs", 5, "public", "partial", "unsafe")
	b.Doc = &model.DocComment{Summary: "From B.", Remarks: "Only in B.", Refs: []model.CrossReference{{Target: "Y", Source: "N.C"}}}
	return []*model.Declaration{
		a,
		decl(model.Method, "N", "N.C", "Run", "a.cs", 6),
		decl(model.Field, "N", "N.C", "count", "a.cs", 8),
		b,
		decl(model.Property, "N", "N.C", "Size", "b.cs", 7),
		decl(model.Method, "N", "N.C", "Stop", "b.cs", 9),
	}
}

func TestBuildMergesPartials(t *testing.T) {
	t.Parallel()

	table, diags := Build(partialFixture())
	assert.Empty(t, diags)

	c, ok := table.Lookup("N.C")
	require.True(t, ok)
	assert.Equal(t, []string{"Run", "count", "Size", "Stop"}, memberNames(c))
	assert.Equal(t, []string{"public", "partial", "unsafe"}, c.Modifiers)
	assert.Len(t, c.Fragments, 2)
	assert.Equal(t, "From A.", c.Doc.Summary)
	assert.Equal(t, "Only in B.", c.Doc.Remarks)
	assert.Len(t, c.Doc.Refs, 2)

	require.Len(t, table.Roots(), 1)
	assert.True(t, table.Has("N.C.Stop"))
	assert.True(t, table.IsNamespace("N"))
}

func TestBuildMergesPartialAttributes(t *testing.T) {
	t.Parallel()

	decls := partialFixture()
	decls[0].Attributes = []string{"Serializable"}
	decls[3].Attributes = []string{"Serializable", `Obsolete("Use D")`}

	table, diags := Build(decls)
	assert.Empty(t, diags)

	c, ok := table.Lookup("N.C")
	require.True(t, ok)
	assert.Equal(t, []string{"Serializable", `Obsolete("Use D")`}, c.Attributes)
	assert.Equal(t, []string{"Serializable"}, decls[0].Attributes)
}

func TestBuildOrderIndependent(t *testing.T) {
	t.Parallel()

	fwd := partialFixture()
	rev := make([]*model.Declaration, len(fwd))
	for i, d := range fwd {
		rev[len(fwd)-1-i] = d
	}

	t1, d1 := Build(fwd)
	t2, d2 := Build(rev)
	assert.Equal(t, d1, d2)

	c1, _ := t1.Lookup("N.C")
	c2, _ := t2.Lookup("N.C")
	assert.Equal(t, memberNames(c1), memberNames(c2))
	assert.Equal(t, c1.Doc, c2.Doc)
	assert.Equal(t, c1.Modifiers, c2.Modifiers)
	assert.Equal(t, t1.Names(), t2.Names())
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := partialFixture()
	Build(in)
	assert.Empty(t, in[0].Members)
	assert.Len(t, in[0].Fragments, 1)
	assert.Len(t, in[0].Doc.Refs, 1)
}

func TestBuildDuplicateMember(t *testing.T) {
	t.Parallel()

	decls := []*model.Declaration{
		decl(model.Class, "N", "", "C", "b.cs", 1, "partial"),
		decl(model.Field, "N", "N.C", "value", "b.cs", 4),
		decl(model.Class, "N", "", "C", "a.cs", 1, "partial"),
		decl(model.Property, "N", "N.C", "value", "a.cs", 3),
	}

	table, diags := Build(decls)
	require.Len(t, diags, 1)
	assert.Equal(t, model.DuplicateMemberDefinition, diags[0].Kind)
	assert.Equal(t, model.Warning, diags[0].Severity)
	assert.Equal(t, model.Location{File: "b.cs", Line: 4}, diags[0].Location)

	// The earliest location wins regardless of input order.
	v, ok := table.Lookup("N.C.value")
	require.True(t, ok)
	assert.Equal(t, model.Property, v.Kind)
	c, _ := table.Lookup("N.C")
	assert.Len(t, c.Members, 1)
}

func TestBuildOverloads(t *testing.T) {
	t.Parallel()

	one := decl(model.Method, "N", "N.C", "Run", "a.cs", 3)
	one.Params = []model.Param{{Name: "x", Type: model.TypeRef{Text: "int", Name: "int"}}}
	two := decl(model.Method, "N", "N.C", "Run", "a.cs", 4)
	two.Params = []model.Param{{Name: "s", Type: model.TypeRef{Text: "string", Name: "string"}}}

	table, diags := Build([]*model.Declaration{
		decl(model.Class, "N", "", "C", "a.cs", 1),
		one,
		two,
	})
	assert.Empty(t, diags)
	assert.Len(t, table.Overloads("N.C.Run"), 2)
	assert.Equal(t, []string{"N.C.Run"}, table.ByName("Run"))

	first, _ := table.Lookup("N.C.Run")
	assert.Equal(t, 3, first.Location.Line)
}

func TestBuildNonPartialDuplicateType(t *testing.T) {
	t.Parallel()

	_, diags := Build([]*model.Declaration{
		decl(model.Class, "N", "", "C", "a.cs", 1),
		decl(model.Class, "N", "", "C", "b.cs", 1),
	})
	require.Len(t, diags, 1)
	assert.Equal(t, model.DuplicateMemberDefinition, diags[0].Kind)
}

func TestBuildNonPartialDuplicateKeepsFirst(t *testing.T) {
	t.Parallel()

	decls := []*model.Declaration{
		decl(model.Class, "N", "", "C", "a.cs", 1),
		decl(model.Method, "N", "N.C", "A", "a.cs", 2),
		decl(model.Class, "N", "", "C", "b.cs", 1),
		decl(model.Method, "N", "N.C", "B", "b.cs", 2),
		decl(model.Class, "N", "N.C", "Inner", "b.cs", 3),
		decl(model.Field, "N", "N.C.Inner", "x", "b.cs", 4),
	}
	reversed := make([]*model.Declaration, len(decls))
	for i, d := range decls {
		reversed[len(decls)-1-i] = d
	}

	for _, input := range [][]*model.Declaration{decls, reversed} {
		table, diags := Build(input)
		require.Len(t, diags, 1)
		assert.Equal(t, model.DuplicateMemberDefinition, diags[0].Kind)
		assert.Equal(t, "b.cs", diags[0].Location.File)

		c, ok := table.Lookup("N.C")
		require.True(t, ok)
		assert.Equal(t, []string{"A"}, memberNames(c))
		assert.Equal(t, []model.Location{{File: "a.cs", Line: 1}}, c.Fragments)
		assert.False(t, table.Has("N.C.B"))
		assert.False(t, table.Has("N.C.Inner"))
		assert.False(t, table.Has("N.C.Inner.x"))
		assert.Len(t, table.Roots(), 1)
	}
}

func TestBuildNamespaceLevelDuplicate(t *testing.T) {
	t.Parallel()

	table, diags := Build([]*model.Declaration{
		decl(model.Delegate, "N", "", "Handler", "a.cs", 3),
		decl(model.Delegate, "N", "", "Handler", "b.cs", 3),
		decl(model.Delegate, "M", "", "Handler", "b.cs", 9),
	})
	require.Len(t, diags, 1)
	assert.Equal(t, model.DuplicateMemberDefinition, diags[0].Kind)
	assert.Equal(t, "N.Handler", diags[0].Symbol)
	assert.Equal(t, "b.cs", diags[0].Location.File)

	assert.Len(t, table.Overloads("N.Handler"), 1)
	assert.Len(t, table.Roots(), 2)
}

func TestNamespacesAndMatch(t *testing.T) {
	t.Parallel()

	table, _ := Build([]*model.Declaration{
		decl(model.Class, "A.B", "", "Widget", "w.cs", 1),
		decl(model.Class, "X", "", "Widget", "x.cs", 1),
		decl(model.Class, "X", "", "Gadget", "x.cs", 5),
	})

	assert.True(t, table.IsNamespace("A"))
	assert.True(t, table.IsNamespace("A.B"))
	assert.False(t, table.IsNamespace("B"))
	assert.Equal(t, []string{"A.B.Widget", "X.Widget"}, table.Match("Widget"))
	assert.Equal(t, []string{"A.B.Widget"}, table.Match("B.Widget"))
	assert.Equal(t, []string{"X.Gadget"}, table.Match("Gadget"))
	assert.Empty(t, table.Match("idget"))

	var roots []string
	for _, r := range table.Roots() {
		roots = append(roots, r.FullName)
	}
	assert.Equal(t, []string{"A.B.Widget", "X.Widget", "X.Gadget"}, roots)
}

func TestWalkVisitsNested(t *testing.T) {
	t.Parallel()

	table, _ := Build([]*model.Declaration{
		decl(model.Class, "N", "", "Outer", "a.cs", 1),
		decl(model.Enum, "N", "N.Outer", "Colour", "a.cs", 2),
		decl(model.Enumerator, "N", "N.Outer.Colour", "Red", "a.cs", 3),
		decl(model.Method, "N", "N.Outer", "Run", "a.cs", 5),
	})

	var seen []string
	table.Walk(func(d *model.Declaration) { seen = append(seen, d.FullName) })
	assert.Equal(t, []string{"N.Outer", "N.Outer.Colour", "N.Outer.Colour.Red", "N.Outer.Run"}, seen)
}
