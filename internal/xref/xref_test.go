package xref

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/csdoc/internal/extref"
	"github.com/phobologic/csdoc/internal/model"
	"github.com/phobologic/csdoc/internal/symtab"
)

func decl(kind model.DeclKind, ns, parent, name string, line int) *model.Declaration {
	full := name
	switch {
	case parent != "":
		full = parent + "." + name
	case ns != "":
		full = ns + "." + name
	}
	loc := model.Location{File: "x.cs", Line: line}
	return &model.Declaration{
		Name:      name,
		FullName:  full,
		Kind:      kind,
		Namespace: ns,
		Parent:    parent,
		Location:  loc,
		Fragments: []model.Location{loc},
	}
}

func ref(source, target string) model.CrossReference {
	return model.CrossReference{
		Target:   target,
		Source:   source,
		Origin:   model.FromDoc,
		Location: model.Location{File: "x.cs", Line: 1},
	}
}

func build(t *testing.T, decls ...*model.Declaration) *symtab.Table {
	t.Helper()
	table, diags := symtab.Build(decls)
	require.Empty(t, diags)
	return table
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"MyClass", "MyClass"},
		{"T:System.String", "System.String"},
		{"M:Foo.Bar(System.Int32)", "Foo.Bar"},
		{"Foo.Bar(int, string)", "Foo.Bar"},
		{"List{T}", "List"},
		{"List<T>", "List"},
		{"Dictionary<string, List<int>>", "Dictionary"},
		{"System.Collections.Generic.List`1", "System.Collections.Generic.List"},
		{"Bar?", "Bar"},
		{"byte[][]", "byte"},
		{"GameObject*", "GameObject"},
		{"global::N.C", "N.C"},
		{"  N.C  ", "N.C"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func partialPair() *symtab.Table {
	a := decl(model.Class, "MyNamespace", "", "MyClass", 10)
	a.Doc = &model.DocComment{Refs: []model.CrossReference{ref("MyNamespace.MyClass", "OtherNamespace.B")}}
	b := decl(model.Class, "OtherNamespace", "", "B", 8)
	b.Location.File = "y.cs"
	b.Fragments = []model.Location{b.Location}
	b.Doc = &model.DocComment{Refs: []model.CrossReference{ref("OtherNamespace.B", "MyNamespace.MyClass")}}
	table, _ := symtab.Build([]*model.Declaration{a, b})
	return table
}

func TestResolveExactBothDirections(t *testing.T) {
	t.Parallel()

	r := New(partialPair())
	res, diags := r.ResolveTable(context.Background(), false)
	assert.Empty(t, diags)

	all := res.All()
	require.Len(t, all, 2)
	for _, x := range all {
		assert.Equal(t, model.Resolved, x.State)
	}
	assert.Equal(t, "OtherNamespace.B", all[0].Resolved)
	assert.Equal(t, "MyNamespace.MyClass", all[1].Resolved)
}

func TestResolveDeterministic(t *testing.T) {
	t.Parallel()

	r := New(partialPair())
	in := ref("MyNamespace.MyClass", "T:OtherNamespace.B")
	first, d1 := r.Resolve(context.Background(), in)
	second, d2 := r.Resolve(context.Background(), in)
	assert.Nil(t, d1)
	assert.Nil(t, d2)
	assert.Equal(t, first, second)
	assert.Equal(t, model.Pending, in.State)
}

func TestResolveScopeChain(t *testing.T) {
	t.Parallel()

	table := build(t,
		decl(model.Class, "N", "", "C", 1),
		decl(model.Method, "N", "N.C", "Run", 2),
		decl(model.Class, "N", "N.C", "Helper", 3),
		decl(model.Class, "M", "", "Helper", 4),
	)
	out, d := New(table).Resolve(context.Background(), ref("N.C.Run", "Helper"))
	assert.Nil(t, d)
	assert.Equal(t, model.Resolved, out.State)
	assert.Equal(t, "N.C.Helper", out.Resolved)
}

func TestResolveNamespaceUnique(t *testing.T) {
	t.Parallel()

	table := build(t,
		decl(model.Class, "N1", "", "Outer", 1),
		decl(model.Class, "N1", "N1.Outer", "Foo", 2),
		decl(model.Class, "N1", "", "Bar", 3),
		decl(model.Class, "N2", "", "Foo", 4),
	)
	out, d := New(table).Resolve(context.Background(), ref("N1.Bar", "Foo"))
	assert.Nil(t, d)
	assert.Equal(t, "N1.Outer.Foo", out.Resolved)
}

func TestResolveGlobalUnique(t *testing.T) {
	t.Parallel()

	table := build(t,
		decl(model.Class, "N1", "", "Bar", 1),
		decl(model.Class, "N2", "", "Foo", 2),
	)
	out, d := New(table).Resolve(context.Background(), ref("N1.Bar", "Foo"))
	assert.Nil(t, d)
	assert.Equal(t, model.Resolved, out.State)
	assert.Equal(t, "N2.Foo", out.Resolved)
}

func TestResolveAmbiguous(t *testing.T) {
	t.Parallel()

	table := build(t,
		decl(model.Class, "N3", "", "X", 1),
		decl(model.Class, "N2", "", "Foo", 2),
		decl(model.Class, "N1", "", "Foo", 3),
	)
	out, d := New(table).Resolve(context.Background(), ref("N3.X", "Foo"))
	require.NotNil(t, d)
	assert.Equal(t, model.AmbiguousReference, d.Kind)
	assert.ErrorIs(t, *d, model.ErrAmbiguousReference)
	assert.Equal(t, model.Ambiguous, out.State)
	assert.Equal(t, []string{"N1.Foo", "N2.Foo"}, out.Candidates)
	assert.Empty(t, out.Resolved)
}

func TestResolveUnresolved(t *testing.T) {
	t.Parallel()

	table := build(t, decl(model.Class, "N", "", "C", 1))
	for _, target := range []string{"Bar?", "Missing", "N.Missing", ""} {
		out, d := New(table).Resolve(context.Background(), ref("N.C", target))
		require.NotNil(t, d, target)
		assert.Equal(t, model.UnresolvedReference, d.Kind)
		assert.Equal(t, model.Error, d.Severity)
		assert.Equal(t, target, d.Target)
		assert.Equal(t, "N.C", d.Symbol)
		assert.Equal(t, model.Unresolved, out.State)
	}
}

func TestResolveWithLinker(t *testing.T) {
	t.Parallel()

	table := build(t, decl(model.Class, "N", "", "C", 1))
	r := New(table, WithLinker(extref.NewLinker(extref.Defaults())))
	ctx := context.Background()

	out, d := r.Resolve(ctx, ref("N.C", "MonoBehaviour"))
	assert.Nil(t, d)
	assert.Equal(t, model.External, out.State)
	assert.Equal(t, "MonoBehaviour", out.Resolved)
	assert.Equal(t, "https://docs.unity3d.com/ScriptReference/MonoBehaviour.html", out.URL)

	out, d = r.Resolve(ctx, ref("N.C", "int"))
	assert.Nil(t, d)
	assert.Equal(t, model.Ignored, out.State)

	out, d = r.Resolve(ctx, ref("N.C", "Bar?"))
	require.NotNil(t, d)
	assert.Equal(t, model.Unresolved, out.State)
}

func TestLocalDeclarationBeatsExternal(t *testing.T) {
	t.Parallel()

	table := build(t,
		decl(model.Class, "Game", "", "MonoBehaviour", 1),
		decl(model.Class, "Game", "", "Player", 2),
	)
	r := New(table, WithLinker(extref.NewLinker(extref.Defaults())))
	out, d := r.Resolve(context.Background(), ref("Game.Player", "MonoBehaviour"))
	assert.Nil(t, d)
	assert.Equal(t, model.Resolved, out.State)
	assert.Equal(t, "Game.MonoBehaviour", out.Resolved)
}

func TestResolveLeavesSettledReferences(t *testing.T) {
	t.Parallel()

	table := build(t, decl(model.Class, "N", "", "C", 1))
	in := ref("N.C", "Elsewhere")
	in.State = model.Resolved
	in.Resolved = "Other.Elsewhere"

	out, d := New(table).Resolve(context.Background(), in)
	assert.Nil(t, d)
	assert.Equal(t, in, out)
}

func TestSignatureRefs(t *testing.T) {
	t.Parallel()

	g := decl(model.Class, "N", "", "G", 1)
	g.TypeParams = []string{"U"}
	get := decl(model.Method, "N", "N.G", "Get", 2)
	get.TypeParams = []string{"T"}
	get.Type = &model.TypeRef{Text: "T", Name: "T"}
	get.Params = []model.Param{
		{Name: "items", Type: model.TypeRef{Text: "List<T>", Name: "List", Generics: []model.TypeRef{{Text: "T", Name: "T"}}}},
		{Name: "other", Type: model.TypeRef{Text: "List<T>", Name: "List", Generics: []model.TypeRef{{Text: "T", Name: "T"}}}},
		{Name: "pair", Type: model.TypeRef{Text: "Tuple<B, B>", Name: "Tuple", Generics: []model.TypeRef{{Text: "B", Name: "B"}, {Text: "B", Name: "B"}}}},
	}
	value := decl(model.Field, "N", "N.G", "value", 3)
	value.Type = &model.TypeRef{Text: "U", Name: "U"}

	table := build(t, g, get, value)

	m, ok := table.Lookup("N.G.Get")
	require.True(t, ok)
	refs := SignatureRefs(table, m)
	var targets []string
	for _, r := range refs {
		targets = append(targets, r.Target)
		assert.Equal(t, model.FromSignature, r.Origin)
		assert.Equal(t, "N.G.Get", r.Source)
	}
	assert.Equal(t, []string{"List<T>", "Tuple<B, B>", "B"}, targets)

	f, ok := table.Lookup("N.G.value")
	require.True(t, ok)
	assert.Empty(t, SignatureRefs(table, f))
}

func nullableTable(t *testing.T) *symtab.Table {
	t.Helper()
	cls := decl(model.Class, "OtherNamespace", "", "NullableClass", 1)
	prop := decl(model.Property, "OtherNamespace", "OtherNamespace.NullableClass", "BNullableBool", 3)
	prop.Type = &model.TypeRef{Text: "bool?", Name: "bool", Shape: model.TypeShape{Kind: model.Nullable}}
	bar := decl(model.Property, "OtherNamespace", "OtherNamespace.NullableClass", "NNullableInt", 5)
	bar.Type = &model.TypeRef{Text: "Bar?", Name: "Bar", Shape: model.TypeShape{Kind: model.Nullable}}
	fn := decl(model.Method, "OtherNamespace", "OtherNamespace.NullableClass", "FooBar", 7)
	fn.Type = &model.TypeRef{Text: "int?", Name: "int", Shape: model.TypeShape{Kind: model.Nullable}}
	fn.Params = []model.Param{{Name: "bValue", Type: model.TypeRef{Text: "bool?", Name: "bool", Shape: model.TypeShape{Kind: model.Nullable}}}}
	return build(t, cls, prop, bar, fn)
}

func TestResolveTableSignatureLinking(t *testing.T) {
	t.Parallel()

	r := New(nullableTable(t), WithLinker(extref.NewLinker(extref.Defaults())))

	res, diags := r.ResolveTable(context.Background(), false)
	assert.Empty(t, diags)
	assert.Empty(t, res.All())

	res, diags = r.ResolveTable(context.Background(), true)
	require.Len(t, diags, 1)
	assert.Equal(t, model.UnresolvedReference, diags[0].Kind)
	assert.Equal(t, "Bar?", diags[0].Target)
	assert.Equal(t, "OtherNamespace.NullableClass.NNullableInt", diags[0].Symbol)

	bar, _ := r.table.Lookup("OtherNamespace.NullableClass.NNullableInt")
	got := res.For(bar)
	require.Len(t, got, 1)
	assert.Equal(t, model.Unresolved, got[0].State)
}

func TestResolutionsNil(t *testing.T) {
	t.Parallel()

	var res *Resolutions
	assert.Nil(t, res.All())
	assert.Nil(t, res.For(&model.Declaration{}))
}
