package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/csdoc/internal/config"
	"github.com/phobologic/csdoc/internal/model"
	"github.com/phobologic/csdoc/internal/render"
)

func fixtures(t *testing.T, names ...string) []Source {
	t.Helper()
	var out []Source
	for _, n := range names {
		data, err := os.ReadFile(filepath.Join("testdata", n))
		require.NoError(t, err)
		out = append(out, Source{Path: n, Data: data})
	}
	return out
}

func run(t *testing.T, cfg config.Config, sources []Source) *Result {
	t.Helper()
	res, err := New(cfg).RunSources(context.Background(), "test", sources)
	require.NoError(t, err)
	return res
}

func refsByState(doc *model.Document) map[model.RefState][]model.NodeRef {
	out := map[model.RefState][]model.NodeRef{}
	var walk func(nodes []model.Node)
	walk = func(nodes []model.Node) {
		for _, n := range nodes {
			for _, r := range n.Refs {
				out[r.State] = append(out[r.State], r)
			}
			walk(n.Members)
		}
	}
	walk(doc.Nodes)
	return out
}

func resolutionDiags(diags []model.Diagnostic) []model.Diagnostic {
	var out []model.Diagnostic
	for _, d := range diags {
		if d.Kind.IsResolution() {
			out = append(out, d)
		}
	}
	return out
}

func TestMutualReferences(t *testing.T) {
	t.Parallel()

	res := run(t, config.Default(), fixtures(t, "A.cs", "B.cs"))

	byState := refsByState(res.Document)
	resolved := byState[model.Resolved]
	require.Len(t, resolved, 2)
	targets := []string{resolved[0].Resolved, resolved[1].Resolved}
	assert.ElementsMatch(t, []string{"OtherNamespace.B", "MyNamespace.MyClass"}, targets)

	require.NotEmpty(t, byState[model.External])
	for _, r := range byState[model.External] {
		assert.Equal(t, "MonoBehaviour", r.Target)
		assert.NotEmpty(t, r.URL)
	}
	assert.Empty(t, resolutionDiags(res.Diagnostics))

	require.Len(t, res.Document.Nodes, 2)
	assert.Equal(t, "MyNamespace.MyClass", res.Document.Nodes[0].FullName)
	assert.Equal(t, "OtherNamespace.B", res.Document.Nodes[1].FullName)

	var pairs [][2]string
	for _, e := range res.Document.Edges {
		pairs = append(pairs, [2]string{e.Source, e.Target})
	}
	assert.Equal(t, [][2]string{
		{"MyNamespace.MyClass", "OtherNamespace.B"},
		{"OtherNamespace.B", "MyNamespace.MyClass"},
	}, pairs)
}

func TestNullableSignatureLinking(t *testing.T) {
	t.Parallel()

	res := run(t, config.Default(), fixtures(t, "Nullable.cs"))
	assert.Empty(t, resolutionDiags(res.Diagnostics))

	cfg := config.Default()
	cfg.LinkSignatureTypes = true
	res = run(t, cfg, fixtures(t, "Nullable.cs"))

	diags := resolutionDiags(res.Diagnostics)
	require.Len(t, diags, 1)
	assert.Equal(t, model.UnresolvedReference, diags[0].Kind)
	assert.Equal(t, "Bar?", diags[0].Target)
	assert.Equal(t, "OtherNamespace.NullableClass.NNullableInt", diags[0].Symbol)
	assert.ErrorIs(t, diags[0], model.ErrUnresolvedReference)
}

func TestAmbiguousReference(t *testing.T) {
	t.Parallel()

	src := []Source{
		{Path: "one.cs", Data: []byte("namespace N1 { public class Foo {} }\n")},
		{Path: "two.cs", Data: []byte("namespace N2 { public class Foo {} }\n")},
		{Path: "user.cs", Data: []byte(`namespace N3
{
    /// <summary>Uses <see cref="Foo"/>.</summary>
    public class User {}
}
`)},
	}
	res := run(t, config.Default(), src)

	diags := resolutionDiags(res.Diagnostics)
	require.Len(t, diags, 1)
	assert.Equal(t, model.AmbiguousReference, diags[0].Kind)
	assert.Equal(t, "N3.User", diags[0].Symbol)
	assert.Contains(t, diags[0].Message, "N1.Foo")
	assert.Contains(t, diags[0].Message, "N2.Foo")
}

func TestPartialMergeIsOrderIndependent(t *testing.T) {
	t.Parallel()

	partA := Source{Path: "a.cs", Data: []byte(`namespace N
{
    /// <summary>First half.</summary>
    public partial class P
    {
        /// <summary>Runs.</summary>
        public void Run() {}
    }
}
`)}
	partB := Source{Path: "b.cs", Data: []byte(`namespace N
{
    public partial class P : System.IDisposable
    {
        /// <summary>Stops.</summary>
        public void Stop() {}
    }
}
`)}

	ab := run(t, config.Default(), []Source{partA, partB})
	ba := run(t, config.Default(), []Source{partB, partA})

	assert.Equal(t, ab.Table.Names(), ba.Table.Names())
	require.Len(t, ab.Document.Nodes, 1)
	require.Len(t, ba.Document.Nodes, 1)

	p1, p2 := ab.Document.Nodes[0], ba.Document.Nodes[0]
	assert.Equal(t, "N.P", p1.FullName)
	assert.Equal(t, p1.Summary, p2.Summary)
	assert.Equal(t, "First half.", p1.Summary)
	assert.Equal(t, p1.Signature, p2.Signature)
	assert.ElementsMatch(t, memberNames(p1), memberNames(p2))
	assert.ElementsMatch(t, []string{"Run", "Stop"}, memberNames(p1))
}

func memberNames(n model.Node) []string {
	var out []string
	for _, m := range n.Members {
		out = append(out, m.Name)
	}
	return out
}

func TestRestartableIteration(t *testing.T) {
	t.Parallel()

	res := run(t, config.Default(), fixtures(t, "A.cs", "B.cs", "MultiDimensionalArray.cs"))

	first := slices.Collect(res.Renderer.Nodes())
	second := slices.Collect(res.Renderer.Nodes())
	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, res.Document.Nodes, first)

	var seen int
	for range res.Renderer.Nodes() {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestJobsProduceSameOutput(t *testing.T) {
	t.Parallel()

	srcs := fixtures(t, "A.cs", "B.cs", "MultiDimensionalArray.cs", "Nullable.cs")

	cfg := config.Default()
	cfg.LinkSignatureTypes = true
	serial := run(t, cfg, srcs)

	cfg.Jobs = 4
	parallel := run(t, cfg, srcs)

	assert.Equal(t, serial.Document, parallel.Document)
	assert.Equal(t, serial.Diagnostics, parallel.Diagnostics)

	var a, b bytes.Buffer
	require.NoError(t, render.Encode(&a, serial.Document, render.FormatRST))
	require.NoError(t, render.Encode(&b, parallel.Document, render.FormatRST))
	assert.Equal(t, a.String(), b.String())
}

func TestMalformedCommentKeepsContent(t *testing.T) {
	t.Parallel()

	src := []Source{{Path: "bad.cs", Data: []byte(`namespace N
{
    /// <summary>Start of text <see cref="Other"></summary>
    public class Broken {}

    /// <summary>Fine.</summary>
    public class Other {}
}
`)}}
	res := run(t, config.Default(), src)

	require.Equal(t, 1, model.CountKind(res.Diagnostics, model.MalformedComment))
	require.Len(t, res.Document.Nodes, 2)

	broken := res.Document.Nodes[0]
	assert.Equal(t, "N.Broken", broken.FullName)
	assert.Equal(t, "Start of text", broken.Summary)
	require.Len(t, broken.Refs, 1)
	assert.Equal(t, model.Resolved, broken.Refs[0].State)
	assert.Equal(t, "N.Other", broken.Refs[0].Resolved)
	assert.Equal(t, "Fine.", res.Document.Nodes[1].Summary)
}

func TestUnresolvedNullableReference(t *testing.T) {
	t.Parallel()

	src := []Source{{Path: "holder.cs", Data: []byte(`namespace N
{
    /// <summary>Holds things.</summary>
    public class Holder
    {
        /// <summary>See <see cref="Bar?"/>.</summary>
        public void Find() {}

        /// <summary>Counts things.</summary>
        public int Count() { return 0; }
    }
}
`)}}
	res := run(t, config.Default(), src)

	diags := resolutionDiags(res.Diagnostics)
	require.Len(t, diags, 1)
	assert.Equal(t, model.UnresolvedReference, diags[0].Kind)
	assert.Equal(t, "Bar?", diags[0].Target)
	assert.Equal(t, "N.Holder.Find", diags[0].Symbol)

	require.Len(t, res.Document.Nodes, 1)
	holder := res.Document.Nodes[0]
	assert.Equal(t, []string{"Find", "Count"}, memberNames(holder))

	find, count := holder.Members[0], holder.Members[1]
	assert.Equal(t, "See Bar?.", find.Summary)
	require.Len(t, find.Refs, 1)
	assert.Equal(t, model.Unresolved, find.Refs[0].State)
	assert.Equal(t, "Counts things.", count.Summary)
	assert.Empty(t, count.Refs)
}

func TestNoReferencesNoDiagnostics(t *testing.T) {
	t.Parallel()

	src := []Source{{Path: "plain.cs", Data: []byte(`namespace N
{
    /// <summary>Plain class.</summary>
    public class Plain
    {
        /// <summary>Counts.</summary>
        /// <param name="n">How many.</param>
        /// <returns>The count.</returns>
        public int Count(int n) { return n; }
    }
}
`)}}
	res := run(t, config.Default(), src)

	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Document.Nodes, 1)
	require.Len(t, res.Document.Nodes[0].Members, 1)
	count := res.Document.Nodes[0].Members[0]
	assert.Equal(t, "The count.", count.Returns)
	require.Len(t, count.Params, 1)
	assert.Equal(t, "How many.", count.Params[0].Text)
}

func TestRunReportsUnreadableFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "Good.cs")
	require.NoError(t, os.WriteFile(good, []byte("namespace N { /// <summary>Good.</summary>\npublic class Good {} }\n"), 0o644))
	missing := filepath.Join(dir, "Missing.cs")

	res, err := New(config.Default()).Run(context.Background(), "test", []string{good, missing})
	require.NoError(t, err)

	require.Equal(t, 1, model.CountKind(res.Diagnostics, model.UnreadableSource))
	require.Len(t, res.Document.Nodes, 1)
	assert.Equal(t, "N.Good", res.Document.Nodes[0].FullName)
}

func TestRunSkipsLargeFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	small := filepath.Join(dir, "Small.cs")
	big := filepath.Join(dir, "Big.cs")
	require.NoError(t, os.WriteFile(small, []byte("namespace N { public class Small {} }\n"), 0o644))
	require.NoError(t, os.WriteFile(big, bytes.Repeat([]byte("// padding\n"), 100), 0o644))

	cfg := config.Default()
	cfg.MaxFileSize = 200
	res, err := New(cfg).Run(context.Background(), "test", []string{dir})
	require.NoError(t, err)

	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Document.Nodes, 1)
	assert.Equal(t, "N.Small", res.Document.Nodes[0].FullName)
}

func TestRunNoSources(t *testing.T) {
	t.Parallel()

	_, err := New(config.Default()).Run(context.Background(), "test", []string{t.TempDir()})
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestFilters(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.LinkSignatureTypes = true
	all := run(t, cfg, fixtures(t, "A.cs", "B.cs"))

	cfg.FilterFile = "B.cs"
	res := run(t, cfg, fixtures(t, "A.cs", "B.cs"))

	require.Len(t, res.Document.Nodes, 1)
	assert.Equal(t, "OtherNamespace.B", res.Document.Nodes[0].FullName)
	assert.Equal(t, []string{"B.cs"}, res.Document.Files)
	// The result keeps every diagnostic; only the document is filtered.
	assert.Equal(t, all.Diagnostics, res.Diagnostics)

	cfg = config.Default()
	cfg.MaxTypes = 1
	res = run(t, cfg, fixtures(t, "A.cs", "B.cs", "MultiDimensionalArray.cs"))
	assert.Len(t, res.Document.Nodes, 1)
}

func TestDebugParseDump(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg := config.Default()
	cfg.DebugParse = true
	cfg.NoColor = true
	_, err := New(cfg, WithDebugOutput(&buf)).RunSources(context.Background(), "test", fixtures(t, "Nullable.cs"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "NullableClass")
	assert.Contains(t, buf.String(), "FooBar")
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "X.cs")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.Equal(t, "stdin", DisplayName(nil))
	assert.Equal(t, filepath.Base(dir), DisplayName([]string{dir}))
	assert.Equal(t, filepath.Base(dir), DisplayName([]string{file}))
}
