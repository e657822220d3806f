package doccomment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/csdoc/internal/model"
)

func TestFindTripleSlash(t *testing.T) {
	t.Parallel()

	src := `namespace N
{
    /// <summary>
    /// Called every frame.
    /// </summary>
    public void Update() { }
}`
	lines := strings.Split(src, "\n")
	body, start, ok := Find(lines, 5)
	require.True(t, ok)
	assert.Equal(t, 2, start)
	assert.Equal(t, "<summary>\nCalled every frame.\n</summary>", body)
}

func TestFindBlock(t *testing.T) {
	t.Parallel()

	src := `/**
 * <summary>Block style.</summary>
 */
class C { }`
	lines := strings.Split(src, "\n")
	body, start, ok := Find(lines, 3)
	require.True(t, ok)
	assert.Equal(t, 0, start)
	assert.Equal(t, "<summary>Block style.</summary>", body)
}

func TestFindNone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		row  int
	}{
		{"first line", "class C { }", 0},
		{"plain comment", "// not docs\nclass C { }", 1},
		{"quad slash", "//// not docs\nclass C { }", 1},
		{"blank line between", "/// <summary>x</summary>\n\nclass C { }", 2},
		{"plain block", "/* not docs */\nclass C { }", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, ok := Find(strings.Split(tt.src, "\n"), tt.row)
			assert.False(t, ok)
		})
	}
}

func TestParseSections(t *testing.T) {
	t.Parallel()

	body := `<summary>
Shows all user data for this kit.
</summary>
<param name="out_indices">
An array of all user data indices set on this kit.
</param>
<param name="out_data">
An array of all user data set on this kit.
</param>
<typeparam name="T">Element type.</typeparam>
<returns> true if there is user data on this kit, false otherwise. </returns>
<remarks>Uses <paramref name="out_data"/> and <c>null</c>.</remarks>
<exception cref="T:System.ArgumentException">Bad input.</exception>
<value>The value.</value>`

	doc, err := Parse(body)
	require.NoError(t, err)
	assert.False(t, doc.Malformed)
	assert.Equal(t, "Shows all user data for this kit.", doc.Summary)
	assert.Equal(t, "true if there is user data on this kit, false otherwise.", doc.Returns)
	assert.Equal(t, "Uses out_data and `null`.", doc.Remarks)
	assert.Equal(t, "The value.", doc.Value)
	require.Len(t, doc.Params, 2)
	assert.Equal(t, "out_indices", doc.Params[0].Name)
	assert.Equal(t, "An array of all user data set on this kit.", doc.Params[1].Text)
	assert.Equal(t, []model.DocParam{{Name: "T", Text: "Element type."}}, doc.TypeParams)
	assert.Equal(t, []model.DocException{{Cref: "T:System.ArgumentException", Text: "Bad input."}}, doc.Exceptions)

	require.Len(t, doc.Refs, 1)
	assert.Equal(t, "T:System.ArgumentException", doc.Refs[0].Target)
	assert.Equal(t, model.FromDoc, doc.Refs[0].Origin)
	assert.Equal(t, model.Pending, doc.Refs[0].State)
}

func TestParseSeeReferences(t *testing.T) {
	t.Parallel()

	body := `<summary>
Create a behaviour for the <see cref="MonoBehaviour"/> component.
Returns <see langword="null"/> or <see cref="T:Foo.Bar">the bar</see>.
</summary>
<remarks>See also <see cref="OtherNamespace.B"/>.</remarks>
<seealso cref="Foo.Baz"/>`

	doc, err := Parse(body)
	require.NoError(t, err)
	assert.Equal(t, "Create a behaviour for the MonoBehaviour component. Returns null or the bar.", doc.Summary)
	assert.Equal(t, "See also OtherNamespace.B.", doc.Remarks)
	assert.Equal(t, []string{"Foo.Baz"}, doc.SeeAlso)

	var targets []string
	for _, r := range doc.Refs {
		targets = append(targets, r.Target)
	}
	assert.Equal(t, []string{"MonoBehaviour", "T:Foo.Bar", "OtherNamespace.B", "Foo.Baz"}, targets)
}

func TestParseLooseText(t *testing.T) {
	t.Parallel()

	doc, err := Parse("Just a sentence\nover two lines.")
	require.NoError(t, err)
	assert.Equal(t, "Just a sentence over two lines.", doc.Summary)
}

func TestParseMalformedKeepsPartial(t *testing.T) {
	t.Parallel()

	body := `<summary>Start of text <see cref="Foo"></summary>
<remarks>never reached</remarks>`

	doc, err := Parse(body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMalformedComment))
	require.NotNil(t, doc)
	assert.True(t, doc.Malformed)
	assert.Equal(t, "Start of text", doc.Summary)
	assert.Empty(t, doc.Remarks)
	require.Len(t, doc.Refs, 1)
	assert.Equal(t, "Foo", doc.Refs[0].Target)
}

func TestParseMissingCloseTag(t *testing.T) {
	t.Parallel()

	doc, err := Parse("<summary>Unterminated summary")
	require.Error(t, err)
	assert.True(t, doc.Malformed)
	assert.Equal(t, "Unterminated summary", doc.Summary)
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "System.String", DisplayName("T:System.String"))
	assert.Equal(t, "Foo.Bar(int)", DisplayName("M:Foo.Bar(int)"))
	assert.Equal(t, "Bar?", DisplayName("Bar?"))
}
