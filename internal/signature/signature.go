// Package signature parses the textual parts of C# declarations: modifier
// lists, type references with their shape, and parameter lists.
package signature

import (
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/csdoc/internal/model"
)

// ErrInvalid is returned for text that cannot be read as the requested form.
var ErrInvalid = errors.Base("invalid signature")

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	typeNameRe   = regexp.MustCompile(`^(?:global::)?@?[\p{L}_][\p{L}\p{N}_]*(?:\s*\.\s*@?[\p{L}_][\p{L}\p{N}_]*)*$`)
	identRe      = regexp.MustCompile(`^@?[\p{L}_][\p{L}\p{N}_]*$`)
	rankRe       = regexp.MustCompile(`\[[\s,]*\]$`)
	ranksRe      = regexp.MustCompile(`(?:\[[\s,]*\]\s*)+$`)
)

// Modifiers lists declaration modifier keywords.
var Modifiers = map[string]struct{}{
	"public": {}, "private": {}, "internal": {}, "protected": {},
	"abstract": {}, "async": {}, "const": {}, "delegate": {},
	"extern": {}, "new": {}, "override": {}, "partial": {},
	"readonly": {}, "sealed": {}, "static": {}, "unsafe": {},
	"virtual": {}, "volatile": {}, "ref": {}, "required": {},
	"file": {}, "fixed": {},
}

// ParamModifiers lists parameter modifier keywords.
var ParamModifiers = map[string]struct{}{
	"this": {}, "ref": {}, "in": {}, "out": {}, "params": {},
	"scoped": {}, "readonly": {},
}

// declKeywords introduce a declaration and are not part of its type.
var declKeywords = map[string]struct{}{
	"class": {}, "struct": {}, "interface": {}, "enum": {},
	"event": {}, "record": {},
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// SplitList splits a comma separated list whilst respecting brackets, so
//
//	String arg0, int arg2 = 1, List<int> arg3 = [1, 2, 3]
//
// becomes three entries.
func SplitList(s string) []string {
	var (
		result  []string
		current strings.Builder
		level   int
	)
	for _, r := range s {
		switch r {
		case '<', '{', '[', '(':
			level++
		case '>', '}', ']', ')':
			level--
		}
		if r == ',' && level <= 0 {
			result = append(result, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if last := strings.TrimSpace(current.String()); last != "" {
		result = append(result, last)
	}
	return result
}

// splitTop splits s on whitespace that is not enclosed in brackets.
func splitTop(s string) []string {
	var (
		fields  []string
		current strings.Builder
		level   int
	)
	flush := func() {
		if current.Len() > 0 {
			fields = append(fields, current.String())
			current.Reset()
		}
	}
	for _, r := range s {
		switch r {
		case '<', '{', '[', '(':
			level++
		case '>', '}', ']', ')':
			level--
		}
		if level <= 0 && (r == ' ' || r == '\t' || r == '\n' || r == '\r') {
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()
	return joinSuffixes(fields)
}

// joinSuffixes glues shape suffixes written with a space ("int []", "Foo *")
// and generic argument lists ("List <int>") back onto their type.
func joinSuffixes(fields []string) []string {
	var out []string
	for _, f := range fields {
		if len(out) > 0 && (strings.HasPrefix(f, "[") || strings.HasPrefix(f, "<") ||
			f == "*" || f == "?" || f == "&") {
			out[len(out)-1] += f
			continue
		}
		out = append(out, f)
	}
	return out
}

// topIndex returns the index of the first r in s outside brackets, or -1.
func topIndex(s string, r rune) int {
	level := 0
	for i, c := range s {
		if c == r && level == 0 {
			return i
		}
		switch c {
		case '<', '{', '[', '(':
			level++
		case '>', '}', ']', ')':
			level--
		}
	}
	return -1
}

// SplitModifiers removes leading modifier keywords from a header and returns
// them along with the remaining fields.
func SplitModifiers(header string, keywords map[string]struct{}) ([]string, []string) {
	fields := splitTop(CollapseWhitespace(header))
	var mods []string
	i := 0
	for ; i < len(fields); i++ {
		if _, ok := keywords[fields[i]]; !ok {
			break
		}
		mods = append(mods, fields[i])
	}
	return mods, fields[i:]
}

// ParseHeader reads the text of a declaration that precedes its name, e.g.
// "public static Tuple<A, B>" for a method or "public unsafe partial class"
// for a type. It returns the modifiers and the declared type text, which is
// empty for types and constructors.
func ParseHeader(header string) ([]string, string) {
	mods, rest := SplitModifiers(header, Modifiers)
	var typ []string
	for _, f := range rest {
		if _, ok := declKeywords[f]; ok {
			continue
		}
		if _, ok := Modifiers[f]; ok {
			mods = append(mods, f)
			continue
		}
		typ = append(typ, f)
	}
	// An explicit interface specifier ("void IFoo.Bar") leaves "IFoo." behind.
	if n := len(typ); n > 1 && strings.HasSuffix(typ[n-1], ".") {
		typ = typ[:n-1]
	}
	return mods, strings.Join(typ, " ")
}

// ParseType parses a type reference such as "Tuple<MyClass, MyClass>",
// "byte[][]", "bool?" or "GameObject*".
func ParseType(s string) (model.TypeRef, error) {
	text := CollapseWhitespace(s)
	if text == "" {
		return model.TypeRef{}, errors.WithMessage(ErrInvalid, "empty type")
	}
	ref := model.TypeRef{Text: text, Shape: model.TypeShape{Kind: model.Plain}}

	base := text
	switch {
	case strings.HasSuffix(base, "?"):
		ref.Shape = model.TypeShape{Kind: model.Nullable}
		base = strings.TrimSpace(strings.TrimSuffix(base, "?"))
	case strings.HasSuffix(base, "*"), strings.HasSuffix(base, "&"):
		ref.Shape = model.TypeShape{Kind: model.Pointer}
		base = strings.TrimSpace(base[:len(base)-1])
	case rankRe.MatchString(base):
		depth := 0
		for rankRe.MatchString(base) {
			base = strings.TrimSpace(rankRe.ReplaceAllString(base, ""))
			depth++
		}
		ref.Shape = model.TypeShape{Kind: model.Array, Depth: depth}
		// Element types may carry their own suffix (int?[]); the outer shape wins.
		base = strings.TrimSpace(strings.TrimRight(base, "?*"))
	}

	if strings.HasPrefix(base, "(") && strings.HasSuffix(base, ")") {
		// Tuple type: keep the text, parse the elements as generics.
		ref.Name = base
		for _, el := range SplitList(base[1 : len(base)-1]) {
			fields := splitTop(el)
			if len(fields) == 0 {
				continue
			}
			inner, err := ParseType(fields[0])
			if err != nil {
				return ref, err
			}
			ref.Generics = append(ref.Generics, inner)
		}
		return ref, nil
	}

	if lt := topIndex(base, '<'); lt >= 0 {
		if !strings.HasSuffix(base, ">") {
			return ref, errors.WithMessagef(ErrInvalid, "unbalanced generic arguments in %q", text)
		}
		for _, arg := range SplitList(base[lt+1 : len(base)-1]) {
			inner, err := ParseType(arg)
			if err != nil {
				return ref, err
			}
			ref.Generics = append(ref.Generics, inner)
		}
		base = strings.TrimSpace(base[:lt])
	}

	if !typeNameRe.MatchString(base) {
		return ref, errors.WithMessagef(ErrInvalid, "type %q", text)
	}
	ref.Name = strings.ReplaceAll(base, " ", "")
	return ref, nil
}

// ParseParam parses a parameter of the form "modifier* type name (= default)?".
func ParseParam(s string) (model.Param, error) {
	text := CollapseWhitespace(s)
	// Leading attributes such as [In] or [CallerMemberName].
	for strings.HasPrefix(text, "[") {
		end := closing(text, 0)
		if end < 0 {
			break
		}
		text = strings.TrimSpace(text[end+1:])
	}

	var p model.Param
	if eq := topIndex(text, '='); eq >= 0 {
		p.Default = strings.TrimSpace(text[eq+1:])
		text = strings.TrimSpace(text[:eq])
	}

	mods, rest := SplitModifiers(text, ParamModifiers)
	p.Modifiers = mods
	if len(rest) < 2 {
		return p, errors.WithMessagef(ErrInvalid, "parameter %q", s)
	}
	name := rest[len(rest)-1]
	if !identRe.MatchString(name) {
		return p, errors.WithMessagef(ErrInvalid, "parameter name %q", name)
	}
	typ, err := ParseType(strings.Join(rest[:len(rest)-1], " "))
	if err != nil {
		return p, err
	}
	p.Name = name
	p.Type = typ
	return p, nil
}

// ParseParams parses a parameter list. The surrounding parentheses or
// brackets are optional. Parameters that fail to parse are skipped and the
// first error is returned alongside the rest.
func ParseParams(list string) ([]model.Param, error) {
	text := strings.TrimSpace(list)
	if len(text) >= 2 && (text[0] == '(' || text[0] == '[') {
		text = text[1 : len(text)-1]
	}
	var (
		params   []model.Param
		firstErr error
	)
	for _, part := range SplitList(text) {
		p, err := ParseParam(part)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		params = append(params, p)
	}
	return params, firstErr
}

// ParseTypeParams parses "<T, U>" into its parameter names, dropping
// variance keywords.
func ParseTypeParams(s string) []string {
	text := strings.TrimSpace(s)
	if !strings.HasPrefix(text, "<") || !strings.HasSuffix(text, ">") {
		return nil
	}
	var names []string
	for _, part := range SplitList(text[1 : len(text)-1]) {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		names = append(names, fields[len(fields)-1])
	}
	return names
}

// closing returns the index of the bracket that closes the one at open.
func closing(s string, open int) int {
	level := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '<', '{', '[', '(':
			level++
		case '>', '}', ']', ')':
			level--
			if level == 0 {
				return i
			}
		}
	}
	return -1
}

// ShortenType drops the longest matching namespace prefix, so
// "System.Collections.Generic.List" becomes "List".
func ShortenType(typ string, prefixes []string) string {
	offset := 0
	for _, prefix := range prefixes {
		if strings.HasPrefix(typ, prefix) && len(prefix) > offset {
			offset = len(prefix)
		}
	}
	if offset < len(typ) && typ[offset] == '.' {
		offset++
	}
	return typ[offset:]
}

// FormatType renders a type reference with shortened names.
func FormatType(t model.TypeRef, prefixes []string) string {
	if t.Name == "" {
		return t.Text
	}
	var b strings.Builder
	if strings.HasPrefix(t.Name, "(") {
		b.WriteString(t.Name)
	} else {
		b.WriteString(ShortenType(t.Name, prefixes))
		if len(t.Generics) > 0 {
			b.WriteByte('<')
			for i, g := range t.Generics {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(FormatType(g, prefixes))
			}
			b.WriteByte('>')
		}
	}
	switch t.Shape.Kind {
	case model.Nullable:
		b.WriteByte('?')
	case model.Pointer:
		b.WriteByte('*')
	case model.Array:
		ranks := ranksRe.FindString(t.Text)
		if strings.HasSuffix(strings.TrimSpace(strings.TrimSuffix(t.Text, ranks)), "?") {
			b.WriteByte('?')
		}
		b.WriteString(strings.ReplaceAll(ranks, " ", ""))
	}
	return b.String()
}

// FormatParam renders a parameter as "modifier* type name (= default)?".
func FormatParam(p model.Param, prefixes []string) string {
	var parts []string
	parts = append(parts, p.Modifiers...)
	parts = append(parts, FormatType(p.Type, prefixes), p.Name)
	s := strings.Join(parts, " ")
	if p.Default != "" {
		s += " = " + p.Default
	}
	return s
}
