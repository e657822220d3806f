// Package parse extracts documented declarations from C# source files using
// tree-sitter.
package parse

import (
	"context"
	"slices"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/csdoc/internal/doccomment"
	"github.com/phobologic/csdoc/internal/lang"
	"github.com/phobologic/csdoc/internal/model"
	"github.com/phobologic/csdoc/internal/signature"
)

var captureMap = map[string]model.DeclKind{
	"definition.class":       model.Class,
	"definition.struct":      model.Struct,
	"definition.interface":   model.Interface,
	"definition.enum":        model.Enum,
	"definition.enumerator":  model.Enumerator,
	"definition.method":      model.Method,
	"definition.constructor": model.Constructor,
	"definition.property":    model.Property,
	"definition.indexer":     model.Indexer,
	"definition.field":       model.Field,
	"definition.event":       model.Event,
	"definition.delegate":    model.Delegate,
}

// IndexerName is the member name given to indexers.
const IndexerName = "this[]"

// Result holds everything extracted from one file.
type Result struct {
	Path         string
	Declarations []*model.Declaration
	Diagnostics  []model.Diagnostic
}

type extractor struct {
	l      *lang.Language
	source []byte
	lines  []string
	path   string
	result *Result
}

type positioned struct {
	start uint32
	decl  *model.Declaration
}

// ExtractDeclarations parses a source file and returns its declarations in
// source order, each with its documentation comment attached. The parser must
// be created for the correct language. filePath is used only for locations.
func ExtractDeclarations(
	ctx context.Context,
	l *lang.Language,
	parser *sitter.Parser,
	query *sitter.Query,
	source []byte,
	filePath string,
) *Result {
	res := &Result{Path: filePath}
	if len(source) == 0 {
		return res
	}

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil || tree == nil {
		return res
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	ex := &extractor{
		l:      l,
		source: source,
		lines:  strings.Split(string(source), "\n"),
		path:   filePath,
		result: res,
	}

	var found []positioned
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)
		for _, c := range match.Captures {
			kind, ok := captureMap[query.CaptureNameForId(c.Index)]
			if !ok {
				continue
			}
			for _, d := range ex.declarations(c.Node, kind) {
				found = append(found, positioned{start: c.Node.StartByte(), decl: d})
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })
	for _, p := range found {
		res.Declarations = append(res.Declarations, p.decl)
	}
	return res
}

func (ex *extractor) text(node *sitter.Node) string {
	return lang.NodeText(node, ex.source)
}

func (ex *extractor) warn(kind model.DiagKind, line int, symbol, format string, args ...any) {
	d := model.NewDiagnostic(kind, model.Location{File: ex.path, Line: line}, format, args...)
	d.Symbol = symbol
	ex.result.Diagnostics = append(ex.result.Diagnostics, d)
}

// contentStart returns the offset just past the leading attribute lists.
func contentStart(node *sitter.Node) uint32 {
	start := node.StartByte()
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "attribute_list" {
			break
		}
		start = child.EndByte()
	}
	return start
}

// attributes returns each attribute of the leading attribute lists as
// written, prefixed with its target when one is given.
func (ex *extractor) attributes(node *sitter.Node) []string {
	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		list := node.Child(i)
		if list.Type() != "attribute_list" {
			break
		}
		target := ""
		for j := 0; j < int(list.NamedChildCount()); j++ {
			c := list.NamedChild(j)
			switch c.Type() {
			case "attribute_target_specifier":
				target = signature.CollapseWhitespace(ex.text(c)) + " "
			case "attribute":
				out = append(out, target+signature.CollapseWhitespace(ex.text(c)))
			}
		}
	}
	return out
}

// docFor parses the comment above node. symbol names the declaration for
// diagnostics.
func (ex *extractor) docFor(node *sitter.Node, symbol string) *model.DocComment {
	body, start, ok := doccomment.Find(ex.lines, int(node.StartPoint().Row))
	if !ok {
		return nil
	}
	doc, err := doccomment.Parse(body)
	if err != nil {
		ex.warn(model.MalformedComment, start+1, symbol, "%s", err.Error())
	}
	return doc
}

func fullName(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ".")
}

func (ex *extractor) declarations(node *sitter.Node, kind model.DeclKind) []*model.Declaration {
	ns, types := ex.l.EnclosingScopes(node, ex.source)
	parent := ""
	if len(types) > 0 {
		parent = fullName(append([]string{ns}, types...)...)
	}

	newDecl := func(name string, line int) *model.Declaration {
		d := &model.Declaration{
			Name:      name,
			Kind:      kind,
			Namespace: ns,
			Parent:    parent,
			Location:  model.Location{File: ex.path, Line: line},
		}
		if parent != "" {
			d.FullName = parent + "." + name
		} else {
			d.FullName = fullName(ns, name)
		}
		d.Fragments = []model.Location{d.Location}
		return d
	}

	if kind == model.Field || (kind == model.Event && node.Type() == "event_field_declaration") {
		return ex.fieldDeclarations(node, newDecl)
	}

	var nameNode *sitter.Node
	name := ""
	if kind == model.Indexer {
		nameNode = lang.ChildOfType(node, "this", "bracketed_parameter_list")
		name = IndexerName
	} else {
		nameNode = ex.l.NameNode(node)
		if nameNode != nil {
			name = ex.text(nameNode)
		}
	}
	if nameNode == nil || name == "" {
		return nil
	}

	d := newDecl(name, int(nameNode.StartPoint().Row)+1)
	d.Attributes = ex.attributes(node)
	header := string(ex.source[contentStart(node):nameNode.StartByte()])

	switch {
	case kind.IsType():
		d.Modifiers, _ = signature.ParseHeader(header)
		if tp := lang.ChildOfType(node, "type_parameter_list"); tp != nil {
			d.TypeParams = signature.ParseTypeParams(ex.text(tp))
		}
		if bl := lang.ChildOfType(node, "base_list"); bl != nil {
			list := strings.TrimPrefix(strings.TrimSpace(ex.text(bl)), ":")
			for _, b := range signature.SplitList(list) {
				ref, err := signature.ParseType(b)
				if err != nil {
					ex.warn(model.InvalidSignature, d.Location.Line, d.FullName, "base type of %s: %s", d.FullName, err.Error())
					continue
				}
				d.Bases = append(d.Bases, ref)
			}
		}

	case kind == model.Enumerator:
		rest := strings.TrimSpace(string(ex.source[nameNode.EndByte():node.EndByte()]))
		if v, ok := strings.CutPrefix(rest, "="); ok {
			d.Value = signature.CollapseWhitespace(v)
		}

	default:
		mods, typ := signature.ParseHeader(header)
		d.Modifiers = mods
		if kind != model.Constructor && typ != "" {
			ref, err := signature.ParseType(typ)
			if err != nil {
				ex.warn(model.InvalidSignature, d.Location.Line, d.FullName, "type of %s: %s", d.FullName, err.Error())
			} else {
				d.Type = &ref
			}
		}
		if tp := lang.ChildOfType(node, "type_parameter_list"); tp != nil {
			d.TypeParams = signature.ParseTypeParams(ex.text(tp))
		}
		if pl := lang.ChildOfType(node, "parameter_list", "bracketed_parameter_list"); pl != nil {
			params, err := signature.ParseParams(ex.text(pl))
			if err != nil {
				ex.warn(model.InvalidSignature, d.Location.Line, d.FullName, "parameters of %s: %s", d.FullName, err.Error())
			}
			d.Params = params
		}
		if kind == model.Property || kind == model.Indexer {
			d.Accessors = ex.accessors(node)
		}
	}

	d.Doc = ex.docFor(node, d.FullName)
	attachRefs(d)
	return []*model.Declaration{d}
}

// fieldDeclarations handles field and event field declarations, which may
// declare several variables sharing one type and one comment.
func (ex *extractor) fieldDeclarations(
	node *sitter.Node,
	newDecl func(string, int) *model.Declaration,
) []*model.Declaration {
	vd := lang.ChildOfType(node, "variable_declaration")
	if vd == nil {
		return nil
	}
	var declarators []*sitter.Node
	for i := 0; i < int(vd.ChildCount()); i++ {
		if c := vd.Child(i); c.Type() == "variable_declarator" {
			declarators = append(declarators, c)
		}
	}
	if len(declarators) == 0 {
		return nil
	}

	header := string(ex.source[contentStart(node):declarators[0].StartByte()])
	mods, typ := signature.ParseHeader(header)
	attrs := ex.attributes(node)

	var (
		out []*model.Declaration
		doc *model.DocComment
	)
	for i, v := range declarators {
		nameNode := v.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = lang.ChildOfType(v, "identifier")
		}
		if nameNode == nil {
			continue
		}
		d := newDecl(ex.text(nameNode), int(nameNode.StartPoint().Row)+1)
		d.Modifiers = mods
		d.Attributes = slices.Clone(attrs)
		if typ != "" {
			ref, err := signature.ParseType(typ)
			if err != nil {
				ex.warn(model.InvalidSignature, d.Location.Line, d.FullName, "type of %s: %s", d.FullName, err.Error())
			} else {
				d.Type = &ref
			}
		}
		rest := strings.TrimSpace(string(ex.source[nameNode.EndByte():v.EndByte()]))
		if val, ok := strings.CutPrefix(rest, "="); ok {
			d.Value = signature.CollapseWhitespace(val)
		}

		if i == 0 {
			doc = ex.docFor(node, d.FullName)
		}
		if doc != nil {
			c := *doc
			c.Refs = append([]model.CrossReference(nil), doc.Refs...)
			d.Doc = &c
		}
		attachRefs(d)
		out = append(out, d)
	}
	return out
}

var accessorKeywords = map[string]bool{"get": true, "set": true, "init": true, "add": true, "remove": true}

func (ex *extractor) accessors(node *sitter.Node) []string {
	list := lang.ChildOfType(node, "accessor_list")
	if list == nil {
		if lang.ChildOfType(node, "arrow_expression_clause") != nil {
			return []string{"get"}
		}
		return nil
	}
	var out []string
	for i := 0; i < int(list.ChildCount()); i++ {
		acc := list.Child(i)
		if acc.Type() != "accessor_declaration" {
			continue
		}
		for _, f := range strings.FieldsFunc(ex.text(acc), func(r rune) bool {
			return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ';' || r == '{' || r == '=' || r == ']'
		}) {
			if accessorKeywords[f] {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// attachRefs stamps the references of d's comment with their source.
func attachRefs(d *model.Declaration) {
	if d.Doc == nil {
		return
	}
	for i := range d.Doc.Refs {
		d.Doc.Refs[i].Source = d.FullName
		d.Doc.Refs[i].Location = d.Location
	}
}
