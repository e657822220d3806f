package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
)

func init() {
	Languages["csharp"] = &Language{
		Name:            "csharp",
		Extensions:      []string{".cs"},
		lang:            csharp.GetLanguage(),
		NameNode:        csharpNameNode,
		EnclosingScopes: csharpEnclosingScopes,
	}
}

var csharpTypeNodes = map[string]bool{
	"class_declaration":         true,
	"struct_declaration":        true,
	"interface_declaration":     true,
	"enum_declaration":          true,
	"record_declaration":        true,
	"record_struct_declaration": true,
}

// Nodes that follow the name of a declaration. The identifier just before
// the first of these is the name when the grammar has no name field.
var csharpAfterName = map[string]bool{
	"type_parameter_list":          true,
	"parameter_list":               true,
	"bracketed_parameter_list":     true,
	"accessor_list":                true,
	"arrow_expression_clause":      true,
	"base_list":                    true,
	"declaration_list":             true,
	"enum_member_declaration_list": true,
	"equals_value_clause":          true,
	"=":                            true,
	";":                            true,
	"{":                            true,
}

func csharpNameNode(node *sitter.Node) *sitter.Node {
	if n := node.ChildByFieldName("name"); n != nil {
		return n
	}
	var last *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if csharpAfterName[child.Type()] {
			break
		}
		if child.Type() == "identifier" {
			last = child
		}
	}
	if last != nil {
		return last
	}
	return ChildOfType(node, "identifier")
}

func csharpScopeName(node *sitter.Node, source []byte) string {
	n := node.ChildByFieldName("name")
	if n == nil {
		n = ChildOfType(node, "qualified_name", "identifier")
	}
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(NodeText(n, source)), "")
}

func csharpEnclosingScopes(node *sitter.Node, source []byte) (string, []string) {
	var (
		namespaces []string
		types      []string
		fileScoped bool
	)
	var root *sitter.Node
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		root = cur
		switch t := cur.Type(); {
		case csharpTypeNodes[t]:
			if name := csharpNameNode(cur); name != nil {
				types = append([]string{NodeText(name, source)}, types...)
			}
		case t == "namespace_declaration":
			namespaces = append([]string{csharpScopeName(cur, source)}, namespaces...)
		case t == "file_scoped_namespace_declaration":
			namespaces = append([]string{csharpScopeName(cur, source)}, namespaces...)
			fileScoped = true
		}
	}

	// Older grammars leave the declarations after "namespace X;" as siblings
	// of the namespace node rather than children.
	if !fileScoped && root != nil {
		for i := 0; i < int(root.ChildCount()); i++ {
			child := root.Child(i)
			if child.Type() == "file_scoped_namespace_declaration" && child.StartByte() < node.StartByte() {
				namespaces = append([]string{csharpScopeName(child, source)}, namespaces...)
				break
			}
		}
	}
	return strings.Join(namespaces, "."), types
}
