package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/csdoc/internal/model"
	"github.com/phobologic/csdoc/internal/toon"
)

// Output formats.
const (
	FormatTOON = "toon"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatRST  = "rst"
)

// Formats lists the supported output formats.
var Formats = []string{FormatTOON, FormatJSON, FormatYAML, FormatRST}

// ErrUnknownFormat is returned by Encode for an unsupported format.
var ErrUnknownFormat = errors.Base("unknown output format")

// Encode writes doc to w in the given format.
func Encode(w io.Writer, doc *model.Document, format string) error {
	switch format {
	case FormatTOON, "":
		_, err := fmt.Fprintln(w, toon.Encode(doc))
		return errors.WithStack(err)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.WithMessage(enc.Encode(doc), "encoding json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return errors.WithMessage(err, "encoding yaml")
		}
		return errors.WithMessage(enc.Close(), "encoding yaml")
	case FormatRST:
		_, err := io.WriteString(w, RST(doc))
		return errors.WithStack(err)
	}
	return errors.Errorf("%w: %q", ErrUnknownFormat, format)
}

var rstDirectives = map[model.DeclKind]string{
	model.Class:       "class",
	model.Struct:      "struct",
	model.Interface:   "interface",
	model.Enum:        "enum",
	model.Enumerator:  "enumerator",
	model.Method:      "function",
	model.Constructor: "function",
	model.Delegate:    "function",
	model.Property:    "property",
	model.Field:       "var",
	model.Event:       "event",
	model.Indexer:     "indexer",
}

// RST renders doc as reStructuredText using the Sphinx C# domain directives.
func RST(doc *model.Document) string {
	var b strings.Builder
	ns := ""
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if cur := namespaceOf(n); cur != ns {
			ns = cur
			if ns != "" {
				fmt.Fprintf(&b, ".. cs:namespace:: %s\n\n", ns)
			}
		}
		writeRST(&b, n, "")
	}
	return b.String()
}

func namespaceOf(n *model.Node) string {
	if ns, ok := strings.CutSuffix(n.FullName, "."+n.Name); ok {
		return ns
	}
	return ""
}

func writeRST(b *strings.Builder, n *model.Node, indent string) {
	directive, ok := rstDirectives[n.Kind]
	if !ok {
		directive = "member"
	}
	fmt.Fprintf(b, "%s.. cs:%s:: %s\n\n", indent, directive, n.Signature)

	body := indent + "   "
	for _, base := range n.Inherits {
		fmt.Fprintf(b, "%s.. cs:inherits:: %s\n\n", body, base)
	}
	for _, a := range n.Attributes {
		fmt.Fprintf(b, "%s.. cs:attribute:: %s\n\n", body, rstAttribute(a))
	}
	for _, text := range []string{n.Summary, n.Remarks} {
		if text != "" {
			fmt.Fprintf(b, "%s%s\n\n", body, text)
		}
	}

	var fields []string
	for _, p := range n.Params {
		fields = append(fields, fmt.Sprintf(":param %s: %s", p.Name, p.Text))
		if p.Type != "" {
			fields = append(fields, fmt.Sprintf(":type %s: %s", p.Name, p.Type))
		}
	}
	if n.Returns != "" {
		fields = append(fields, ":returns: "+n.Returns)
	}
	for _, f := range fields {
		fmt.Fprintf(b, "%s%s\n", body, strings.TrimRight(f, " "))
	}
	if len(fields) > 0 {
		b.WriteString("\n")
	}

	var refs []string
	for _, r := range n.Refs {
		if role := rstRef(r); role != "" {
			refs = append(refs, role)
		}
	}
	if len(refs) > 0 {
		fmt.Fprintf(b, "%s.. seealso:: %s\n\n", body, strings.Join(refs, ", "))
	}

	for i := range n.Members {
		writeRST(b, &n.Members[i], body)
	}
}

// rstAttribute separates the name from the arguments, as the attribute
// directive expects.
func rstAttribute(a string) string {
	if name, args, ok := strings.Cut(a, "("); ok {
		return strings.TrimSpace(name) + " (" + args
	}
	return a
}

func rstRef(r model.NodeRef) string {
	switch r.State {
	case model.Resolved:
		return fmt.Sprintf(":cs:type:`%s`", r.Resolved)
	case model.External:
		return fmt.Sprintf("`%s <%s>`_", r.Resolved, r.URL)
	case model.Ignored:
		return ""
	}
	return fmt.Sprintf("``%s``", r.Target)
}
