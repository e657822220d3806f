// Package toon implements TOON (Token-Oriented Object Notation) encoding of
// rendered documents.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/csdoc/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a Document into TOON format. Nested declarations are
// flattened into one table keyed by their enclosing declaration.
func Encode(doc *model.Document) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("name: %s", encodeValue(doc.Name)))
	parts = append(parts, formatList("files", doc.Files))

	var (
		declRows  [][]string
		paramRows [][]string
		refRows   [][]string
	)
	var walk func(parent string, n *model.Node)
	walk = func(parent string, n *model.Node) {
		rank := ""
		if n.Rank > 0 {
			rank = fmt.Sprintf("%.4f", n.Rank)
		}
		declRows = append(declRows, []string{
			n.FullName,
			string(n.Kind),
			parent,
			n.Location.File,
			strconv.Itoa(n.Location.Line),
			rank,
			n.Signature,
			n.Summary,
		})
		for _, p := range n.Params {
			paramRows = append(paramRows, []string{
				n.FullName,
				p.Name,
				p.Type,
				p.Shape.String(),
				p.Default,
				p.Text,
			})
		}
		for _, r := range n.Refs {
			refRows = append(refRows, []string{
				n.FullName,
				r.Target,
				string(r.State),
				r.Resolved,
				r.URL,
			})
		}
		for i := range n.Members {
			walk(n.FullName, &n.Members[i])
		}
	}
	for i := range doc.Nodes {
		walk("", &doc.Nodes[i])
	}

	parts = append(parts, formatTabular("declarations",
		[]string{"name", "kind", "parent", "file", "line", "rank", "signature", "summary"}, declRows))
	parts = append(parts, formatTabular("params",
		[]string{"symbol", "name", "type", "shape", "default", "text"}, paramRows))
	parts = append(parts, formatTabular("refs",
		[]string{"symbol", "target", "state", "resolved", "url"}, refRows))

	var edgeRows [][]string
	for i := range doc.Edges {
		e := &doc.Edges[i]
		edgeRows = append(edgeRows, []string{
			e.Source,
			e.Target,
			strings.Join(e.Symbols, " "),
		})
	}
	parts = append(parts, formatTabular("edges", []string{"source", "target", "symbols"}, edgeRows))

	if len(doc.Diagnostics) > 0 {
		var diagRows [][]string
		for i := range doc.Diagnostics {
			d := &doc.Diagnostics[i]
			diagRows = append(diagRows, []string{
				string(d.Kind),
				string(d.Severity),
				d.Location.File,
				strconv.Itoa(d.Location.Line),
				d.Symbol,
				d.Message,
			})
		}
		parts = append(parts, formatTabular("diagnostics",
			[]string{"kind", "severity", "file", "line", "symbol", "message"}, diagRows))
	}

	return strings.Join(parts, "\n")
}

func formatList(name string, values []string) string {
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = encodeValue(v)
	}
	if len(encoded) == 0 {
		return fmt.Sprintf("%s[0]:", name)
	}
	return fmt.Sprintf("%s[%d]: %s", name, len(values), strings.Join(encoded, ","))
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	switch {
	case value == "":
		return `""`
	case value != strings.TrimSpace(value),
		strings.ContainsAny(value, "\n\r\t"):
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}
	if looksNumeric.MatchString(value) {
		return value
	}
	if needsQuoting.MatchString(value) || strings.HasPrefix(value, "-") {
		return quote(value)
	}
	return value
}

func quote(value string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return `"` + r.Replace(value) + `"`
}
