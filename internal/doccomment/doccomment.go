// Package doccomment finds XML documentation comments in C# source and
// parses them into structured form.
package doccomment

import (
	"encoding/xml"
	"io"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/csdoc/internal/model"
	"github.com/phobologic/csdoc/internal/signature"
)

// Find returns the body of the documentation comment that ends on the line
// directly above row (0-based) together with the 0-based row it starts on.
// Both "///" runs and "/** */" blocks are recognised.
func Find(lines []string, row int) (string, int, bool) {
	i := row - 1
	if i < 0 || i >= len(lines) {
		return "", 0, false
	}
	last := strings.TrimSpace(lines[i])

	if isTripleSlash(last) {
		start := i
		for start > 0 && isTripleSlash(strings.TrimSpace(lines[start-1])) {
			start--
		}
		body := make([]string, 0, i-start+1)
		for _, l := range lines[start : i+1] {
			l = strings.TrimPrefix(strings.TrimSpace(l), "///")
			body = append(body, strings.TrimPrefix(l, " "))
		}
		return strings.Join(body, "\n"), start, true
	}

	if strings.HasSuffix(last, "*/") {
		start := i
		for ; start >= 0; start-- {
			if strings.Contains(lines[start], "/*") {
				break
			}
		}
		if start < 0 || !strings.Contains(lines[start], "/**") {
			return "", 0, false
		}
		block := strings.Join(lines[start:i+1], "\n")
		block = block[strings.Index(block, "/**")+3 : strings.LastIndex(block, "*/")]
		var body []string
		for _, l := range strings.Split(block, "\n") {
			l = strings.TrimSpace(l)
			l = strings.TrimPrefix(l, "*")
			body = append(body, strings.TrimPrefix(l, " "))
		}
		return strings.TrimSpace(strings.Join(body, "\n")), start, true
	}
	return "", 0, false
}

func isTripleSlash(l string) bool {
	return strings.HasPrefix(l, "///") && !strings.HasPrefix(l, "////")
}

// DisplayName returns the text shown for a cref: the target without its
// documentation ID prefix ("T:", "M:", ...).
func DisplayName(cref string) string {
	cref = strings.TrimSpace(cref)
	if len(cref) > 2 && cref[1] == ':' && cref[0] >= 'A' && cref[0] <= 'Z' {
		return cref[2:]
	}
	return cref
}

var sectionTags = map[string]bool{
	"summary":   true,
	"remarks":   true,
	"returns":   true,
	"value":     true,
	"example":   true,
	"param":     true,
	"typeparam": true,
	"exception": true,
	"seealso":   true,
}

type section struct {
	tag string
	key string
	buf strings.Builder
}

type frame struct {
	tag     string
	section bool
	mark    int
	display string
	suffix  string
}

type parser struct {
	doc   *model.DocComment
	loose strings.Builder
	cur   *section
	stack []frame
}

func (p *parser) out() *strings.Builder {
	if p.cur != nil {
		return &p.cur.buf
	}
	return &p.loose
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (p *parser) addRef(cref string) {
	p.doc.Refs = append(p.doc.Refs, model.CrossReference{Target: cref, Origin: model.FromDoc})
}

func (p *parser) start(e xml.StartElement) {
	tag := e.Name.Local
	if p.cur == nil && sectionTags[tag] {
		p.cur = &section{tag: tag}
		switch tag {
		case "param", "typeparam":
			p.cur.key = attr(e, "name")
		case "exception", "seealso":
			p.cur.key = attr(e, "cref")
			if p.cur.key != "" {
				p.addRef(p.cur.key)
			}
		}
		p.stack = append(p.stack, frame{tag: tag, section: true})
		return
	}

	w := p.out()
	f := frame{tag: tag, mark: w.Len()}
	switch tag {
	case "see", "seealso":
		if cref := attr(e, "cref"); cref != "" {
			p.addRef(cref)
			f.display = DisplayName(cref)
		} else if lw := attr(e, "langword"); lw != "" {
			f.display = lw
		} else {
			f.display = attr(e, "href")
		}
	case "paramref", "typeparamref":
		w.WriteString(attr(e, "name"))
	case "c":
		w.WriteString("`")
		f.suffix = "`"
	default:
		w.WriteString(" ")
		f.suffix = " "
	}
	p.stack = append(p.stack, f)
}

func (p *parser) end() {
	if len(p.stack) == 0 {
		return
	}
	f := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	if f.section {
		p.closeSection()
		return
	}
	w := p.out()
	if f.display != "" && w.Len() == f.mark {
		w.WriteString(f.display)
	}
	w.WriteString(f.suffix)
}

func (p *parser) closeSection() {
	s := p.cur
	if s == nil {
		return
	}
	p.cur = nil

	text := signature.CollapseWhitespace(s.buf.String())
	appendText := func(dst *string) {
		if *dst == "" {
			*dst = text
		} else if text != "" {
			*dst += " " + text
		}
	}
	switch s.tag {
	case "summary":
		appendText(&p.doc.Summary)
	case "remarks":
		appendText(&p.doc.Remarks)
	case "returns":
		appendText(&p.doc.Returns)
	case "value":
		appendText(&p.doc.Value)
	case "example":
		if ex := strings.TrimSpace(s.buf.String()); ex != "" {
			if p.doc.Example != "" {
				p.doc.Example += "\n"
			}
			p.doc.Example += ex
		}
	case "param":
		p.doc.Params = append(p.doc.Params, model.DocParam{Name: s.key, Text: text})
	case "typeparam":
		p.doc.TypeParams = append(p.doc.TypeParams, model.DocParam{Name: s.key, Text: text})
	case "exception":
		p.doc.Exceptions = append(p.doc.Exceptions, model.DocException{Cref: s.key, Text: text})
	case "seealso":
		if s.key != "" {
			p.doc.SeeAlso = append(p.doc.SeeAlso, s.key)
		}
	}
}

// Parse reads the body of a documentation comment. A malformed body still
// yields every section read before the error; the returned error then wraps
// model.ErrMalformedComment and the comment is flagged Malformed.
func Parse(body string) (*model.DocComment, error) {
	p := &parser{doc: &model.DocComment{}}

	d := xml.NewDecoder(strings.NewReader("<doc>" + body + "</doc>"))
	d.Strict = true
	d.Entity = xml.HTMLEntity

	var parseErr error
	depth := 0
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErr = err
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > 1 {
				p.start(t)
			}
		case xml.EndElement:
			if depth > 1 {
				p.end()
			}
			depth--
		case xml.CharData:
			if depth > 0 {
				p.out().Write(t)
			}
		}
	}

	// Keep whatever the open section had collected.
	p.closeSection()

	if p.doc.Summary == "" {
		p.doc.Summary = signature.CollapseWhitespace(p.loose.String())
	}

	if parseErr != nil {
		p.doc.Malformed = true
		return p.doc, errors.Errorf("%w: %s", model.ErrMalformedComment, parseErr.Error())
	}
	return p.doc, nil
}
