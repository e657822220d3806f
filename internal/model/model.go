// Package model defines core data structures for csdoc.
package model

import "fmt"

// DeclKind indicates the syntactic kind of a declaration.
type DeclKind string

const (
	Namespace   DeclKind = "namespace"
	Class       DeclKind = "class"
	Struct      DeclKind = "struct"
	Interface   DeclKind = "interface"
	Enum        DeclKind = "enum"
	Enumerator  DeclKind = "enumerator"
	Method      DeclKind = "method"
	Constructor DeclKind = "constructor"
	Property    DeclKind = "property"
	Field       DeclKind = "field"
	Event       DeclKind = "event"
	Delegate    DeclKind = "delegate"
	Indexer     DeclKind = "indexer"
)

// IsType reports whether declarations of this kind can hold members.
func (k DeclKind) IsType() bool {
	switch k {
	case Class, Struct, Interface, Enum:
		return true
	}
	return false
}

// IsCallable reports whether declarations of this kind take parameters and
// may therefore be overloaded.
func (k DeclKind) IsCallable() bool {
	switch k {
	case Method, Constructor, Delegate, Indexer:
		return true
	}
	return false
}

// ShapeKind tags the outermost shape of a type reference.
type ShapeKind string

const (
	Plain    ShapeKind = "plain"
	Nullable ShapeKind = "nullable"
	Array    ShapeKind = "array"
	Pointer  ShapeKind = "pointer"
)

// TypeShape is the tagged variant Plain | Nullable | Array(Depth) | Pointer.
// Depth is only meaningful for Array and counts bracket groups, so byte[][]
// has depth 2 and int[,] has depth 1.
type TypeShape struct {
	Kind  ShapeKind `json:"kind" yaml:"kind"`
	Depth int       `json:"depth,omitempty" yaml:"depth,omitempty"`
}

func (s TypeShape) String() string {
	if s.Kind == Array {
		return fmt.Sprintf("array(%d)", s.Depth)
	}
	if s.Kind == "" {
		return string(Plain)
	}
	return string(s.Kind)
}

// TypeRef is a type as written in a signature.
type TypeRef struct {
	Text     string    `json:"text" yaml:"text"`
	Name     string    `json:"name" yaml:"name"`
	Generics []TypeRef `json:"generics,omitempty" yaml:"generics,omitempty"`
	Shape    TypeShape `json:"shape" yaml:"shape"`
}

// Param is a single parameter of a callable declaration.
type Param struct {
	Name      string   `json:"name" yaml:"name"`
	Type      TypeRef  `json:"type" yaml:"type"`
	Default   string   `json:"default,omitempty" yaml:"default,omitempty"`
	Modifiers []string `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
}

// Location is a position in a source file. Line is 1-based.
type Location struct {
	File string `json:"file" yaml:"file"`
	Line int    `json:"line" yaml:"line"`
}

// Before orders locations by file, then line.
func (l Location) Before(o Location) bool {
	if l.File != o.File {
		return l.File < o.File
	}
	return l.Line < o.Line
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("line %d", l.Line)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// DocParam documents one parameter or type parameter.
type DocParam struct {
	Name string `json:"name" yaml:"name"`
	Text string `json:"text" yaml:"text"`
}

// DocException documents an exception a member may throw.
type DocException struct {
	Cref string `json:"cref" yaml:"cref"`
	Text string `json:"text" yaml:"text"`
}

// DocComment is the structured content of one documentation comment.
type DocComment struct {
	Summary    string           `json:"summary,omitempty" yaml:"summary,omitempty"`
	Remarks    string           `json:"remarks,omitempty" yaml:"remarks,omitempty"`
	Returns    string           `json:"returns,omitempty" yaml:"returns,omitempty"`
	Value      string           `json:"value,omitempty" yaml:"value,omitempty"`
	Example    string           `json:"example,omitempty" yaml:"example,omitempty"`
	Params     []DocParam       `json:"params,omitempty" yaml:"params,omitempty"`
	TypeParams []DocParam       `json:"typeparams,omitempty" yaml:"typeparams,omitempty"`
	Exceptions []DocException   `json:"exceptions,omitempty" yaml:"exceptions,omitempty"`
	SeeAlso    []string         `json:"seealso,omitempty" yaml:"seealso,omitempty"`
	Refs       []CrossReference `json:"refs,omitempty" yaml:"refs,omitempty"`
	Malformed  bool             `json:"malformed,omitempty" yaml:"malformed,omitempty"`
}

// Param returns the documentation text for the named parameter.
func (d *DocComment) Param(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, p := range d.Params {
		if p.Name == name {
			return p.Text, true
		}
	}
	return "", false
}

// IsEmpty reports whether the comment carries no content at all.
func (d *DocComment) IsEmpty() bool {
	return d == nil || (d.Summary == "" && d.Remarks == "" && d.Returns == "" &&
		d.Value == "" && d.Example == "" && len(d.Params) == 0 &&
		len(d.TypeParams) == 0 && len(d.Exceptions) == 0 && len(d.SeeAlso) == 0)
}

// Declaration is a named program entity. Partial fragments of the same type
// are separate Declarations until the symbol table merges them.
type Declaration struct {
	Name       string         `json:"name" yaml:"name"`
	FullName   string         `json:"fullname" yaml:"fullname"`
	Kind       DeclKind       `json:"kind" yaml:"kind"`
	Namespace  string         `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Parent     string         `json:"parent,omitempty" yaml:"parent,omitempty"`
	Modifiers  []string       `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	Attributes []string       `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Type       *TypeRef       `json:"type,omitempty" yaml:"type,omitempty"`
	Params     []Param        `json:"params,omitempty" yaml:"params,omitempty"`
	TypeParams []string       `json:"typeparams,omitempty" yaml:"typeparams,omitempty"`
	Bases      []TypeRef      `json:"bases,omitempty" yaml:"bases,omitempty"`
	Accessors  []string       `json:"accessors,omitempty" yaml:"accessors,omitempty"`
	Value      string         `json:"value,omitempty" yaml:"value,omitempty"`
	Doc        *DocComment    `json:"doc,omitempty" yaml:"doc,omitempty"`
	Members    []*Declaration `json:"members,omitempty" yaml:"members,omitempty"`
	Fragments  []Location     `json:"fragments,omitempty" yaml:"fragments,omitempty"`
	Location   Location       `json:"location" yaml:"location"`
}

// HasModifier reports whether m is among the declaration's modifiers.
func (d *Declaration) HasModifier(m string) bool {
	for _, x := range d.Modifiers {
		if x == m {
			return true
		}
	}
	return false
}

// RefState is the resolution state of a cross-reference. The zero value
// marks a reference that has not been through resolution yet.
type RefState string

const (
	Pending    RefState = ""
	Unresolved RefState = "unresolved"
	Resolved   RefState = "resolved"
	Ambiguous  RefState = "ambiguous"
	External   RefState = "external"
	Ignored    RefState = "ignored"
)

// RefOrigin records where a cross-reference token was found.
type RefOrigin string

const (
	FromDoc       RefOrigin = "doc"
	FromSignature RefOrigin = "signature"
)

// CrossReference is a reference token plus its resolution state.
type CrossReference struct {
	Target     string    `json:"target" yaml:"target"`
	Source     string    `json:"source" yaml:"source"`
	Origin     RefOrigin `json:"origin" yaml:"origin"`
	Location   Location  `json:"location" yaml:"location"`
	State      RefState  `json:"state" yaml:"state"`
	Resolved   string    `json:"resolved,omitempty" yaml:"resolved,omitempty"`
	URL        string    `json:"url,omitempty" yaml:"url,omitempty"`
	Candidates []string  `json:"candidates,omitempty" yaml:"candidates,omitempty"`
}

// Edge connects the declaration containing a reference to the declaration
// it resolved to.
type Edge struct {
	Source  string   `json:"source" yaml:"source"`
	Target  string   `json:"target" yaml:"target"`
	Symbols []string `json:"symbols" yaml:"symbols"`
}

// NodeParam is a rendered parameter.
type NodeParam struct {
	Name    string    `json:"name" yaml:"name"`
	Type    string    `json:"type" yaml:"type"`
	Shape   TypeShape `json:"shape" yaml:"shape"`
	Default string    `json:"default,omitempty" yaml:"default,omitempty"`
	Text    string    `json:"text,omitempty" yaml:"text,omitempty"`
}

// NodeRef is a rendered cross-reference.
type NodeRef struct {
	Target   string   `json:"target" yaml:"target"`
	State    RefState `json:"state" yaml:"state"`
	Resolved string   `json:"resolved,omitempty" yaml:"resolved,omitempty"`
	URL      string   `json:"url,omitempty" yaml:"url,omitempty"`
}

// Node is one rendered declaration.
type Node struct {
	Kind       DeclKind    `json:"kind" yaml:"kind"`
	Name       string      `json:"name" yaml:"name"`
	FullName   string      `json:"fullname" yaml:"fullname"`
	Signature  string      `json:"signature" yaml:"signature"`
	Attributes []string    `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Inherits   []string    `json:"inherits,omitempty" yaml:"inherits,omitempty"`
	Summary    string      `json:"summary,omitempty" yaml:"summary,omitempty"`
	Remarks    string      `json:"remarks,omitempty" yaml:"remarks,omitempty"`
	Returns    string      `json:"returns,omitempty" yaml:"returns,omitempty"`
	Params     []NodeParam `json:"params,omitempty" yaml:"params,omitempty"`
	Refs       []NodeRef   `json:"refs,omitempty" yaml:"refs,omitempty"`
	Members    []Node      `json:"members,omitempty" yaml:"members,omitempty"`
	Location   Location    `json:"location" yaml:"location"`
	Rank       float64     `json:"rank,omitempty" yaml:"rank,omitempty"`
}

// Document is the complete rendered output, ready for serialization.
type Document struct {
	Name        string       `json:"name" yaml:"name"`
	Files       []string     `json:"files" yaml:"files"`
	Nodes       []Node       `json:"nodes" yaml:"nodes"`
	Edges       []Edge       `json:"edges,omitempty" yaml:"edges,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}
