package model

import (
	"fmt"
	"sort"

	"gitlab.com/tozd/go/errors"
)

// Sentinel errors, one per diagnostic kind. A Diagnostic unwraps to its
// kind's sentinel so callers can match with errors.Is.
var (
	ErrMalformedComment          = errors.Base("malformed comment")
	ErrAmbiguousReference        = errors.Base("ambiguous reference")
	ErrUnresolvedReference       = errors.Base("unresolved reference")
	ErrDuplicateMemberDefinition = errors.Base("duplicate member definition")
	ErrInvalidSignature          = errors.Base("invalid signature")
	ErrUnreadableSource          = errors.Base("unreadable source")
	ErrBrokenExternalLink        = errors.Base("broken external link")
)

// DiagKind names a reported, non-fatal condition.
type DiagKind string

const (
	MalformedComment          DiagKind = "MalformedComment"
	AmbiguousReference        DiagKind = "AmbiguousReference"
	UnresolvedReference       DiagKind = "UnresolvedReference"
	DuplicateMemberDefinition DiagKind = "DuplicateMemberDefinition"
	InvalidSignature          DiagKind = "InvalidSignature"
	UnreadableSource          DiagKind = "UnreadableSource"
	BrokenExternalLink        DiagKind = "BrokenExternalLink"
)

var kindErrors = map[DiagKind]error{
	MalformedComment:          ErrMalformedComment,
	AmbiguousReference:        ErrAmbiguousReference,
	UnresolvedReference:       ErrUnresolvedReference,
	DuplicateMemberDefinition: ErrDuplicateMemberDefinition,
	InvalidSignature:          ErrInvalidSignature,
	UnreadableSource:          ErrUnreadableSource,
	BrokenExternalLink:        ErrBrokenExternalLink,
}

// Severity grades a diagnostic.
type Severity string

const (
	Warning Severity = "warning"
	Error   Severity = "error"
)

// IsResolution reports whether the kind is a cross-reference failure.
func (k DiagKind) IsResolution() bool {
	return k == AmbiguousReference || k == UnresolvedReference
}

// Severity returns the default severity for the kind. Resolution failures
// are errors, everything else is a warning. No severity aborts a run.
func (k DiagKind) Severity() Severity {
	if k.IsResolution() {
		return Error
	}
	return Warning
}

// Diagnostic is a non-fatal condition reported during processing.
type Diagnostic struct {
	Kind     DiagKind `json:"kind" yaml:"kind"`
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Location Location `json:"location" yaml:"location"`
	Symbol   string   `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Target   string   `json:"target,omitempty" yaml:"target,omitempty"`
}

// NewDiagnostic builds a diagnostic with the kind's default severity.
func NewDiagnostic(kind DiagKind, loc Location, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Severity: kind.Severity(),
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	}
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Location, d.Kind, d.Message)
}

// Unwrap returns the sentinel error for the diagnostic's kind.
func (d Diagnostic) Unwrap() error {
	return kindErrors[d.Kind]
}

// SortDiagnostics orders diagnostics by location, then kind, then message.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Location != b.Location {
			return a.Location.Before(b.Location)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Message < b.Message
	})
}

// CountKind returns how many diagnostics have the given kind.
func CountKind(diags []Diagnostic, kind DiagKind) int {
	n := 0
	for _, d := range diags {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
