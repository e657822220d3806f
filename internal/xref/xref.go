// Package xref resolves cross-references found in documentation comments and
// signatures against a symbol table.
package xref

import (
	"context"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/phobologic/csdoc/internal/extref"
	"github.com/phobologic/csdoc/internal/model"
	"github.com/phobologic/csdoc/internal/symtab"
)

// Resolver resolves references against a fixed table. Resolution of a given
// reference is deterministic.
type Resolver struct {
	table  *symtab.Table
	linker *extref.Linker
	debug  bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLinker enables the ignore list and external links for names that are
// not declared locally.
func WithLinker(l *extref.Linker) Option {
	return func(r *Resolver) { r.linker = l }
}

// WithDebug logs every resolution step at debug level.
func WithDebug(on bool) Option {
	return func(r *Resolver) { r.debug = on }
}

// New returns a Resolver over table.
func New(table *symtab.Table, opts ...Option) *Resolver {
	r := &Resolver{table: table}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Normalize reduces a reference target to the name form used in the table:
// it drops a documentation ID prefix ("T:"), "global::", a parameter list,
// generic arguments in either <T> or {T} form, arity suffixes (`1) and any
// trailing shape (?, [], *, &).
func Normalize(target string) string {
	s := strings.TrimSpace(target)
	if len(s) > 2 && s[1] == ':' && s[0] >= 'A' && s[0] <= 'Z' {
		s = s[2:]
	}
	s = strings.TrimPrefix(s, "global::")
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}

	var b strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '<', '{':
			depth++
			continue
		case '>', '}':
			if depth > 0 {
				depth--
			}
			continue
		case '`':
			for i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9' {
				i++
			}
			continue
		}
		if depth == 0 {
			b.WriteByte(c)
		}
	}
	s = strings.TrimSpace(b.String())

	for {
		trimmed := strings.TrimSpace(strings.TrimRight(s, "?*&"))
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "[]"))
		if trimmed == s || trimmed == "" {
			break
		}
		s = trimmed
	}
	return strings.ReplaceAll(s, " ", "")
}

// Resolve returns ref with its resolution filled in, and a diagnostic when
// the reference is ambiguous or unresolved. A reference that has already
// been resolved is returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, ref model.CrossReference) (model.CrossReference, *model.Diagnostic) {
	if ref.State != model.Pending {
		return ref, nil
	}
	log := slogctx.FromCtx(ctx)
	target := Normalize(ref.Target)
	out := ref

	trace := func(step string, args ...any) {
		if r.debug {
			log.Debug("xref "+step, append([]any{"target", ref.Target, "source", ref.Source}, args...)...)
		}
	}

	if target == "" {
		out.State = model.Unresolved
		return out, r.unresolved(ref)
	}

	// 1. Exact fully-qualified name.
	if r.table.Has(target) {
		trace("exact", "resolved", target)
		return resolved(out, target), nil
	}

	// 2a. The source's enclosing scopes, innermost first.
	for _, scope := range scopes(ref.Source) {
		if cand := scope + "." + target; r.table.Has(cand) {
			trace("scope", "scope", scope, "resolved", cand)
			return resolved(out, cand), nil
		}
	}

	matches := r.table.Match(target)

	// 2b. Unique match among declarations of the source namespace.
	if ns := r.namespaceOf(ref.Source); ns != "" {
		var local []string
		for _, m := range matches {
			if d, ok := r.table.Lookup(m); ok && d.Namespace == ns {
				local = append(local, m)
			}
		}
		switch len(local) {
		case 1:
			trace("namespace", "namespace", ns, "resolved", local[0])
			return resolved(out, local[0]), nil
		case 0:
		default:
			trace("namespace ambiguous", "candidates", local)
			return r.ambiguous(out, local)
		}
	}

	// 3. Unique match globally.
	switch len(matches) {
	case 1:
		trace("global", "resolved", matches[0])
		return resolved(out, matches[0]), nil
	case 0:
	default:
		trace("global ambiguous", "candidates", matches)
		return r.ambiguous(out, matches)
	}

	if r.linker != nil {
		if r.linker.Ignored(target) {
			trace("ignored")
			out.State = model.Ignored
			return out, nil
		}
		if link, ok := r.linker.Lookup(ctx, target); ok {
			trace("external", "url", link.URL)
			out.State = model.External
			out.Resolved = link.FullName
			out.URL = link.URL
			if link.Fallback {
				d := model.NewDiagnostic(model.BrokenExternalLink, ref.Location,
					"API page for %s is unavailable, linking to search", link.FullName)
				d.Symbol = ref.Source
				d.Target = ref.Target
				return out, &d
			}
			return out, nil
		}
	}

	trace("unresolved")
	out.State = model.Unresolved
	return out, r.unresolved(ref)
}

func resolved(ref model.CrossReference, fqn string) model.CrossReference {
	ref.State = model.Resolved
	ref.Resolved = fqn
	return ref
}

func (r *Resolver) unresolved(ref model.CrossReference) *model.Diagnostic {
	d := model.NewDiagnostic(model.UnresolvedReference, ref.Location,
		"cannot resolve reference %q in %s", ref.Target, ref.Source)
	d.Symbol = ref.Source
	d.Target = ref.Target
	return &d
}

func (r *Resolver) ambiguous(ref model.CrossReference, candidates []string) (model.CrossReference, *model.Diagnostic) {
	ref.State = model.Ambiguous
	ref.Candidates = append([]string(nil), candidates...)
	d := model.NewDiagnostic(model.AmbiguousReference, ref.Location,
		"reference %q in %s matches %s", ref.Target, ref.Source, strings.Join(candidates, ", "))
	d.Symbol = ref.Source
	d.Target = ref.Target
	return ref, &d
}

// namespaceOf returns the namespace of the source declaration, falling back
// to the longest namespace prefix of its name.
func (r *Resolver) namespaceOf(source string) string {
	if d, ok := r.table.Lookup(source); ok {
		return d.Namespace
	}
	for _, s := range scopes(source) {
		if r.table.IsNamespace(s) {
			return s
		}
	}
	return ""
}

// scopes returns source and each of its dotted prefixes, longest first.
func scopes(source string) []string {
	if source == "" {
		return nil
	}
	out := []string{source}
	for i := len(source) - 1; i > 0; i-- {
		if source[i] == '.' {
			out = append(out, source[:i])
		}
	}
	return out
}

// ResolveAll resolves refs in order and returns the new references together
// with the diagnostics they produced.
func (r *Resolver) ResolveAll(ctx context.Context, refs []model.CrossReference) ([]model.CrossReference, []model.Diagnostic) {
	out := make([]model.CrossReference, len(refs))
	var diags []model.Diagnostic
	for i, ref := range refs {
		res, d := r.Resolve(ctx, ref)
		out[i] = res
		if d != nil {
			diags = append(diags, *d)
		}
	}
	return out, diags
}
