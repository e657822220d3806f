package extref

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/phobologic/csdoc/internal/signature"
)

// LinkCheckTimeout bounds each HTTP probe made when link checking is on.
const LinkCheckTimeout = 3 * time.Second

// Link is an external documentation link for one name.
type Link struct {
	Package  string `json:"package" yaml:"package"`
	FullName string `json:"fullname" yaml:"fullname"`
	Display  string `json:"display" yaml:"display"`
	URL      string `json:"url" yaml:"url"`
	// Fallback is set when the API page failed the link check and the
	// search page is used instead.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Linker resolves names against Data. Results are cached per name, so each
// name is probed at most once.
type Linker struct {
	data   Data
	client *http.Client

	mu      sync.Mutex
	check   bool
	noLinks bool
	cache   map[string]linkResult
}

type linkResult struct {
	link Link
	ok   bool
}

// Option configures a Linker.
type Option func(*Linker)

// WithLinkCheck enables probing API pages over HTTP. A nil client uses a
// default client with LinkCheckTimeout.
func WithLinkCheck(client *http.Client) Option {
	return func(l *Linker) {
		if client == nil {
			client = &http.Client{Timeout: LinkCheckTimeout}
		}
		l.client = client
		l.check = true
	}
}

// WithoutLinks keeps the ignore list and type shortening but makes every
// Lookup miss.
func WithoutLinks() Option {
	return func(l *Linker) { l.noLinks = true }
}

// NewLinker returns a Linker over data.
func NewLinker(data Data, opts ...Option) *Linker {
	l := &Linker{data: data, cache: make(map[string]linkResult)}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Data returns the tables the linker was built with.
func (l *Linker) Data() Data {
	return l.data
}

// Ignored reports whether name is never linked.
func (l *Linker) Ignored(name string) bool {
	return l.data.Ignored(name)
}

// Shorten drops the configured namespace prefixes from a type name.
func (l *Linker) Shorten(name string) string {
	return signature.ShortenType(name, l.data.ShortenTypePrefixes)
}

type match struct{ pkg, ns string }

func (l *Linker) matches(name string) []match {
	parent, short := "", name
	if i := strings.LastIndex(name, "."); i >= 0 {
		parent, short = name[:i], name[i+1:]
	}

	var out []match
	pkgs := slices.Sorted(maps.Keys(l.data.TypeMap))
	for _, pkg := range pkgs {
		nss := l.data.TypeMap[pkg]
		for _, ns := range slices.Sorted(maps.Keys(nss)) {
			if !slices.Contains(nss[ns], short) {
				continue
			}
			if parent != "" && !strings.HasSuffix(ns, parent) {
				continue
			}
			out = append(out, match{pkg, ns})
		}
	}
	if parent != "" && len(out) > 1 {
		var strict []match
		for _, m := range out {
			if m.ns == parent {
				strict = append(strict, m)
			}
		}
		if len(strict) > 0 {
			out = strict
		}
	}
	return out
}

// Lookup finds the external link for name, which may be qualified
// ("System.Collections.Generic.List") or bare ("MonoBehaviour").
func (l *Linker) Lookup(ctx context.Context, name string) (Link, bool) {
	if l.noLinks {
		return Link{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if r, ok := l.cache[name]; ok {
		return r.link, r.ok
	}
	link, ok := l.lookup(ctx, name)
	l.cache[name] = linkResult{link, ok}
	return link, ok
}

func (l *Linker) lookup(ctx context.Context, name string) (Link, bool) {
	log := slogctx.FromCtx(ctx)

	found := l.matches(name)
	if len(found) == 0 {
		return Link{}, false
	}
	if len(found) > 1 {
		cands := make([]string, len(found))
		for i, m := range found {
			cands[i] = m.pkg + ":" + m.ns
		}
		sort.Strings(cands)
		log.Warn("ambiguous external reference, using first", "name", name, "matches", cands)
	}
	m := found[0]

	short := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		short = name[i+1:]
	}
	linkName := short
	if r, ok := l.data.TypeRename[short]; ok {
		linkName = r
	}
	target, full := linkName, short
	if m.ns != "" {
		target = m.ns + "." + linkName
		full = m.ns + "." + short
	}

	page, ok := l.data.searchPage(m.pkg)
	if !ok {
		log.Warn("external package has no search pages", "package", m.pkg, "name", full)
		return Link{}, false
	}

	link := Link{
		Package:  m.pkg,
		FullName: full,
		Display:  l.Shorten(short),
		URL:      strings.ReplaceAll(page.API, "%s", target),
	}

	if l.check {
		status, err := l.probe(ctx, link.URL)
		switch {
		case err != nil:
			log.Info("external link checking disabled", "url", link.URL, "error", err)
			l.check = false
		case status >= 400:
			log.Warn("invalid API link, using fallback", "status", status, "url", link.URL)
			link.URL = strings.ReplaceAll(page.Search, "%s", target)
			link.Fallback = true
		}
	}
	return link, true
}

func (l *Linker) probe(ctx context.Context, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, LinkCheckTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
