// Package pipeline runs the extraction stages end to end: read sources,
// parse declarations, build the symbol table, resolve references and render
// the document.
package pipeline

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/k0kubun/pp/v3"
	sitter "github.com/smacker/go-tree-sitter"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/csdoc/internal/config"
	"github.com/phobologic/csdoc/internal/discover"
	"github.com/phobologic/csdoc/internal/extref"
	"github.com/phobologic/csdoc/internal/graph"
	"github.com/phobologic/csdoc/internal/lang"
	"github.com/phobologic/csdoc/internal/model"
	"github.com/phobologic/csdoc/internal/parse"
	"github.com/phobologic/csdoc/internal/ranking"
	"github.com/phobologic/csdoc/internal/render"
	"github.com/phobologic/csdoc/internal/symtab"
	"github.com/phobologic/csdoc/internal/xref"
)

// ErrNoSources is returned when no input file could be found.
var ErrNoSources = errors.Base("no C# sources found")

// StdinPath is the input path that reads a source from standard input, and
// the file name it is reported under.
const (
	StdinPath = "-"
	StdinName = "<stdin>"
)

// Source is one input file's content.
type Source struct {
	Path string
	Data []byte
}

// Result is the outcome of a run. Diagnostics is the complete, sorted list
// reported during the run, independent of any filter applied to Document.
type Result struct {
	Document    *model.Document
	Diagnostics []model.Diagnostic
	Table       *symtab.Table
	Files       []discover.FileEntry

	// Renderer streams the unfiltered nodes again on demand.
	Renderer *render.Renderer
}

// Runner executes the pipeline for one configuration.
type Runner struct {
	cfg      config.Config
	debugOut io.Writer
	stdin    io.Reader
	client   *http.Client
}

// Option configures a Runner.
type Option func(*Runner)

// WithDebugOutput sets where --debug-parse dumps go. Defaults to stderr.
func WithDebugOutput(w io.Writer) Option {
	return func(r *Runner) { r.debugOut = w }
}

// WithStdin sets the reader used for the "-" input path.
func WithStdin(in io.Reader) Option {
	return func(r *Runner) { r.stdin = in }
}

// WithHTTPClient sets the client used for external link checks.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Runner) { r.client = c }
}

// New returns a Runner for cfg.
func New(cfg config.Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, debugOut: os.Stderr, stdin: os.Stdin}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Inputs discovers the source files named by paths.
func (r *Runner) Inputs(ctx context.Context, paths []string) ([]discover.FileEntry, error) {
	files, err := discover.Inputs(ctx, paths)
	if err != nil {
		return nil, errors.WithMessage(err, "discovering files")
	}
	if len(files) == 0 {
		return nil, errors.WithStack(ErrNoSources)
	}
	return files, nil
}

// Run discovers, reads and processes the files under paths. Files that
// cannot be read are reported as UnreadableSource diagnostics and the run
// continues with the rest. The path "-" reads one source from stdin.
func (r *Runner) Run(ctx context.Context, name string, paths []string) (*Result, error) {
	var (
		stdin bool
		rest  []string
	)
	for _, p := range paths {
		if p == StdinPath {
			stdin = true
			continue
		}
		rest = append(rest, p)
	}

	var files []discover.FileEntry
	if !stdin || len(rest) > 0 {
		var err error
		if files, err = r.Inputs(ctx, rest); err != nil {
			return nil, err
		}
	}
	sources, diags := r.read(ctx, files)
	if stdin {
		data, err := io.ReadAll(r.stdin)
		if err != nil {
			return nil, errors.Errorf("reading stdin: %w", err)
		}
		sources = append(sources, Source{Path: StdinName, Data: data})
	}
	res, err := r.RunSources(ctx, name, sources, diags...)
	if err != nil {
		return nil, err
	}
	res.Files = files
	return res, nil
}

// read loads every file within the size limit. Read failures are collected
// into one error for the log and returned as diagnostics.
func (r *Runner) read(ctx context.Context, files []discover.FileEntry) ([]Source, []model.Diagnostic) {
	log := slogctx.FromCtx(ctx)

	var (
		sources []Source
		diags   []model.Diagnostic
		readErr error
	)
	for _, f := range files {
		if f.Size > r.cfg.MaxFileSize {
			log.Warn("skipping large file",
				"file", f.Path,
				"size", humanize.Bytes(uint64(f.Size)),
				"limit", humanize.Bytes(uint64(r.cfg.MaxFileSize)))
			continue
		}
		var (
			data []byte
			err  error
		)
		if f.Size < 0 {
			_, err = os.Stat(f.Abs())
			if err == nil {
				err = errors.Errorf("%s: not accessible", f.Path)
			}
		} else {
			data, err = os.ReadFile(f.Abs())
		}
		if err != nil {
			readErr = multierror.Append(readErr, err)
			d := model.NewDiagnostic(model.UnreadableSource, model.Location{File: f.Path}, "cannot read %s: %s", f.Path, err.Error())
			diags = append(diags, d)
			continue
		}
		sources = append(sources, Source{Path: f.Path, Data: data})
	}
	if readErr != nil {
		log.Warn("some sources could not be read", "error", readErr)
	}
	return sources, diags
}

// RunSources processes in-memory sources. Extra diagnostics, such as those
// from reading, are merged into the result.
func (r *Runner) RunSources(ctx context.Context, name string, sources []Source, extra ...model.Diagnostic) (*Result, error) {
	log := slogctx.FromCtx(ctx)

	parsed, err := r.parseAll(ctx, sources)
	if err != nil {
		return nil, err
	}

	diags := append([]model.Diagnostic(nil), extra...)
	var decls []*model.Declaration
	for _, p := range parsed {
		decls = append(decls, p.Declarations...)
		diags = append(diags, p.Diagnostics...)
	}
	if r.cfg.DebugParse {
		r.dump(decls)
	}
	log.Debug("parsed sources", "files", len(sources), "declarations", len(decls))

	table, tdiags := symtab.Build(decls)
	diags = append(diags, tdiags...)

	resolver := xref.New(table, xref.WithLinker(r.linker()), xref.WithDebug(r.cfg.DebugXref))
	res, rdiags := resolver.ResolveTable(ctx, r.cfg.LinkSignatureTypes)
	diags = append(diags, rdiags...)

	edges := graph.BuildGraph(table, res.All())
	var roots []string
	for _, d := range table.Roots() {
		roots = append(roots, d.FullName)
	}
	ranks := graph.Rank(roots, edges)

	model.SortDiagnostics(diags)

	files := make([]string, len(sources))
	for i, s := range sources {
		files[i] = s.Path
	}

	renderer := render.New(table, res,
		render.WithShortenPrefixes(r.cfg.ExtRef().ShortenTypePrefixes),
		render.WithRanks(ranks))
	doc := renderer.Document(name, files, edges, diags)

	if r.cfg.Filter != "" {
		doc = ranking.FilterByName(doc, r.cfg.Filter)
	}
	if r.cfg.FilterFile != "" {
		doc = ranking.FilterByFile(doc, r.cfg.FilterFile)
	}
	doc = ranking.SelectTop(doc, r.cfg.MaxTypes)

	for _, d := range diags {
		log.Debug("diagnostic", "kind", d.Kind, "location", d.Location.String(), "message", d.Message)
	}

	return &Result{Document: doc, Diagnostics: diags, Table: table, Renderer: renderer}, nil
}

func (r *Runner) linker() *extref.Linker {
	var opts []extref.Option
	if !r.cfg.ExternalLinks {
		opts = append(opts, extref.WithoutLinks())
	} else if r.cfg.CheckLinks {
		opts = append(opts, extref.WithLinkCheck(r.client))
	}
	return extref.NewLinker(r.cfg.ExtRef(), opts...)
}

func (r *Runner) dump(decls []*model.Declaration) {
	p := pp.New()
	p.SetExportedOnly(true)
	p.SetColoringEnabled(!r.cfg.NoColor)
	for _, d := range decls {
		_, _ = p.Fprintln(r.debugOut, d)
	}
}

// parseAll parses sources, one tree-sitter parser per goroutine, and returns
// results in input order whatever the number of jobs.
func (r *Runner) parseAll(ctx context.Context, sources []Source) ([]*parse.Result, error) {
	l := lang.Languages["csharp"]
	if l == nil {
		return nil, errors.New("csharp language not registered")
	}
	query, err := l.GetTagQuery()
	if err != nil {
		return nil, errors.WithMessage(err, "loading C# query")
	}

	results := make([]*parse.Result, len(sources))
	one := func(ctx context.Context, parser *sitter.Parser, i int) {
		s := sources[i]
		fctx := slogctx.Append(ctx, "file", s.Path)
		results[i] = parse.ExtractDeclarations(fctx, l, parser, query, s.Data, s.Path)
	}

	jobs := max(r.cfg.Jobs, 1)
	if jobs == 1 || len(sources) < 2 {
		parser := l.NewParser()
		defer parser.Close()
		for i := range sources {
			one(ctx, parser, i)
		}
		return results, nil
	}

	work := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(work)
		for i := range sources {
			select {
			case work <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range min(jobs, len(sources)) {
		g.Go(func() error {
			parser := l.NewParser()
			defer parser.Close()
			for i := range work {
				one(gctx, parser, i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.WithMessage(err, "parsing sources")
	}
	return results, nil
}

// DisplayName returns the document name for a list of input paths.
func DisplayName(paths []string) string {
	if len(paths) == 0 {
		return "stdin"
	}
	abs, err := filepath.Abs(paths[0])
	if err != nil {
		return filepath.Base(paths[0])
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	return filepath.Base(abs)
}
