// csdoc extracts C# documentation comments into a cross-referenced document.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/csdoc/internal/config"
	"github.com/phobologic/csdoc/internal/discover"
	"github.com/phobologic/csdoc/internal/logging"
	"github.com/phobologic/csdoc/internal/model"
	"github.com/phobologic/csdoc/internal/pipeline"
	"github.com/phobologic/csdoc/internal/render"
)

var version = "dev"

// ErrStrict is returned in strict mode when references were left
// unresolved or ambiguous. Output has already been written.
var ErrStrict = errors.Base("unresolved references")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := newRootCommand(stdin, stdout, stderr)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(context.Background())
}

// flags holds the command line values. Only flags the user set override
// the configuration file.
type flags struct {
	configPath         string
	format             string
	output             string
	filter             string
	filterFile         string
	cache              string
	logLevel           string
	maxTypes           int
	jobs               int
	maxFileSize        int64
	linkSignatureTypes bool
	noExternalLinks    bool
	checkLinks         bool
	strict             bool
	noColor            bool
	debugParse         bool
	debugXref          bool
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "csdoc [paths...]",
		Short: "Extract C# documentation comments into a cross-referenced document",
		Long: `csdoc parses the /// documentation comments of C# sources, merges partial
types, resolves <see cref="..."/> references and writes the result as TOON,
JSON, YAML or reStructuredText.

Paths may be files or directories. Directories are searched recursively,
honouring .gitignore. Use - to read a single source from stdin.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			return generate(cmd.Context(), cfg, cfgPath, args, stdin, stdout, stderr)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "config file (default: .csdoc.yml in the working directory)")
	fl.StringVarP(&f.format, "format", "f", "toon", "output format: toon, json, yaml or rst")
	fl.StringVarP(&f.output, "output", "o", "", "write output to this file instead of stdout")
	fl.StringVar(&f.filter, "filter", "", "keep only declarations whose name contains this text")
	fl.StringVar(&f.filterFile, "filter-file", "", "keep only declarations from files whose path contains this text")
	fl.IntVar(&f.maxTypes, "max-types", 0, "keep only the N highest ranked top-level types")
	fl.IntVarP(&f.jobs, "jobs", "j", 1, "number of files parsed concurrently")
	fl.Int64Var(&f.maxFileSize, "max-file-size", config.DefaultMaxFileSize, "skip files larger than this many bytes")
	fl.StringVar(&f.cache, "cache", "", "cache file path")
	fl.BoolVar(&f.linkSignatureTypes, "link-signature-types", false, "also resolve type names used in signatures")
	fl.BoolVar(&f.noExternalLinks, "no-external-links", false, "do not link framework types to external documentation")
	fl.BoolVar(&f.checkLinks, "check-links", false, "check that external links exist")
	fl.BoolVar(&f.strict, "strict", false, "exit non-zero when a reference is unresolved or ambiguous")
	fl.StringVar(&f.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	fl.BoolVar(&f.noColor, "no-color", false, "disable coloured log output")
	fl.BoolVar(&f.debugParse, "debug-parse", false, "dump parsed declarations to stderr")
	fl.BoolVar(&f.debugXref, "debug-xref", false, "log every reference resolution step")

	cmd.AddCommand(newInitCommand(stdout, stderr), newVersionCommand(stdout))
	return cmd
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(stdout, "csdoc %s\n", version)
		},
	}
}

// loadConfig reads the configuration file and applies the flags the user
// set on top of it. It also returns the path of the file read, or "".
func loadConfig(cmd *cobra.Command, f *flags) (config.Config, string, error) {
	path := f.configPath
	if path == "" {
		path = config.Find(".")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, path, err
	}

	changed := cmd.Flags().Changed
	if changed("format") {
		cfg.Format = f.format
	}
	if changed("output") {
		cfg.Output = f.output
	}
	if changed("filter") {
		cfg.Filter = f.filter
	}
	if changed("filter-file") {
		cfg.FilterFile = f.filterFile
	}
	if changed("max-types") {
		cfg.MaxTypes = f.maxTypes
	}
	if changed("jobs") {
		cfg.Jobs = f.jobs
	}
	if changed("max-file-size") {
		cfg.MaxFileSize = f.maxFileSize
	}
	if changed("cache") {
		cfg.Cache = f.cache
	}
	if changed("link-signature-types") {
		cfg.LinkSignatureTypes = f.linkSignatureTypes
	}
	if changed("no-external-links") {
		cfg.ExternalLinks = !f.noExternalLinks
	}
	if changed("check-links") {
		cfg.CheckLinks = f.checkLinks
	}
	if changed("strict") {
		cfg.Strict = f.strict
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("no-color") {
		cfg.NoColor = f.noColor
	}
	cfg.DebugParse = f.debugParse
	cfg.DebugXref = f.debugXref

	if err := cfg.Validate(); err != nil {
		return cfg, path, err
	}
	return cfg, path, nil
}

func generate(ctx context.Context, cfg config.Config, cfgPath string, paths []string, stdin io.Reader, stdout, stderr io.Writer) error {
	ctx, _ = logging.WithLogger(ctx, stderr, cfg.Level(), colorEnabled(cfg, stderr))
	log := slogctx.FromCtx(ctx)

	if len(paths) == 0 {
		paths = []string{"."}
	}

	runner := pipeline.New(cfg, pipeline.WithStdin(stdin), pipeline.WithDebugOutput(stderr))

	// The cache holds the full document only. It carries no diagnostics, so
	// strict runs always parse.
	useCache := cfg.Cache != "" && !cfg.Strict && cfg.Filter == "" && cfg.FilterFile == "" &&
		cfg.MaxTypes == 0 && !slices.Contains(paths, pipeline.StdinPath)
	var key string
	if useCache {
		var err error
		if key, err = cacheKey(cfg); err != nil {
			return err
		}
		files, err := runner.Inputs(ctx, paths)
		if err != nil {
			return err
		}
		if cacheIsFresh(cfg.Cache, cfgPath, files) {
			if data, ok := readCache(cfg.Cache, key); ok {
				log.Debug("using cache", "path", cfg.Cache)
				return writeOutput(cfg.Output, stdout, data)
			}
			log.Debug("cache written with other settings", "path", cfg.Cache)
		}
	}

	res, err := runner.Run(ctx, pipeline.DisplayName(paths), paths)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := render.Encode(&buf, res.Document, cfg.Format); err != nil {
		return err
	}

	if useCache {
		data := append([]byte(key+"\n"), buf.Bytes()...)
		if err := os.WriteFile(cfg.Cache, data, 0o644); err != nil {
			log.Warn("cannot write cache", "path", cfg.Cache, "error", err)
		}
	}
	if err := writeOutput(cfg.Output, stdout, buf.Bytes()); err != nil {
		return err
	}

	reported := 0
	for _, d := range res.Diagnostics {
		if d.Severity == model.Error || d.Kind.IsResolution() {
			log.Warn(d.Message, "kind", d.Kind, "location", d.Location.String())
		} else {
			log.Info(d.Message, "kind", d.Kind, "location", d.Location.String())
		}
		if d.Kind.IsResolution() {
			reported++
		}
	}
	if cfg.Strict && reported > 0 {
		return errors.Errorf("%w: %d reported", ErrStrict, reported)
	}
	return nil
}

func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return errors.WithStack(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// cacheHeader starts the first line of a cache file. The rest of the line
// is the settings hash.
const cacheHeader = "# csdoc-cache"

// cacheKey returns the header line identifying the settings that shape the
// output. Settings that only affect logging, parallelism or where the
// output goes are left out.
func cacheKey(cfg config.Config) (string, error) {
	cfg.Output, cfg.Cache = "", ""
	cfg.Jobs, cfg.LogLevel, cfg.NoColor = 1, "", false
	cfg.DebugParse, cfg.DebugXref = false, false
	data, err := cfg.Marshal()
	if err != nil {
		return "", errors.WithMessage(err, "computing cache key")
	}
	h := xxhash.New()
	_, _ = h.WriteString(version + "\n")
	_, _ = h.Write(data)
	return fmt.Sprintf("%s %016x", cacheHeader, h.Sum64()), nil
}

// readCache returns the cached output when the file's header matches key.
func readCache(path, key string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	line, rest, found := bytes.Cut(data, []byte("\n"))
	if !found || string(line) != key {
		return nil, false
	}
	return rest, true
}

// cacheIsFresh reports whether the cache file is newer than every input and
// than the configuration file, when there is one.
func cacheIsFresh(cachePath, cfgPath string, files []discover.FileEntry) bool {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	cacheMtime := cacheInfo.ModTime()

	if cfgPath != "" {
		fi, err := os.Stat(cfgPath)
		if err != nil || !fi.ModTime().Before(cacheMtime) {
			return false
		}
	}
	for _, f := range files {
		fi, err := os.Stat(f.Abs())
		if err != nil {
			return false
		}
		if !fi.ModTime().Before(cacheMtime) {
			return false
		}
	}
	return true
}

func colorEnabled(cfg config.Config, w io.Writer) bool {
	if cfg.NoColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// absPath is used by init to report where a file was written.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
