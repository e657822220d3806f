// Package discover finds C# source files under the paths given on the
// command line.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/csdoc/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to the walked root, or as given for explicit files
	Root     string
	Language string
	Size     int64
}

// Abs returns the path of the entry on disk.
func (e FileEntry) Abs() string {
	if e.Root == "" {
		return e.Path
	}
	return filepath.Join(e.Root, e.Path)
}

var skipDirs = map[string]struct{}{
	"bin":          {},
	"obj":          {},
	"packages":     {},
	"node_modules": {},
	"Library":      {},
	"Temp":         {},
	"Logs":         {},
}

// Files discovers C# source files under root, honouring git's view of the
// tree when root is a repository and .gitignore otherwise. Results are
// sorted by path.
func Files(ctx context.Context, root string) ([]FileEntry, error) {
	gitFiles := gitLsFiles(ctx, root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		langName := lang.ForExtension(filepath.Ext(name))
		if langName == "" {
			return nil
		}

		entry := FileEntry{Path: rel, Root: root, Language: langName}
		if info, err := d.Info(); err == nil {
			entry.Size = info.Size()
		}
		results = append(results, entry)
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "walking %s", root)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// Inputs expands command line paths into source files. Directories are
// walked with Files; files are taken as given, whatever their extension.
// Entries keep the order of paths, and a file named twice is listed once.
// A path that cannot be accessed is returned as an entry with Size -1 so
// the caller can report it and carry on.
func Inputs(ctx context.Context, paths []string) ([]FileEntry, error) {
	var out []FileEntry
	seen := make(map[string]struct{})
	add := func(e FileEntry) {
		key := filepath.Clean(e.Abs())
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			add(FileEntry{Path: p, Language: lang.ForExtension(filepath.Ext(p)), Size: -1})
			continue
		}
		if !info.IsDir() {
			langName := lang.ForExtension(filepath.Ext(p))
			if langName == "" {
				langName = "csharp"
			}
			add(FileEntry{Path: p, Language: langName, Size: info.Size()})
			continue
		}
		files, err := Files(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			add(f)
		}
	}
	return out, nil
}

func gitLsFiles(ctx context.Context, root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
