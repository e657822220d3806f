package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/csdoc/internal/config"
)

// ErrConfigExists is returned by init when the target file already exists
// and --force was not given.
var ErrConfigExists = errors.Base("config file already exists")

const configHeader = `# csdoc configuration. Command line flags override these values.
#
# External reference tables are merged into the built-in ones:
#
# shorten_type_prefixes: [MyCompany.Product.]
# ignore_xref: [MyTypeAlias]
# ext_type_map:
#   msdn:
#     System.Numerics: [BigInteger, Complex]
# external_type_rename:
#   MyCompany.Legacy: MyCompany.Modern
# ext_search_pages:
#   mydocs:
#     api: https://docs.example.com/api/%s.html
#     search: https://docs.example.com/search?q=%s
`

func newInitCommand(stdout, stderr io.Writer) *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default .csdoc.yml",
		Long: `Write a configuration file holding the default settings, with commented
examples of the external reference tables.

path defaults to ./.csdoc.yml. When path is a directory the file is created
inside it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			content, err := generateConfig()
			if err != nil {
				return err
			}
			if dryRun {
				_, _ = fmt.Fprint(stdout, content)
				return nil
			}

			path := config.FileNames[0]
			if len(args) > 0 {
				path = args[0]
			}
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, config.FileNames[0])
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
			}

			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return errors.Errorf("writing %s: %w", path, err)
			}
			_, _ = fmt.Fprintf(stderr, "wrote %s\n", absPath(path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the file instead of writing it")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// generateConfig returns the default configuration file content.
func generateConfig() (string, error) {
	data, err := config.Default().Marshal()
	if err != nil {
		return "", err
	}
	return configHeader + "\n" + string(data), nil
}
