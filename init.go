package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/codemap/internal/config"
)

func newInitCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with every setting at its default",
		Long: `Write a codemap config file. Settings already present in an existing file
keep their values and comments; missing settings are appended with their
defaults. Creates the file if it does not exist.

path defaults to ./` + config.FileName + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := config.FileName
			if len(args) > 0 {
				path = args[0]
			}
			return runInit(path, dryRun, a.stdout, a.stderr)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	return cmd
}

// runInit writes (or updates) the config file at path.
func runInit(path string, dryRun bool, stdout, stderr io.Writer) error {
	if dryRun {
		existing, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		out, _, err := config.Merge(existing)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprint(stdout, string(out))
		return nil
	}

	added, err := config.WriteDefault(path)
	if err != nil {
		return err
	}
	if len(added) == 0 {
		_, _ = fmt.Fprintf(stderr, "%s is up to date\n", path)
		return nil
	}
	_, _ = fmt.Fprintf(stderr, "wrote %s (added %s)\n", path, strings.Join(added, ", "))
	return nil
}
