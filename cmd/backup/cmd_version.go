package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jskov/backup/internal/manifest"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `
The "version" command prints the version of this software, the version of
the restore script data format it writes, and details about the build.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
		DisableAutoGenTag: true,
		Args:              cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(globalOptions.stdout, "backup %s (data format %d) compiled with %v on %v/%v\n",
				version, manifest.FormatVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
