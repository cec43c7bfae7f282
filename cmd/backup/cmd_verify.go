package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jskov/backup/internal/backup"
	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/ui"
	"github.com/jskov/backup/internal/ui/table"
)

func newVerifyCommand() *cobra.Command {
	var opts VerifyOptions

	cmd := &cobra.Command{
		Use:   "verify [flags]",
		Short: "Check the encrypted files of a backup against its restore script",
		Long: `
The "verify" command reads the restore script <target>/<name>.sh and
recomputes size and checksums of every encrypted file it lists.

With --files the files section of the script is checked against the files
below the given directory instead, for example an unpacked backup.

EXIT STATUS
===========

Exit status is 0 if all files match.
Exit status is 1 if the restore script could not be read.
Exit status is 3 if at least one file differs or is missing.
`,
		DisableAutoGenTag: true,
		Args:              cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd.Context(), opts, globalOptions)
		},
	}

	opts.AddFlags(cmd.Flags())
	return cmd
}

// VerifyOptions bundles all options for the verify command.
type VerifyOptions struct {
	Target  string
	Name    string
	Files   string
	Workers int
}

func (opts *VerifyOptions) AddFlags(f *pflag.FlagSet) {
	f.StringVarP(&opts.Target, "target", "t", "", "`directory` containing the backup")
	f.StringVarP(&opts.Name, "name", "n", "", "`name` of the backup")
	f.StringVar(&opts.Files, "files", "", "check the files below `directory` instead of the encrypted files")
	f.IntVar(&opts.Workers, "workers", 0, "read at most `n` files in parallel (default: number of CPUs)")
}

func runVerify(ctx context.Context, opts VerifyOptions, gopts GlobalOptions) error {
	if opts.Target == "" || opts.Name == "" {
		return errors.Fatal("--target and --name are required")
	}

	printer := gopts.printer()

	var (
		report *backup.Report
		err    error
	)
	if opts.Files != "" {
		report, err = backup.VerifyFiles(ctx, opts.Target, opts.Name, opts.Files, opts.Workers, printer)
	} else {
		report, err = backup.Verify(ctx, opts.Target, opts.Name, opts.Workers, printer)
	}

	if report == nil {
		if err != nil && !errors.Is(err, context.Canceled) {
			return errors.Fatalf("unable to read %v: %v", backup.ScriptPath(opts.Target, opts.Name), err)
		}
		return err
	}

	if len(report.Mismatches) > 0 {
		t := table.New("name", "problem")
		for _, m := range report.Mismatches {
			t.AddRow(ui.Name(m.Name, gopts.width/2), m.Reason)
		}
		t.AddFooter(fmt.Sprintf("%d of %d files differ", len(report.Mismatches), report.Checked))
		if werr := t.Write(gopts.stdout); werr != nil {
			return werr
		}
		return err
	}
	if err != nil {
		return err
	}

	printer.P("%d files ok, %v checked", report.Checked, ui.FormatSize(report.Bytes))
	return nil
}
