package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
)

func init() {
	// don't import `go.uber.org/automaxprocs` to disable the log output
	_, _ = maxprocs.Set()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create encrypted, incrementally updatable directory backups",
		Long: `
backup packs the entries of a source directory into tar archives, encrypts
them with gpg and writes them to a target directory together with a bash
restore script. The restore script lists all encrypted files with their
sizes and checksums and can verify and unpack the backup on its own.
`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return globalOptions.PreRun()
		},
	}

	globalOptions.AddFlags(cmd.PersistentFlags())

	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(
		newCreateCommand(),
		newVerifyCommand(),
		newVersionCommand(),
	)

	registerProfiling(cmd)

	return cmd
}

// exitCode maps the error returned by a command to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, errors.ErrMismatch):
		return 3
	case errors.Is(err, os.ErrExist):
		return 2
	default:
		return 1
	}
}

func exitMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.IsFatal(err):
		return err.Error()
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case errors.Is(err, errors.ErrMismatch), errors.Is(err, os.ErrExist):
		return fmt.Sprintf("Fatal: %v", err)
	default:
		return fmt.Sprintf("%+v", err)
	}
}

func main() {
	// install custom global logger into a buffer, if an error occurs
	// we can show the logs
	logBuffer := bytes.NewBuffer(nil)
	log.SetOutput(logBuffer)

	debug.Log("main %#v", os.Args)
	debug.Log("backup %s compiled with %v on %v/%v",
		version, runtime.Version(), runtime.GOOS, runtime.GOARCH)

	ctx := createGlobalContext()
	err := newRootCommand().ExecuteContext(ctx)
	if err == nil {
		err = ctx.Err()
	}

	code := exitCode(err)
	if code != 0 {
		msg := exitMessage(err)
		if code == 1 && !errors.IsFatal(err) && logBuffer.Len() > 0 {
			msg += "\nalso, the following messages were logged by a library:\n"
			sc := bufio.NewScanner(logBuffer)
			for sc.Scan() {
				msg += fmt.Sprintln(sc.Text())
			}
		}
		_, _ = fmt.Fprintln(globalOptions.stderr, msg)
	}
	Exit(code)
}
