package main

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jskov/backup/internal/backup"
	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/crypt"
	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/output"
	"github.com/jskov/backup/internal/ui"
)

func newCreateCommand() *cobra.Command {
	var opts CreateOptions

	cmd := &cobra.Command{
		Use:   "create [flags]",
		Short: "Create or update a backup of a directory",
		Long: `
The "create" command backs up every file and directory directly below the
source directory. Each entry is packed into a tar archive, the archives are
encrypted with gpg and written to the target directory. The restore script
<target>/<name>.sh is written last.

With --type numbered all archives go through a single gpg process and the
output is split into files <name>-01.crypt, <name>-02.crypt and so on.

With --type named every entry gets its own <entry>.crypt file. Running the
command again only encrypts entries which changed since the last run.

EXIT STATUS
===========

Exit status is 0 if the command was successful.
Exit status is 1 if there was a fatal error (no backup created).
Exit status is 2 if an output file already exists.
Exit status is 130 if the command was interrupted.
`,
		DisableAutoGenTag: true,
		Args:              cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreate(cmd.Context(), opts, globalOptions)
		},
	}

	opts.AddFlags(cmd.Flags())
	return cmd
}

// CreateOptions bundles all options for the create command.
type CreateOptions struct {
	Source        string
	Target        string
	Name          string
	Type          string
	MaxCryptSize  string
	ContainerSize string
	KeyID         string
	GPGProgram    string
	MD5           bool
	OutputTimeout time.Duration
}

func (opts *CreateOptions) AddFlags(f *pflag.FlagSet) {
	f.StringVarP(&opts.Source, "source", "s", "", "back up the entries of `directory`")
	f.StringVarP(&opts.Target, "target", "t", "", "write the backup to `directory`")
	f.StringVarP(&opts.Name, "name", "n", "", "`name` of the backup, the restore script is <target>/<name>.sh")
	f.StringVar(&opts.Type, "type", "numbered", "output `type`, one of (numbered|named)")
	f.StringVar(&opts.MaxCryptSize, "max-crypt-size", "1G", "maximal `size` of a numbered output file (default: $BACKUP_MAX_CRYPT_SIZE)")
	f.StringVar(&opts.ContainerSize, "max-container-size", "512M", "maximal `size` of a packed directory (default: $BACKUP_MAX_CONTAINER_SIZE)")
	f.StringVar(&opts.KeyID, "gpg-key-id", "", "encrypt to gpg key `id` (default: $BACKUP_GPG_KEY_ID)")
	f.StringVar(&opts.GPGProgram, "gpg-program", "gpg", "gpg `program` to run (default: $BACKUP_GPG_PROGRAM)")
	f.BoolVar(&opts.MD5, "md5", false, "also record MD5 digests of all files")
	f.DurationVar(&opts.OutputTimeout, "output-timeout", backup.DefaultOutputTimeout, "wait at most `duration` for the encrypted output after the last entry")

	if s := os.Getenv("BACKUP_MAX_CRYPT_SIZE"); s != "" {
		opts.MaxCryptSize = s
	}
	if s := os.Getenv("BACKUP_MAX_CONTAINER_SIZE"); s != "" {
		opts.ContainerSize = s
	}
	opts.KeyID = os.Getenv("BACKUP_GPG_KEY_ID")
	if s := os.Getenv("BACKUP_GPG_PROGRAM"); s != "" {
		opts.GPGProgram = s
	}
}

// backupOptions validates opts and converts them for backup.Run.
func (opts *CreateOptions) backupOptions() (backup.Options, error) {
	var res backup.Options

	for _, req := range []struct{ flag, value string }{
		{"--source", opts.Source},
		{"--target", opts.Target},
		{"--name", opts.Name},
		{"--gpg-key-id", opts.KeyID},
	} {
		if req.value == "" {
			return res, errors.Fatalf("%v is required", req.flag)
		}
	}

	kind, err := output.ParseKind(opts.Type)
	if err != nil {
		return res, errors.Fatalf("%v", err)
	}

	keyID, err := checksum.ParseKeyID(opts.KeyID)
	if err != nil {
		return res, errors.Fatalf("invalid --gpg-key-id: %v", err)
	}

	cryptSize, err := ui.ParseBytes(opts.MaxCryptSize)
	if err != nil {
		return res, errors.Fatalf("invalid --max-crypt-size: %v", err)
	}

	containerSize, err := ui.ParseBytes(opts.ContainerSize)
	if err != nil {
		return res, errors.Fatalf("invalid --max-container-size: %v", err)
	}
	if containerSize > math.MaxInt32 {
		return res, errors.Fatalf("--max-container-size %v is larger than %v", opts.ContainerSize, ui.FormatBytes(math.MaxInt32))
	}

	return backup.Options{
		Source:        opts.Source,
		Target:        opts.Target,
		Name:          opts.Name,
		Kind:          kind,
		MaxCryptSize:  cryptSize,
		ContainerSize: int(containerSize),
		Crypt:         crypt.NewGPGConfig(opts.GPGProgram, keyID),
		KeyID:         keyID,
		MD5:           opts.MD5,
		Version:       version,
		OutputTimeout: opts.OutputTimeout,
	}, nil
}

func runCreate(ctx context.Context, opts CreateOptions, gopts GlobalOptions) error {
	bopts, err := opts.backupOptions()
	if err != nil {
		return err
	}

	printer := gopts.printer()
	bopts.Printer = printer

	printer.V("backing up %v to %v (%v output)", bopts.Source, bopts.Target, bopts.Kind)

	summary, err := backup.Run(ctx, bopts)
	if err != nil {
		return err
	}

	printer.P("%d entries backed up, %d skipped, %d files, %v",
		summary.Elements, len(summary.Skipped), summary.Files, ui.FormatSize(summary.InputBytes))
	printer.P("%d encrypted files, %v, %d reused from the previous backup",
		summary.OutputFiles, ui.FormatSize(summary.OutputBytes), summary.Reused)
	printer.P("restore script %v written in %v", summary.Script, ui.FormatDuration(summary.Duration))
	return nil
}
