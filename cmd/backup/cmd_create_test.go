package main

import (
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/jskov/backup/internal/backup"
	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/output"
	rtest "github.com/jskov/backup/internal/test"
)

func TestCreateOptionsEnv(t *testing.T) {
	t.Setenv("BACKUP_GPG_KEY_ID", "0123456789abcdef")
	t.Setenv("BACKUP_GPG_PROGRAM", "/opt/gpg2")
	t.Setenv("BACKUP_MAX_CRYPT_SIZE", "2G")
	t.Setenv("BACKUP_MAX_CONTAINER_SIZE", "64M")

	var opts CreateOptions
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(f)
	rtest.OK(t, f.Parse([]string{"--max-container-size", "32MiB"}))

	rtest.Equals(t, "0123456789abcdef", opts.KeyID)
	rtest.Equals(t, "/opt/gpg2", opts.GPGProgram)
	rtest.Equals(t, "2G", opts.MaxCryptSize)
	rtest.Equals(t, "32MiB", opts.ContainerSize)
	rtest.Equals(t, backup.DefaultOutputTimeout, opts.OutputTimeout)
}

func TestCreateOptionsDefaults(t *testing.T) {
	for _, name := range []string{"BACKUP_GPG_KEY_ID", "BACKUP_GPG_PROGRAM", "BACKUP_MAX_CRYPT_SIZE", "BACKUP_MAX_CONTAINER_SIZE"} {
		t.Setenv(name, "")
	}

	var opts CreateOptions
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(f)
	rtest.OK(t, f.Parse(nil))

	rtest.Equals(t, "", opts.KeyID)
	rtest.Equals(t, "gpg", opts.GPGProgram)
	rtest.Equals(t, "1G", opts.MaxCryptSize)
	rtest.Equals(t, "512M", opts.ContainerSize)
	rtest.Equals(t, "numbered", opts.Type)
}

func TestBackupOptions(t *testing.T) {
	opts := CreateOptions{
		Source:        "/src",
		Target:        "/dst",
		Name:          "photos",
		Type:          "named",
		MaxCryptSize:  "1G",
		ContainerSize: "16M",
		KeyID:         "0x0123456789abcdef",
		MD5:           true,
		OutputTimeout: time.Minute,
	}

	res, err := opts.backupOptions()
	rtest.OK(t, err)
	rtest.Equals(t, output.Named, res.Kind)
	rtest.Equals(t, int64(1<<30), res.MaxCryptSize)
	rtest.Equals(t, 16<<20, res.ContainerSize)
	rtest.Equals(t, checksum.KeyID("0123456789ABCDEF"), res.KeyID)
	rtest.Equals(t, "gpg", res.Crypt.Program)
	rtest.Equals(t, true, res.MD5)
	rtest.Equals(t, time.Minute, res.OutputTimeout)
	rtest.Equals(t, version, res.Version)
}

func TestBackupOptionsInvalid(t *testing.T) {
	valid := CreateOptions{
		Source:        "/src",
		Target:        "/dst",
		Name:          "photos",
		Type:          "numbered",
		MaxCryptSize:  "1G",
		ContainerSize: "16M",
		KeyID:         "01234567",
	}

	for _, modify := range []func(*CreateOptions){
		func(o *CreateOptions) { o.Source = "" },
		func(o *CreateOptions) { o.Name = "" },
		func(o *CreateOptions) { o.KeyID = "" },
		func(o *CreateOptions) { o.KeyID = "xyz" },
		func(o *CreateOptions) { o.Type = "zip" },
		func(o *CreateOptions) { o.MaxCryptSize = "lots" },
		func(o *CreateOptions) { o.ContainerSize = "4G" },
	} {
		opts := valid
		modify(&opts)
		_, err := opts.backupOptions()
		rtest.Assert(t, errors.IsFatal(err), "expected fatal error for %+v, got %v", opts, err)
	}
}
