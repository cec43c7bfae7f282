//go:build debug

package main

import (
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jskov/backup/internal/errors"
)

type ProfileOptions struct {
	memPath string
	cpuPath string
}

func (opts *ProfileOptions) AddFlags(f *pflag.FlagSet) {
	f.StringVar(&opts.memPath, "mem-profile", "", "write memory profile to `dir`")
	f.StringVar(&opts.cpuPath, "cpu-profile", "", "write cpu profile to `dir`")
}

type profiler struct {
	opts ProfileOptions
	stop interface {
		Stop()
	}
}

func (p *profiler) Start() error {
	if p.opts.memPath != "" && p.opts.cpuPath != "" {
		return errors.Fatal("only one profile (memory or CPU) may be activated at the same time")
	}

	switch {
	case p.opts.memPath != "":
		p.stop = profile.Start(profile.Quiet, profile.NoShutdownHook, profile.MemProfile, profile.ProfilePath(p.opts.memPath))
	case p.opts.cpuPath != "":
		p.stop = profile.Start(profile.Quiet, profile.NoShutdownHook, profile.CPUProfile, profile.ProfilePath(p.opts.cpuPath))
	}
	return nil
}

func (p *profiler) Stop() {
	if p.stop != nil {
		p.stop.Stop()
		p.stop = nil
	}
}

func registerProfiling(cmd *cobra.Command) {
	var p profiler

	origPreRun := cmd.PersistentPreRunE
	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		if origPreRun != nil {
			if err := origPreRun(c, args); err != nil {
				return err
			}
		}
		return p.Start()
	}

	// PersistentPostRun is not called on errors, stop when the command returns
	for _, sub := range cmd.Commands() {
		if sub.RunE == nil {
			continue
		}
		run := sub.RunE
		sub.RunE = func(c *cobra.Command, args []string) error {
			defer p.Stop()
			return run(c, args)
		}
	}

	p.opts.AddFlags(cmd.PersistentFlags())
}
