package repo

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/virtio-win/mirrorpush/internal/build"
)

const (
	lockFilename = ".lock"
)

// Options selects the pipeline mode for one run. Exactly one of the
// three modes executes: populate+push (the default), RegenOnly, or
// Resync.
type Options struct {
	// RPMOutput is the directory containing the built RPMs.
	RPMOutput string
	// RPMBuildroot is the directory containing the buildroot content.
	RPMBuildroot string

	// RegenOnly skips population and only regenerates and pushes.
	RegenOnly bool
	// Resync pulls the remote tree back into the local mirror.
	Resync bool

	Quiet   bool
	Runner  Runner
	Confirm ConfirmFunc
}

// Run executes the publish pipeline: populate the tree from build
// output, regenerate the repo metadata, then synchronize with the
// remote host behind the dry-run confirmation gate.
//
// The first thing to do is to acquire flock on the lock file, so only
// one run mutates the mirror at a time.
func Run(ctx context.Context, config *Config, opts Options) error {
	account, err := Account()
	if err != nil {
		return err
	}

	lockFile := filepath.Join(config.RootDir, lockFilename)
	file, err := os.Open(lockFile)
	switch {
	case os.IsNotExist(err):
		file2, err := os.OpenFile(lockFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			return err
		}
		file = file2
	case err != nil:
		return err
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close lock file", "error", err)
		}
	}()

	fileLock := Flock{file}
	if err := fileLock.Lock(); err != nil {
		return errors.Mark(
			errors.Wrap(err, "another run holds the mirror lock"), ErrUsage)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			slog.Warn("failed to unlock file", "error", err)
		}
	}()

	defer func() {
		if err := os.Remove(lockFile); err != nil {
			slog.Warn("failed to remove lock file", "error", err, "path", lockFile)
		}
	}()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return runPipeline(ctx, config, account, opts)
	})
	return group.Wait()
}

func runPipeline(ctx context.Context, config *Config, account string, opts Options) error {
	if !opts.RegenOnly && !opts.Resync {
		if opts.RPMOutput == "" || opts.RPMBuildroot == "" {
			return errors.Mark(
				errors.New("an RPM output dir and an RPM buildroot must both be given, "+
					"or select the regen mode to regenerate just the repo"), ErrUsage)
		}
		if err := populate(config, opts); err != nil {
			return err
		}
	}

	if !opts.Resync {
		gen := NewGenerator(config, opts.Runner)
		if err := gen.Generate(ctx); err != nil {
			return err
		}
		if err := DirSyncTree(config.RootDir); err != nil {
			return err
		}
	}

	syncer := NewSyncer(config, account, opts.Runner, opts.Resync)
	return syncer.Push(ctx, opts.Confirm)
}

// populate derives the release from the build output and copies
// everything into the local tree.
func populate(config *Config, opts Options) error {
	buildroot, err := filepath.Abs(opts.RPMBuildroot)
	if err != nil {
		return errors.Wrap(err, "buildroot")
	}
	rpmOutput, err := filepath.Abs(opts.RPMOutput)
	if err != nil {
		return errors.Wrap(err, "rpm output")
	}

	release, extractDir, err := build.Discover(buildroot)
	if err != nil {
		return err
	}
	slog.Info("publishing release",
		"version", release.Version, "release", release.Tag, "guest-agent", release.GuestAgentTag)

	artifacts, err := build.CollectArtifacts(extractDir, rpmOutput)
	if err != nil {
		return err
	}

	return NewTree(config, release, artifacts, opts.Quiet).Populate()
}
