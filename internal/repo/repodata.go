package repo

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/virtio-win/mirrorpush/internal/rpmmd"
)

// pools are the repository directories holding generated metadata.
var pools = []string{"latest", "stable", "srpms"}

// Generator regenerates the yum repository metadata: the stable and
// latest alias pools, the createrepo_c indexes, and the root files.
type Generator struct {
	config *Config
	runner Runner
}

// NewGenerator returns a Generator for the configured tree.
func NewGenerator(config *Config, runner Runner) *Generator {
	return &Generator{config: config, runner: runner}
}

// linkStable ensures a stable pool link for every curated stable
// release. A stable RPM missing from the binary pool aborts the run.
func (g *Generator) linkStable() error {
	for _, ver := range g.config.Stable {
		filename := "virtio-win-" + ver + ".noarch.rpm"
		_, err := EnsureLink(g.config.RepoDir(), Alias{
			Target: filepath.Join("rpms", filename),
			Link:   filepath.Join("stable", filename),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// linkLatest ensures a latest pool link for every RPM currently in the
// binary pool, not just the ones this run added. Historic links stay
// valid and new ones appear incrementally.
func (g *Generator) linkLatest() error {
	rpms, err := filepath.Glob(filepath.Join(g.config.RepoDir(), "rpms", "*.rpm"))
	if err != nil {
		return errors.Wrap(err, "latest links")
	}
	for _, path := range rpms {
		filename := filepath.Base(path)
		_, err := EnsureLink(g.config.RepoDir(), Alias{
			Target: filepath.Join("rpms", filename),
			Link:   filepath.Join("latest", filename),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// runCreaterepo updates the metadata of every pool and verifies what
// createrepo_c wrote.
func (g *Generator) runCreaterepo(ctx context.Context) error {
	for _, pool := range pools {
		dir := filepath.Join(g.config.RepoDir(), pool)
		// createrepo_c's progress output is noise here; stderr
		// still reaches the terminal.
		if _, err := g.runner.Output(ctx, "createrepo_c", dir, "--update"); err != nil {
			return err
		}
		if err := g.verifyRepodata(pool); err != nil {
			return err
		}
	}
	return nil
}

// verifyRepodata checks that the generated repomd.xml only references
// files that exist with their advertised sizes, and logs the package
// count from the primary index. Checksums stay createrepo's business.
func (g *Generator) verifyRepodata(pool string) error {
	dir := filepath.Join(g.config.RepoDir(), pool)

	f, err := os.Open(filepath.Join(dir, "repodata", "repomd.xml"))
	if err != nil {
		return errors.Mark(
			errors.Wrapf(err, "no repomd.xml in %s", pool), ErrExternalTool)
	}
	md, err := rpmmd.ParseRepomd(f)
	f.Close()
	if err != nil {
		return errors.Mark(err, ErrExternalTool)
	}

	for _, d := range md.Data {
		path := filepath.Join(dir, filepath.FromSlash(d.Location.Href))
		fi, err := os.Stat(path)
		if err != nil {
			return errors.Mark(
				errors.Wrapf(err, "repomd in %s references a missing file", pool), ErrExternalTool)
		}
		if d.Size > 0 && fi.Size() != d.Size {
			return errors.Mark(
				errors.Newf("%s is %d bytes, repomd says %d", path, fi.Size(), d.Size),
				ErrExternalTool)
		}
	}

	primary := md.Lookup("primary")
	if primary == nil {
		return errors.Mark(
			errors.Newf("repomd in %s has no primary index", pool), ErrExternalTool)
	}
	index, err := rpmmd.OpenIndex(filepath.Join(dir, filepath.FromSlash(primary.Location.Href)))
	if err != nil {
		return errors.Mark(err, ErrExternalTool)
	}
	defer index.Close()
	count, err := rpmmd.CountPackages(index)
	if err != nil {
		return errors.Mark(err, ErrExternalTool)
	}

	slog.Info("repodata updated", "pool", pool, "packages", count)
	return nil
}

// publishRootFiles puts the yum repo file and the changelog at the
// tree root, leaving identical files untouched.
func (g *Generator) publishRootFiles() error {
	files := []struct {
		src string
		dst string
	}{
		{"virtio-win.repo", "virtio-win.repo"},
		{"rpm_changelog", "CHANGELOG"},
	}
	for _, f := range files {
		src := filepath.Join(g.config.DataDir, f.src)
		if err := copyIfChanged(src, filepath.Join(g.config.RootDir, f.dst)); err != nil {
			return err
		}
	}
	return nil
}

// Generate rebuilds the alias pools, the repo metadata, and the root
// files.
func (g *Generator) Generate(ctx context.Context) error {
	if err := g.linkStable(); err != nil {
		return err
	}
	if err := g.linkLatest(); err != nil {
		return err
	}
	if err := g.runCreaterepo(ctx); err != nil {
		return err
	}
	return g.publishRootFiles()
}
