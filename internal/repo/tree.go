package repo

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/cockroachdb/errors"

	"github.com/virtio-win/mirrorpush/internal/build"
)

// Tree populates the mirror tree with the artifacts of one release.
// Every step except the disk-image copy is safe to repeat after a
// partial failure; the disk-image copy refuses to touch a release
// directory that already exists.
type Tree struct {
	config    *Config
	release   build.Release
	artifacts *build.ArtifactSet
	quiet     bool
}

// NewTree returns a Tree bound to one release.
func NewTree(config *Config, release build.Release, artifacts *build.ArtifactSet, quiet bool) *Tree {
	return &Tree{
		config:    config,
		release:   release,
		artifacts: artifacts,
		quiet:     quiet,
	}
}

// guestAgentDir returns the guest-agent archive directory for this
// release, relative to the direct-download area.
func (t *Tree) guestAgentDir() string {
	return filepath.Join("archive-qemu-ga", t.release.GuestAgentTag)
}

// mediaDir returns the disk-image archive directory for this release,
// relative to the direct-download area.
func (t *Tree) mediaDir() string {
	return filepath.Join("archive-virtio", t.release.Tag)
}

// AddGuestAgent copies the guest-agent installers into the tree. An
// already-uploaded guest agent is skipped, since the same agent build
// ships with many virtio-win releases.
func (t *Tree) AddGuestAgent() error {
	dir := filepath.Join(t.config.DirectDir(), t.guestAgentDir())
	if _, err := os.Stat(dir); err == nil {
		slog.Info("guest agent already uploaded, skipping", "dir", filepath.Base(dir))
		return nil
	}

	if err := os.Mkdir(dir, 0755); err != nil {
		return errors.Wrap(err, "guest agent")
	}
	for _, path := range t.artifacts.GuestAgent {
		if err := copyFile(path, filepath.Join(dir, filepath.Base(path))); err != nil {
			return err
		}
	}

	slog.Info("copied guest agent installers",
		"release", t.release.GuestAgentTag, "files", len(t.artifacts.GuestAgent))
	return nil
}

// AddMedia copies the version-stamped disk images into a fresh release
// directory and writes its redirect rules. The directory holds only
// version-stamped files; the unversioned names exist as redirects, so
// every downloaded file carries an exact version.
//
// An existing release directory aborts the run. Disk images define a
// release and must never be overwritten or doubly published.
func (t *Tree) AddMedia() error {
	dir := filepath.Join(t.config.DirectDir(), t.mediaDir())
	if _, err := os.Lstat(dir); err == nil {
		return errors.Mark(
			errors.Newf("%s already exists, make sure nothing is being overwritten", dir),
			ErrAlreadyPublished)
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, "disk images")
	}

	if err := os.Mkdir(dir, 0755); err != nil {
		return errors.Wrap(err, "disk images")
	}

	root := t.config.HTTPRoot + "/" + filepath.ToSlash(t.mediaDir())
	var rules strings.Builder
	for _, m := range t.artifacts.Media {
		base := filepath.Base(m.Versioned)
		if err := copyFile(m.Versioned, filepath.Join(dir, base)); err != nil {
			return err
		}
		rules.WriteString(Alias{Target: base, Link: m.Alias, Root: root}.Redirect())
	}

	if err := os.WriteFile(filepath.Join(dir, ".htaccess"), []byte(rules.String()), 0644); err != nil {
		return errors.Wrap(err, "disk images")
	}

	slog.Info("copied disk images", "release", t.release.Tag, "files", len(t.artifacts.Media))
	return nil
}

// AddInstallers copies the virtio-win-gt installers into the release
// directory created by AddMedia. These may be added incrementally, so
// there is no duplicate check.
func (t *Tree) AddInstallers() error {
	dir := filepath.Join(t.config.DirectDir(), t.mediaDir())
	for _, path := range t.artifacts.Installers {
		if err := copyFile(path, filepath.Join(dir, filepath.Base(path))); err != nil {
			return err
		}
	}

	slog.Info("copied installers", "release", t.release.Tag, "files", len(t.artifacts.Installers))
	return nil
}

// TopAliases points latest-qemu-ga and latest-virtio at this release,
// points stable-virtio at the first stable list entry, and rewrites
// the root redirect file with the three rules.
func (t *Tree) TopAliases() error {
	aliases := []Alias{
		{Target: t.guestAgentDir(), Link: "latest-qemu-ga", Root: t.config.HTTPRoot},
		{Target: t.mediaDir(), Link: "latest-virtio", Root: t.config.HTTPRoot},
		{
			Target: filepath.Join("archive-virtio", "virtio-win-"+t.config.Stable[0]),
			Link:   "stable-virtio",
			Root:   t.config.HTTPRoot,
		},
	}

	var rules strings.Builder
	for _, a := range aliases {
		rule, err := EnsureLink(t.config.DirectDir(), a)
		if err != nil {
			return err
		}
		rules.WriteString(rule)
	}

	htaccess := filepath.Join(t.config.DirectDir(), ".htaccess")
	if err := os.WriteFile(htaccess, []byte(rules.String()), 0644); err != nil {
		return errors.Wrap(err, "top aliases")
	}
	return nil
}

// AddBuildInput archives the build input so the release can be
// reproduced, then points latest-build at the archive. Content that is
// already archived is left alone.
func (t *Tree) AddBuildInput() error {
	topdir := filepath.Join(t.config.DirectDir(), "virtio-win-pkg-scripts-input")
	dir := filepath.Join(topdir, t.release.Tag)

	if _, err := os.Stat(dir); err == nil {
		slog.Info("build input already archived, not changing content", "dir", dir)
	} else {
		if err := os.Mkdir(dir, 0755); err != nil {
			return errors.Wrap(err, "build input")
		}
		if err := copyTree(t.artifacts.BuildInput, dir); err != nil {
			return err
		}
		slog.Info("archived build input", "release", t.release.Tag)
	}

	// The redirect rule is discarded: latest-build is reached by
	// browsing, not by a published URL.
	_, err := EnsureLink(topdir, Alias{
		Target: t.release.Tag,
		Link:   "latest-build",
		Root:   t.config.HTTPRoot + "/virtio-win-pkg-scripts-input",
	})
	return err
}

// AddPackages copies every built RPM into the binary or source package
// pool, chosen by file extension.
func (t *Tree) AddPackages() error {
	var bar *pb.ProgressBar
	if !t.quiet {
		bar = pb.StartNew(len(t.artifacts.Packages))
	}

	for _, path := range t.artifacts.Packages {
		pool := "rpms"
		if strings.HasSuffix(path, ".src.rpm") {
			pool = "srpms"
		}
		dst := filepath.Join(t.config.RepoDir(), pool, filepath.Base(path))
		if err := copyFile(path, dst); err != nil {
			return err
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	slog.Info("copied packages", "release", t.release.Tag, "count", len(t.artifacts.Packages))
	return nil
}

// Populate runs every population step in dependency order.
func (t *Tree) Populate() error {
	if err := t.AddGuestAgent(); err != nil {
		return err
	}
	if err := t.AddMedia(); err != nil {
		return err
	}
	if err := t.AddInstallers(); err != nil {
		return err
	}
	if err := t.TopAliases(); err != nil {
		return err
	}
	if err := t.AddBuildInput(); err != nil {
		return err
	}
	return t.AddPackages()
}
