package build

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// mediaNames are the unversioned disk-image names the build tree
// exposes as symlinks to version-stamped files.
var mediaNames = []string{
	"virtio-win_x86.vfd",
	"virtio-win_amd64.vfd",
	"virtio-win.iso",
}

// MediaPair couples one version-stamped disk image with the unversioned
// alias name the download tree advertises for it.
type MediaPair struct {
	// Versioned is the path of the version-stamped file the build
	// symlink resolves to.
	Versioned string
	// Alias is the unversioned basename, e.g. "virtio-win.iso".
	Alias string
}

// ArtifactSet lists everything one publish run copies out of a build.
type ArtifactSet struct {
	// ShareDir is usr/share/virtio-win under the extracted tree.
	ShareDir string
	// BuildInput is the RPM build output tree, archived wholesale.
	BuildInput string

	GuestAgent []string
	Installers []string
	Media      []MediaPair
	Packages   []string
}

// globAll resolves a glob pattern that must match at least one path.
func globAll(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrap(err, "bad glob pattern")
	}
	if len(matches) == 0 {
		return nil, errors.Mark(
			errors.Newf("no match for %q", pattern), ErrNotFound)
	}
	return matches, nil
}

// resolveMedia checks that name under sharedir is a symlink to an
// existing version-stamped file and returns the pair.
func resolveMedia(sharedir, name string) (MediaPair, error) {
	link := filepath.Join(sharedir, name)

	fi, err := os.Lstat(link)
	if err != nil {
		if os.IsNotExist(err) {
			return MediaPair{}, errors.Mark(
				errors.Newf("disk image %q not in build tree", link), ErrNotFound)
		}
		return MediaPair{}, errors.Wrapf(err, "lstat %s", link)
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return MediaPair{}, errors.Newf("disk image %q is not a symlink to a versioned file", link)
	}

	dest, err := os.Readlink(link)
	if err != nil {
		return MediaPair{}, errors.Wrapf(err, "readlink %s", link)
	}
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(sharedir, dest)
	}
	if _, err := os.Stat(dest); err != nil {
		return MediaPair{}, errors.Wrapf(err, "disk image %q points at missing file", link)
	}

	return MediaPair{Versioned: dest, Alias: name}, nil
}

// findRPMs walks root and returns every .rpm below it.
func findRPMs(root string) ([]string, error) {
	var rpms []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".rpm") {
			rpms = append(rpms, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", root)
	}
	if len(rpms) == 0 {
		return nil, errors.Mark(
			errors.Newf("no .rpm files under %q", root), ErrNotFound)
	}
	return rpms, nil
}

// CollectArtifacts gathers the publishable artifacts from an extracted
// build tree and the RPM output directory. It only reads; every missing
// or malformed artifact aborts the collection.
func CollectArtifacts(extractDir, rpmOutput string) (*ArtifactSet, error) {
	sharedir := filepath.Join(extractDir, "usr", "share", "virtio-win")
	if fi, err := os.Stat(sharedir); err != nil || !fi.IsDir() {
		return nil, errors.Mark(
			errors.Newf("no share directory %q in extracted tree", sharedir), ErrNotFound)
	}

	agents, err := globAll(filepath.Join(sharedir, "guest-agent", "*"))
	if err != nil {
		return nil, err
	}

	installers, err := globAll(filepath.Join(sharedir, "installer", "*"))
	if err != nil {
		return nil, err
	}

	var media []MediaPair
	for _, name := range mediaNames {
		p, err := resolveMedia(sharedir, name)
		if err != nil {
			return nil, err
		}
		media = append(media, p)
	}

	rpms, err := findRPMs(rpmOutput)
	if err != nil {
		return nil, err
	}

	return &ArtifactSet{
		ShareDir:   sharedir,
		BuildInput: rpmOutput,
		GuestAgent: agents,
		Installers: installers,
		Media:      media,
		Packages:   rpms,
	}, nil
}
