// Package build inspects the output of a finished RPM build and derives
// the canonical version identifiers and artifact lists a publish run
// needs. It only reads the filesystem; all mutation happens elsewhere.
package build

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for build-output discovery. Callers distinguish a
// missing artifact from an ambiguous one with errors.Is.
var (
	ErrNotFound         = errors.New("build artifact not found")
	ErrAmbiguous        = errors.New("build artifact ambiguous")
	ErrMalformedVersion = errors.New("malformed version")
)

// releaseTagRE splits a release tag into the distribution version and
// the trailing numeric build suffix. The version number needs at least
// one dot so bare integers are not mistaken for versions.
var releaseTagRE = regexp.MustCompile(`^(.+-[0-9]+(?:\.[0-9]+)+)-([0-9]+)$`)

// Release identifies one versioned publish unit. Both strings are
// derived once per run and never change afterwards.
type Release struct {
	// Version is the distribution version, e.g. "virtio-win-0.1.171".
	Version string
	// Tag is the full release tag, e.g. "virtio-win-0.1.171-6".
	Tag string
	// GuestAgentTag names the bundled qemu-ga release,
	// e.g. "qemu-ga-win-100.0.0.0-3.el7ev".
	GuestAgentTag string
}

// ParseRelease derives Version and Tag from the basename of an
// extracted build tree such as "virtio-win-0.1.171-6.x86_64".
// The architecture suffix after the final dot is discarded.
func ParseRelease(basename string) (Release, error) {
	dot := strings.LastIndex(basename, ".")
	if dot < 0 {
		return Release{}, errors.Mark(
			errors.Newf("no architecture suffix in %q", basename), ErrMalformedVersion)
	}
	tag := basename[:dot]

	m := releaseTagRE.FindStringSubmatch(tag)
	if m == nil {
		return Release{}, errors.Mark(
			errors.Newf("release tag %q does not end in <version>-<build>", tag), ErrMalformedVersion)
	}

	return Release{Version: m[1], Tag: tag}, nil
}

// globOne resolves a glob pattern that must match exactly one path.
func globOne(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", errors.Wrap(err, "bad glob pattern")
	}
	switch len(matches) {
	case 0:
		return "", errors.Mark(
			errors.Newf("no match for %q", pattern), ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", errors.Mark(
			errors.Newf("%d matches for %q, expected exactly one", len(matches), pattern), ErrAmbiguous)
	}
}

// FindExtractDir locates the single extracted virtio-win tree under the
// RPM buildroot. Zero or multiple matches are discovery failures; the
// ambiguity is never resolved automatically.
func FindExtractDir(buildroot string) (string, error) {
	return globOne(filepath.Join(buildroot, "virtio-win*.x86_64"))
}

// FindGuestAgentDir locates the single qemu-ga-win subdirectory below
// the buildroot and returns its path. Its basename is the guest-agent
// release tag.
func FindGuestAgentDir(buildroot string) (string, error) {
	return globOne(filepath.Join(buildroot, "*", "qemu-ga-win*"))
}

// Discover resolves the buildroot into a fully populated Release.
func Discover(buildroot string) (Release, string, error) {
	extractDir, err := FindExtractDir(buildroot)
	if err != nil {
		return Release{}, "", err
	}

	rel, err := ParseRelease(filepath.Base(extractDir))
	if err != nil {
		return Release{}, "", err
	}

	gaDir, err := FindGuestAgentDir(buildroot)
	if err != nil {
		return Release{}, "", err
	}
	rel.GuestAgentTag = filepath.Base(gaDir)

	return rel, extractDir, nil
}
