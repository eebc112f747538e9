package repo

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Alias couples one relative symlink with the redirect rule that
// advertises it on the web side. Target and Link are paths relative to
// the alias base directory; Root is the URL-path root used in the
// redirect rule.
type Alias struct {
	Target string
	Link   string
	Root   string
}

// Redirect returns the rule line for the alias.
func (a Alias) Redirect() string {
	return fmt.Sprintf("redirect permanent %s/%s %s/%s\n", a.Root, a.Link, a.Root, a.Target)
}

// EnsureLink makes baseDir/a.Link a relative symlink to baseDir/a.Target
// and returns the redirect rule for it.
//
// A link that already points at the right place is left untouched, so
// re-running a publish never dirties unrelated mtimes. A link pointing
// elsewhere, or a regular file in the way, is replaced atomically.
func EnsureLink(baseDir string, a Alias) (string, error) {
	srcpath := filepath.Join(baseDir, a.Target)
	if _, err := os.Stat(srcpath); err != nil {
		return "", errors.Mark(
			errors.Wrapf(err, "link target %s for link %s", srcpath, a.Link), ErrBrokenTarget)
	}

	rel, err := filepath.Rel(filepath.Dir(a.Link), a.Target)
	if err != nil {
		return "", errors.Wrapf(err, "relative path from %s to %s", a.Link, a.Target)
	}

	linkpath := filepath.Join(baseDir, a.Link)
	if current, err := os.Readlink(linkpath); err == nil && current == rel {
		slog.Debug("link is up to date", "link", linkpath, "target", rel)
		return a.Redirect(), nil
	}

	tmp := linkpath + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(rel, tmp); err != nil {
		return "", errors.Wrapf(err, "creating link %s", linkpath)
	}
	if err := os.Rename(tmp, linkpath); err != nil {
		os.Remove(tmp)
		return "", errors.Wrapf(err, "replacing link %s", linkpath)
	}
	if err := DirSync(filepath.Dir(linkpath)); err != nil {
		return "", err
	}

	slog.Info("linked", "link", linkpath, "target", rel)
	return a.Redirect(), nil
}
