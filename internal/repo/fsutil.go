package repo

import (
	"bytes"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// copyFile copies src to dst and fsyncs the result.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "copy")
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "copy")
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copying %s", src)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return errors.Wrapf(err, "syncing %s", dst)
	}
	return out.Close()
}

// copyTree copies the directory tree rooted at src into dst, which
// must already exist.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.Wrap(err, "copy tree")
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.Mkdir(target, 0755)
		}
		return copyFile(path, target)
	})
}

// copyIfChanged copies src to dst unless dst already has identical
// content, so unchanged files keep their timestamps.
func copyIfChanged(src, dst string) error {
	want, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrap(err, "copy")
	}

	have, err := os.ReadFile(dst)
	if err == nil && bytes.Equal(have, want) {
		slog.Info("already up to date, skipping", "path", dst)
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "copy")
	}

	return os.WriteFile(dst, want, 0644)
}
