package repo

import (
	"io/fs"
	"os"
	"path/filepath"
)

// DirSync calls fsync(2) on the directory to save changes in the
// directory.
//
// This should be called after os.Create, os.Rename and so on.
func DirSync(d string) error {
	f, err := os.OpenFile(d, os.O_RDONLY, 0755)
	if err != nil {
		return err
	}
	err = f.Sync()
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DirSyncTree calls DirSync recursively on a directory tree rooted
// from d.
func DirSyncTree(d string) error {
	return filepath.WalkDir(d, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		return DirSync(path)
	})
}
