package rpmmd

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ulikunitz/xz"
)

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeXz(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	xw, err := xz.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := xw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := xw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	const content = `<metadata packages="2"></metadata>`

	plain := filepath.Join(dir, "primary.xml")
	if err := os.WriteFile(plain, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	gz := filepath.Join(dir, "primary.xml.gz")
	writeGzip(t, gz, content)
	xzPath := filepath.Join(dir, "primary.xml.xz")
	writeXz(t, xzPath, content)

	for _, path := range []string{plain, gz, xzPath} {
		r, err := OpenIndex(path)
		if err != nil {
			t.Fatalf("OpenIndex(%s): %v", path, err)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if err := r.Close(); err != nil {
			t.Errorf("close %s: %v", path, err)
		}
		if string(data) != content {
			t.Errorf("OpenIndex(%s) read %q, want %q", path, data, content)
		}
	}
}

func TestOpenIndexMissing(t *testing.T) {
	t.Parallel()

	if _, err := OpenIndex(filepath.Join(t.TempDir(), "no-such.xml.gz")); err == nil {
		t.Error("OpenIndex should fail for a missing file")
	}
}

func TestOpenIndexBadGzip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.xml.gz")
	if err := os.WriteFile(path, []byte("this is not gzip"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenIndex(path); err == nil {
		t.Error("OpenIndex should fail for corrupt gzip data")
	}
}

func TestCountPackagesFromCompressedIndex(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "primary.xml.gz")
	writeGzip(t, path, `<metadata xmlns="http://linux.duke.edu/metadata/common" packages="7"></metadata>`)

	r, err := OpenIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	n, err := CountPackages(r)
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("CountPackages = %d, want 7", n)
	}
}
