package repo

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

// fakeCreaterepo synthesizes the repodata that createrepo_c would
// write: a repomd.xml referencing a gzipped primary index whose
// packages attribute counts the RPMs in the pool.
func fakeCreaterepo(t *testing.T) func(name string, args []string) error {
	t.Helper()

	return func(name string, args []string) error {
		if name != "createrepo_c" {
			return nil
		}
		dir := args[0]
		rpms, err := filepath.Glob(filepath.Join(dir, "*.rpm"))
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Join(dir, "repodata"), 0755); err != nil {
			return err
		}

		f, err := os.Create(filepath.Join(dir, "repodata", "primary.xml.gz"))
		if err != nil {
			return err
		}
		zw := gzip.NewWriter(f)
		fmt.Fprintf(zw, "<?xml version=\"1.0\"?>\n<metadata xmlns=\"http://linux.duke.edu/metadata/common\" packages=\"%d\">\n</metadata>\n", len(rpms))
		if err := zw.Close(); err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		repomd := `<?xml version="1.0"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <revision>1724457600</revision>
  <data type="primary">
    <location href="repodata/primary.xml.gz"/>
  </data>
</repomd>
`
		return os.WriteFile(filepath.Join(dir, "repodata", "repomd.xml"), []byte(repomd), 0644)
	}
}

// newGeneratorTestConfig builds a tree whose binary pool satisfies a
// two-entry stable list, plus the data files published to the root.
func newGeneratorTestConfig(t *testing.T) *Config {
	t.Helper()

	c := newTreeTestConfig(t)
	c.Stable = []string{"0.1.185-2", "0.1.171-1"}

	rpms := []string{
		"repo/rpms/virtio-win-0.1.185-2.noarch.rpm",
		"repo/rpms/virtio-win-0.1.171-1.noarch.rpm",
		"repo/rpms/virtio-win-0.1.200-1.noarch.rpm",
		"repo/srpms/virtio-win-0.1.200-1.src.rpm",
	}
	for _, p := range rpms {
		if err := os.WriteFile(filepath.Join(c.RootDir, p), []byte(p), 0644); err != nil {
			t.Fatal(err)
		}
	}

	c.DataDir = t.TempDir()
	data := map[string]string{
		"virtio-win.repo": "[virtio-win-latest]\nname=virtio-win latest\n",
		"rpm_changelog":   "* Mon Aug 24 2026 builder - 0.1.200-1\n",
	}
	for name, content := range data {
		if err := os.WriteFile(filepath.Join(c.DataDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

func TestGeneratorGenerate(t *testing.T) {
	t.Parallel()

	c := newGeneratorTestConfig(t)
	runner := &fakeRunner{onCommand: fakeCreaterepo(t)}
	g := NewGenerator(c, runner)

	if err := g.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}

	stable := filepath.Join(c.RepoDir(), "stable", "virtio-win-0.1.185-2.noarch.rpm")
	dest, err := os.Readlink(stable)
	if err != nil {
		t.Fatal(err)
	}
	if dest != "../rpms/virtio-win-0.1.185-2.noarch.rpm" {
		t.Errorf("stable link points at %q", dest)
	}

	latest, err := filepath.Glob(filepath.Join(c.RepoDir(), "latest", "*.rpm"))
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 3 {
		t.Errorf("latest pool has %d links, want 3", len(latest))
	}

	want := []string{
		"createrepo_c " + filepath.Join(c.RepoDir(), "latest") + " --update",
		"createrepo_c " + filepath.Join(c.RepoDir(), "stable") + " --update",
		"createrepo_c " + filepath.Join(c.RepoDir(), "srpms") + " --update",
	}
	got := runner.commandLines()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("commands:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	repoFile, err := os.ReadFile(filepath.Join(c.RootDir, "virtio-win.repo"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(repoFile), "virtio-win-latest") {
		t.Errorf("published repo file = %q", repoFile)
	}
	if _, err := os.Stat(filepath.Join(c.RootDir, "CHANGELOG")); err != nil {
		t.Errorf("CHANGELOG not published: %v", err)
	}
}

func TestGeneratorStableMissing(t *testing.T) {
	t.Parallel()

	c := newGeneratorTestConfig(t)
	c.Stable = append(c.Stable, "0.1.96-1")
	runner := &fakeRunner{onCommand: fakeCreaterepo(t)}

	err := NewGenerator(c, runner).Generate(context.Background())
	if !errors.Is(err, ErrBrokenTarget) {
		t.Fatalf("Generate = %v, want ErrBrokenTarget", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("createrepo_c ran despite a bad stable list: %v", runner.commandLines())
	}
}

func TestGeneratorRejectsBadRepodata(t *testing.T) {
	t.Parallel()

	c := newGeneratorTestConfig(t)
	runner := &fakeRunner{onCommand: func(name string, args []string) error {
		if name != "createrepo_c" {
			return nil
		}
		dir := filepath.Join(args[0], "repodata")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		repomd := `<repomd><data type="primary"><location href="repodata/primary.xml.gz"/></data></repomd>`
		return os.WriteFile(filepath.Join(dir, "repomd.xml"), []byte(repomd), 0644)
	}}

	err := NewGenerator(c, runner).Generate(context.Background())
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("Generate = %v, want ErrExternalTool for a dangling repomd reference", err)
	}
}

func TestGeneratorNoRepodataWritten(t *testing.T) {
	t.Parallel()

	c := newGeneratorTestConfig(t)
	runner := &fakeRunner{}

	err := NewGenerator(c, runner).Generate(context.Background())
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("Generate = %v, want ErrExternalTool when no repomd.xml appears", err)
	}
}
