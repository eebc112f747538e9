package rpmmd

import (
	"strings"
	"testing"
)

const sampleRepomd = `<?xml version="1.0" encoding="UTF-8"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo" xmlns:rpm="http://linux.duke.edu/metadata/rpm">
  <revision>1585162817</revision>
  <data type="primary">
    <checksum type="sha256">5dc1e6e73c84803f059bb3065e684e56adfc289a7e398946574d79dee6cb7b54</checksum>
    <open-checksum type="sha256">fa43c22cf0bdbfd8d22ed271b59a370ad608734b859ddf0b2e18a4d441c6b59c</open-checksum>
    <location href="repodata/5dc1e6e7-primary.xml.gz"/>
    <timestamp>1585162817</timestamp>
    <size>1312</size>
    <open-size>11528</open-size>
  </data>
  <data type="filelists">
    <location href="repodata/331fbf9e-filelists.xml.xz"/>
    <size>21771</size>
    <open-size>226718</open-size>
  </data>
  <data type="other">
    <location href="repodata/d2f36ab6-other.xml.gz"/>
    <size>19041</size>
    <open-size>161801</open-size>
  </data>
</repomd>
`

func TestParseRepomd(t *testing.T) {
	t.Parallel()

	md, err := ParseRepomd(strings.NewReader(sampleRepomd))
	if err != nil {
		t.Fatal(err)
	}

	if md.Revision != "1585162817" {
		t.Errorf(`md.Revision = %q, want "1585162817"`, md.Revision)
	}
	if len(md.Data) != 3 {
		t.Fatalf("len(md.Data) = %d, want 3", len(md.Data))
	}

	primary := md.Lookup("primary")
	if primary == nil {
		t.Fatal("no primary data entry")
	}
	if primary.Location.Href != "repodata/5dc1e6e7-primary.xml.gz" {
		t.Errorf("primary.Location.Href = %q", primary.Location.Href)
	}
	if primary.Size != 1312 {
		t.Errorf("primary.Size = %d, want 1312", primary.Size)
	}
	if primary.OpenSize != 11528 {
		t.Errorf("primary.OpenSize = %d, want 11528", primary.OpenSize)
	}

	if md.Lookup("filelists") == nil {
		t.Error("no filelists data entry")
	}
	if md.Lookup("updateinfo") != nil {
		t.Error("Lookup should return nil for a type repomd.xml does not list")
	}
}

func TestParseRepomdEmpty(t *testing.T) {
	t.Parallel()

	const empty = `<?xml version="1.0"?><repomd xmlns="http://linux.duke.edu/metadata/repo"></repomd>`
	if _, err := ParseRepomd(strings.NewReader(empty)); err == nil {
		t.Error("repomd.xml without data entries should be rejected")
	}

	if _, err := ParseRepomd(strings.NewReader("not xml at all")); err == nil {
		t.Error("malformed XML should be rejected")
	}
}

func TestCountPackages(t *testing.T) {
	t.Parallel()

	const primary = `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" xmlns:rpm="http://linux.duke.edu/metadata/rpm" packages="24">
<package type="rpm"><name>virtio-win</name></package>
</metadata>
`
	n, err := CountPackages(strings.NewReader(primary))
	if err != nil {
		t.Fatal(err)
	}
	if n != 24 {
		t.Errorf("CountPackages = %d, want 24", n)
	}
}

func TestCountPackagesErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  string
	}{
		{"empty document", ""},
		{"wrong root", `<filelists packages="3"></filelists>`},
		{"missing attribute", `<metadata></metadata>`},
		{"non-numeric attribute", `<metadata packages="lots"></metadata>`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := CountPackages(strings.NewReader(tc.doc)); err == nil {
				t.Errorf("CountPackages(%q) should fail", tc.doc)
			}
		})
	}
}
