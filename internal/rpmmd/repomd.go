// Package rpmmd reads the repodata metadata that createrepo_c generates
// for RPM repositories: the repomd.xml table of contents and the
// compressed index files it references.
package rpmmd

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Repomd is the parsed content of a repodata/repomd.xml file.
type Repomd struct {
	XMLName  xml.Name `xml:"repomd"`
	Revision string   `xml:"revision"`
	Data     []Data   `xml:"data"`
}

// Data is one <data> entry in repomd.xml, describing a single index
// file such as primary.xml.gz or filelists.xml.xz.
type Data struct {
	Type     string   `xml:"type,attr"`
	Location Location `xml:"location"`
	Size     int64    `xml:"size"`
	OpenSize int64    `xml:"open-size"`
}

// Location holds the href of an index file, relative to the repository
// directory that contains repodata/.
type Location struct {
	Href string `xml:"href,attr"`
}

// ParseRepomd decodes a repomd.xml document.
func ParseRepomd(r io.Reader) (*Repomd, error) {
	var md Repomd
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&md); err != nil {
		return nil, errors.Wrap(err, "rpmmd: decode repomd.xml")
	}
	if len(md.Data) == 0 {
		return nil, errors.New("rpmmd: repomd.xml lists no data entries")
	}
	return &md, nil
}

// Lookup returns the data entry of the given type (such as "primary"),
// or nil if repomd.xml does not list one.
func (md *Repomd) Lookup(typ string) *Data {
	for i := range md.Data {
		if md.Data[i].Type == typ {
			return &md.Data[i]
		}
	}
	return nil
}

// CountPackages reads the opening <metadata> element of an uncompressed
// primary index and returns its packages attribute.
func CountPackages(r io.Reader) (int, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return 0, errors.New("rpmmd: primary index has no metadata element")
		}
		if err != nil {
			return 0, errors.Wrap(err, "rpmmd: read primary index")
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "metadata" {
			return 0, errors.New("rpmmd: unexpected root element: " + start.Name.Local)
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "packages" {
				n, err := strconv.Atoi(attr.Value)
				if err != nil {
					return 0, errors.Wrap(err, "rpmmd: packages attribute")
				}
				return n, nil
			}
		}
		return 0, errors.New("rpmmd: metadata element has no packages attribute")
	}
}
