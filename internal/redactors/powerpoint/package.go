// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package powerpoint

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	presentationPart = "ppt/presentation.xml"
	presentationRels = "ppt/_rels/presentation.xml.rels"

	relTypeSlide      = "/slide"
	relTypeNotesSlide = "/notesSlide"
)

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// presentationPackage is an opened .pptx archive
type presentationPackage struct {
	zr    *zip.Reader
	files map[string]*zip.File
}

// slideParts names the part of one slide and of its speaker notes, if any
type slideParts struct {
	Slide string
	Notes string
}

func openPackage(data []byte) (*presentationPackage, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open presentation archive: %w", err)
	}
	pkg := &presentationPackage{zr: zr, files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		pkg.files[f.Name] = f
	}
	if _, ok := pkg.files[presentationPart]; !ok {
		return nil, fmt.Errorf("archive has no %s part", presentationPart)
	}
	return pkg, nil
}

func (p *presentationPackage) read(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type relationships struct {
	Items []relationship `xml:"Relationship"`
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type presentationXML struct {
	SlideIDs []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

// relsFor returns the relationships of part keyed by id. A part without a
// relationships file has none.
func (p *presentationPackage) relsFor(part string) (map[string]relationship, error) {
	dir, file := path.Split(part)
	relsName := dir + "_rels/" + file + ".rels"
	if _, ok := p.files[relsName]; !ok {
		return nil, nil
	}
	data, err := p.read(relsName)
	if err != nil {
		return nil, err
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", relsName, err)
	}
	out := make(map[string]relationship, len(rels.Items))
	for _, r := range rels.Items {
		out[r.ID] = r
	}
	return out, nil
}

func resolveTarget(part, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(path.Dir(part), target))
}

// slides returns the slide parts in presentation order. When the slide list
// cannot be read the slide parts are ordered by their number.
func (p *presentationPackage) slides() ([]slideParts, error) {
	names, err := p.orderedSlideNames()
	if err != nil || len(names) == 0 {
		names = p.numberedSlideNames()
	}

	out := make([]slideParts, 0, len(names))
	for _, name := range names {
		sp := slideParts{Slide: name}
		rels, err := p.relsFor(name)
		if err != nil {
			return nil, err
		}
		for _, r := range rels {
			if strings.HasSuffix(r.Type, relTypeNotesSlide) {
				sp.Notes = resolveTarget(name, r.Target)
				break
			}
		}
		out = append(out, sp)
	}
	return out, nil
}

func (p *presentationPackage) orderedSlideNames() ([]string, error) {
	data, err := p.read(presentationPart)
	if err != nil {
		return nil, err
	}
	var pres presentationXML
	if err := xml.Unmarshal(data, &pres); err != nil {
		return nil, err
	}
	rels, err := p.relsFor(presentationPart)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, id := range pres.SlideIDs {
		r, ok := rels[id.RID]
		if !ok || !strings.HasSuffix(r.Type, relTypeSlide) || r.TargetMode == "External" {
			continue
		}
		name := resolveTarget(presentationPart, r.Target)
		if _, ok := p.files[name]; ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (p *presentationPackage) numberedSlideNames() []string {
	type numbered struct {
		name string
		n    int
	}
	var found []numbered
	for name := range p.files {
		m := slidePartPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		found = append(found, numbered{name, n})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}
	return names
}

// repackage writes the archive again in its original entry order. Entries in
// replaced get the new content, every other entry is copied without
// recompression.
func (p *presentationPackage) repackage(replaced map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range p.zr.File {
		data, ok := replaced[f.Name]
		if !ok {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
			}
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ZIP entry for %s: %w", f.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write content for %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
