// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package testutil builds small document fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// pdfWriter lays out numbered objects in order and records their offsets for
// the cross-reference table
type pdfWriter struct {
	b       strings.Builder
	offsets []int
}

func newPDFWriter(objects int) *pdfWriter {
	w := &pdfWriter{offsets: make([]int, objects+1)}
	w.b.WriteString("%PDF-1.4\n")
	return w
}

func (w *pdfWriter) object(nr int, body string) {
	w.offsets[nr] = w.b.Len()
	fmt.Fprintf(&w.b, "%d 0 obj\n%s\nendobj\n", nr, body)
}

// stream writes a stream object; dict holds the entries besides Length
func (w *pdfWriter) stream(nr int, dict, data string) {
	w.offsets[nr] = w.b.Len()
	fmt.Fprintf(&w.b, "%d 0 obj\n<< %s/Length %d >>\nstream\n%s\nendstream\nendobj\n", nr, dict, len(data), data)
}

// bytes finishes the file with object 1 as the document catalog
func (w *pdfWriter) bytes() []byte {
	total := len(w.offsets) - 1
	xrefOffset := w.b.Len()
	fmt.Fprintf(&w.b, "xref\n0 %d\n", total+1)
	w.b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= total; i++ {
		fmt.Fprintf(&w.b, "%010d 00000 n \n", w.offsets[i])
	}
	fmt.Fprintf(&w.b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xrefOffset)
	return []byte(w.b.String())
}

const (
	catalogObject = "<< /Type /Catalog /Pages 2 0 R >>"
	pageBox       = "/MediaBox [0 0 612 792]"
)

// courierFont is a simple font with explicit widths so glyph positions are exact
func courierFont() string {
	widths := strings.TrimSpace(strings.Repeat("600 ", 95))
	return fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>", widths)
}

// BuildTextPDF writes a minimal PDF with one page per content stream. All
// pages share a Courier font with explicit widths so glyph positions are exact.
func BuildTextPDF(streams ...string) []byte {
	nPages := len(streams)
	// objects: 1 catalog, 2 pages, 3 font, then page/content pairs
	w := newPDFWriter(3 + 2*nPages)
	w.object(1, catalogObject)

	kids := make([]string, nPages)
	for i := range streams {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	w.object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), nPages))
	w.object(3, courierFont())

	for i, stream := range streams {
		pageObj, contentObj := 4+2*i, 5+2*i
		w.object(pageObj, fmt.Sprintf("<< /Type /Page /Parent 2 0 R %s /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>", pageBox, contentObj))
		w.stream(contentObj, "", stream)
	}
	return w.bytes()
}

// TextStream draws each line 16 points below the previous one in F1 at 12pt
func TextStream(lines ...string) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			b.WriteString("0 -16 Td\n")
		}
		fmt.Fprintf(&b, "(%s) Tj\n", line)
	}
	b.WriteString("ET")
	return b.String()
}

// identityToUnicode maps the two byte codes 0x0020 to 0x007E onto the same
// code points; other codes, including the space glyph at 3, map to nothing
const identityToUnicode = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
1 beginbfrange
<0020> <007E> <0020>
endbfrange
endcmap
CMapName currentdict /CMapResource defineresource pop
end
end`

// BuildCIDFontPDF writes a one page PDF that shows each line in a composite
// font with Identity-H encoding, the layout office suites export. Character
// codes equal the UTF-16 code units of the text and a ToUnicode CMap maps
// them back.
func BuildCIDFontPDF(lines ...string) []byte {
	// objects: 1 catalog, 2 pages, 3 Type0 font, 4 page, 5 content,
	// 6 descendant font, 7 ToUnicode, 8 font descriptor
	w := newPDFWriter(8)
	w.object(1, catalogObject)
	w.object(2, "<< /Type /Pages /Kids [4 0 R] /Count 1 >>")
	w.object(3, "<< /Type /Font /Subtype /Type0 /BaseFont /ArialMT /Encoding /Identity-H /DescendantFonts [6 0 R] /ToUnicode 7 0 R >>")
	w.object(4, fmt.Sprintf("<< /Type /Page /Parent 2 0 R %s /Contents 5 0 R /Resources << /Font << /F1 3 0 R >> >> >>", pageBox))

	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			b.WriteString("0 -16 Td\n")
		}
		b.WriteByte('<')
		for _, u := range utf16.Encode([]rune(line)) {
			fmt.Fprintf(&b, "%04X", u)
		}
		b.WriteString("> Tj\n")
	}
	b.WriteString("ET")
	w.stream(5, "", b.String())

	w.object(6, "<< /Type /Font /Subtype /CIDFontType2 /BaseFont /ArialMT /CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> /FontDescriptor 8 0 R /DW 500 /CIDToGIDMap /Identity >>")
	w.stream(7, "", identityToUnicode)
	w.object(8, "<< /Type /FontDescriptor /FontName /ArialMT /Flags 32 /FontBBox [-665 -325 2000 1040] /ItalicAngle 0 /Ascent 905 /Descent -212 /CapHeight 716 /StemV 80 >>")
	return w.bytes()
}

// BuildFormPDF writes a one page PDF whose content only paints the form
// XObject /Fm1. The form carries formStream and its own resources naming the
// Courier font F1.
func BuildFormPDF(formStream string) []byte {
	// objects: 1 catalog, 2 pages, 3 font, 4 page, 5 content, 6 form
	w := newPDFWriter(6)
	w.object(1, catalogObject)
	w.object(2, "<< /Type /Pages /Kids [4 0 R] /Count 1 >>")
	w.object(3, courierFont())
	w.object(4, fmt.Sprintf("<< /Type /Page /Parent 2 0 R %s /Contents 5 0 R /Resources << /XObject << /Fm1 6 0 R >> >> >>", pageBox))
	w.stream(5, "", "q 1 0 0 1 0 0 cm /Fm1 Do Q")
	w.stream(6, "/Type /XObject /Subtype /Form /BBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> ", formStream)
	return w.bytes()
}

// BuildUndecodablePDF writes a two page PDF. The first page's content claims
// FlateDecode over the plain bytes of raw so no reader can decode it; the
// second page shows stream in Courier.
func BuildUndecodablePDF(raw, stream string) []byte {
	// objects: 1 catalog, 2 pages, 3 font, 4/5 first page, 6/7 second page
	w := newPDFWriter(7)
	w.object(1, catalogObject)
	w.object(2, "<< /Type /Pages /Kids [4 0 R 6 0 R] /Count 2 >>")
	w.object(3, courierFont())
	w.object(4, fmt.Sprintf("<< /Type /Page /Parent 2 0 R %s /Contents 5 0 R /Resources << /Font << /F1 3 0 R >> >> >>", pageBox))
	w.stream(5, "/Filter /FlateDecode ", raw)
	w.object(6, fmt.Sprintf("<< /Type /Page /Parent 2 0 R %s /Contents 7 0 R /Resources << /Font << /F1 3 0 R >> >> >>", pageBox))
	w.stream(7, "", stream)
	return w.bytes()
}
