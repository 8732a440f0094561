// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docredact/internal/redactors"
)

func TestLexContentStrings(t *testing.T) {
	toks, err := lexContent([]byte(`BT /F1 12 Tf (a\(b\)c\\d \101) Tj <48 65 6C6C 6F> Tj ET`))
	require.NoError(t, err)

	var strs []string
	for _, tok := range toks {
		if tok.kind == tokLiteral || tok.kind == tokHex {
			strs = append(strs, string(tok.value))
		}
	}
	assert.Equal(t, []string{`a(b)c\d A`, "Hello"}, strs)
}

func TestLexContentNestedParens(t *testing.T) {
	toks, err := lexContent([]byte(`(outer (inner) text) Tj`))
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, "outer (inner) text", string(toks[0].value))
	assert.Equal(t, tokKeyword, toks[1].kind)
}

func TestLexContentSkipsInlineImage(t *testing.T) {
	data := []byte("q BI /W 1 /H 1 /BPC 8 /CS /G ID \xff(x) EI Q (after) Tj")
	toks, err := lexContent(data)
	require.NoError(t, err)

	var sawImage bool
	var strs []string
	for _, tok := range toks {
		switch tok.kind {
		case tokInlineImage:
			sawImage = true
		case tokLiteral:
			strs = append(strs, string(tok.value))
		}
	}
	assert.True(t, sawImage)
	assert.Equal(t, []string{"after"}, strs)
}

func TestLexContentUnterminated(t *testing.T) {
	_, err := lexContent([]byte(`(never closed Tj`))
	assert.Error(t, err)
}

func TestScrubContentSingleString(t *testing.T) {
	in := []byte("BT /F1 12 Tf 72 720 Td (Hello John Doe, welcome) Tj ET")
	out, n, err := scrubContent(in, nil, redactors.EntityMap{"john doe": "[PERSON]"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "BT /F1 12 Tf 72 720 Td (Hello         , welcome) Tj ET", string(out))
}

func TestScrubContentAcrossTJElements(t *testing.T) {
	in := []byte("BT [(Jo) -50 (hn) -300 (Doe)] TJ ET")
	out, n, err := scrubContent(in, nil, redactors.EntityMap{"John Doe": "[PERSON]"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "BT [(  ) -50 (  ) -300 (   )] TJ ET", string(out))
}

func TestScrubContentAcrossLines(t *testing.T) {
	in := []byte("BT 72 720 Td (Jane) Tj 0 -14 Td (Roe) Tj ET")
	out, n, err := scrubContent(in, nil, redactors.EntityMap{"jane roe": "[PERSON]"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "BT 72 720 Td (    ) Tj 0 -14 Td (   ) Tj ET", string(out))
}

func TestScrubContentHexStrings(t *testing.T) {
	in := []byte("BT <41636d65> Tj ET")
	out, n, err := scrubContent(in, nil, redactors.EntityMap{"ACME": "[ORG]"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "BT <20202020> Tj ET", string(out))
}

func TestScrubContentIgnoresNonShownStrings(t *testing.T) {
	in := []byte("/Span << /Alt (secret) >> BDC BT (public) Tj ET EMC")
	out, n, err := scrubContent(in, nil, redactors.EntityMap{"secret": "[X]"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, string(in), string(out))
}

// ucs2Encoding decodes big-endian two byte codes as Unicode code points,
// the way a ToUnicode CMap of an Identity-H font usually does
type ucs2Encoding struct{}

func (ucs2Encoding) Decode(raw string) string {
	var b strings.Builder
	for i := 0; i+1 < len(raw); i += 2 {
		b.WriteRune(rune(raw[i])<<8 | rune(raw[i+1]))
	}
	return b.String()
}

func compositeFonts(name string) *fontDecoder {
	if name == "F2" {
		return &fontDecoder{width: 2, enc: ucs2Encoding{}, blank: []byte{0x00, 0x03}}
	}
	return nil
}

func TestScrubContentCompositeFont(t *testing.T) {
	in := []byte("BT /F2 12 Tf <0048006900200041006e006e> Tj ET")
	out, n, err := scrubContent(in, compositeFonts, redactors.EntityMap{"ann": "[PERSON]"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "BT /F2 12 Tf <004800690020000300030003> Tj ET", string(out))
}

func TestScrubContentCompositeFontSpansTJ(t *testing.T) {
	in := []byte("BT /F2 9 Tf [<004a006f> -20 <0065>] TJ ET")
	out, n, err := scrubContent(in, compositeFonts, redactors.EntityMap{"Joe": "[PERSON]"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "BT /F2 9 Tf [<00030003> -20 <0003>] TJ ET", string(out))
}

func TestScrubContentFontRestoredByQ(t *testing.T) {
	// the name is shown in the simple font again once Q pops the composite one
	in := []byte("BT /F1 10 Tf q /F2 10 Tf <0041> Tj Q (Ann) Tj ET")
	out, n, err := scrubContent(in, compositeFonts, redactors.EntityMap{"ann": "[PERSON]"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "BT /F1 10 Tf q /F2 10 Tf <0041> Tj Q (   ) Tj ET", string(out))
}

func TestFontDecoderCodes(t *testing.T) {
	d := &fontDecoder{width: 2, enc: ucs2Encoding{}, blank: []byte{0, 0}}
	codes := d.codes([]byte{0x00, 0x41, 0x00, 0x42, 0x00})
	require.Len(t, codes, 3)
	assert.Equal(t, "A", codes[0].text)
	assert.Equal(t, "B", codes[1].text)
	assert.Equal(t, 4, codes[2].start)
	assert.Equal(t, 5, codes[2].end)

	assert.Equal(t, "é", winAnsiDecoder.decode([]byte{0xe9}))
}

func TestEncodeLiteralEscapes(t *testing.T) {
	assert.Equal(t, `(a\(b\)\\c\n\351)`, string(encodeLiteral([]byte("a(b)\\c\n\xe9"))))
	assert.Equal(t, "<00ff>", string(encodeHex([]byte{0x00, 0xff})))
}

func TestEncodeLabel(t *testing.T) {
	assert.Equal(t, []byte("[PERSON]"), encodeLabel("[PERSON]"))
	assert.Equal(t, []byte{'[', 0xe9, ']'}, encodeLabel("[é]"))
	assert.Equal(t, []byte("[?]"), encodeLabel("[世]"))
}

func TestOverlayOps(t *testing.T) {
	ops := string(overlayOps([]mark{{box: rect{llx: 72, lly: 717, urx: 129.6, ury: 730.8}, label: "[PERSON]"}}, "RDX"))
	assert.Contains(t, ops, "1 1 1 rg\n72.00 717.00 57.60 13.80 re\nf\n")
	assert.Contains(t, ops, "/RDX ")
	assert.Contains(t, ops, "([PERSON]) Tj")
}
