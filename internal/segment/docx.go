package segment

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// docxDocumentPath is the conventional location of the document body inside
// a .docx package.
const docxDocumentPath = "word/document.xml"

// wtTagRE matches <w:t>…</w:t> text runs, with or without attributes
// (e.g. <w:t xml:space="preserve">).
var wtTagRE = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// extractDOCX pulls the visible text out of a DOCX (OOXML) document.
// DOCX is a zip whose word/document.xml holds the body; collecting every
// <w:t> run keeps content regardless of paragraph or run attributes.
// Legacy binary .doc files are not zip archives and are reported as such.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract docx: not an OOXML package: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docxDocumentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract docx: open %s: %w", f.Name, err)
		}
		docXML, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("extract docx: read %s: %w", f.Name, err)
		}
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("extract docx: %s not found", docxDocumentPath)
	}

	runs := wtTagRE.FindAllStringSubmatch(string(docXML), -1)
	if len(runs) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, r := range runs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(unescapeXML(r[1]))
	}
	return strings.TrimSpace(b.String()), nil
}

// unescapeXML resolves the predefined XML entities found in w:t runs.
var xmlEntityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

func unescapeXML(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	return xmlEntityReplacer.Replace(s)
}
