package segment

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

var (
	// scriptStyleRE removes script/style/head blocks whose text is never content.
	scriptStyleRE = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</(script|style|head)>`)
	// commentRE removes HTML comments.
	commentRE = regexp.MustCompile(`(?s)<!--.*?-->`)
	// blockTagRE matches tags that imply a line break when stripped.
	blockTagRE = regexp.MustCompile(`(?i)</?(p|div|br|h[1-6]|li|tr|table|section|article|blockquote|pre)[^>]*>`)
	// tagRE matches any remaining tag.
	tagRE = regexp.MustCompile(`<[^>]*>`)
	// charsetRE finds the declared charset in a meta tag.
	charsetRE = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?\s*([A-Za-z0-9._-]+)`)
)

// extractHTML converts an HTML page to plain text. A charset declared in a
// meta tag is honored via x/text before tags are stripped; block-level tags
// become newlines so paragraph structure survives into chunking.
func extractHTML(content []byte) (string, error) {
	raw, err := decodeHTMLCharset(content)
	if err != nil {
		return "", fmt.Errorf("extract html: %w", err)
	}

	s := scriptStyleRE.ReplaceAllString(raw, " ")
	s = commentRE.ReplaceAllString(s, " ")
	s = blockTagRE.ReplaceAllString(s, "\n")
	s = tagRE.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)

	// Collapse intra-line whitespace but keep paragraph breaks.
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		if fields := strings.Fields(ln); len(fields) > 0 {
			out = append(out, strings.Join(fields, " "))
		}
	}
	return strings.Join(out, "\n"), nil
}

// decodeHTMLCharset re-encodes the page to UTF-8 when a non-UTF-8 charset is
// declared. Unknown or missing charsets fall back to interpreting the bytes
// as UTF-8.
func decodeHTMLCharset(content []byte) (string, error) {
	m := charsetRE.FindSubmatch(content)
	if m == nil {
		return string(content), nil
	}
	name := strings.ToLower(string(m[1]))
	if name == "utf-8" || name == "utf8" {
		return string(content), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return string(content), nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(content), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("decode charset %q: %w", name, err)
	}
	return string(decoded), nil
}
