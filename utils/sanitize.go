package utils

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/unicode/norm"
)

var (
	sanitizer = bluemonday.UGCPolicy()
	stripper  = bluemonday.StrictPolicy()
	markdown  = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// PlainText strips all markup and returns NFC-normalized, trimmed text.
func PlainText(input string) string {
	return NormalizeText(html.UnescapeString(stripper.Sanitize(input)))
}

// NormalizeText trims and NFC-normalizes user supplied text so equal strings compare equal.
func NormalizeText(input string) string {
	return strings.TrimSpace(norm.NFC.String(input))
}

// RenderContent produces the stored HTML for a post body. Editor supplied HTML wins;
// otherwise content is rendered as Markdown. Both paths are sanitized.
func RenderContent(content, contentHTML string) (string, error) {
	if strings.TrimSpace(contentHTML) != "" {
		return Sanitize(contentHTML), nil
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return Sanitize(buf.String()), nil
}
