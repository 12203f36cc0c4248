package providers

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	spaceRE       = regexp.MustCompile("[\t\f\v\u00a0]+")
	multiSpaceRE  = regexp.MustCompile(` {2,}`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// CleanText bringt Freitext in Unicode-NFC, damit Inhalts-Hashes stabil bleiben.
func CleanText(s string) string {
	normalized, _, err := transform.String(transform.Chain(norm.NFC), s)
	if err != nil {
		return s
	}
	return normalized
}

// CleanDescription normalisiert Beschreibungstexte: NFC, einheitliche Zeilenumbrüche, keine
// Mehrfach-Leerzeichen, höchstens eine Leerzeile am Stück. Leere Texte werden nil.
func CleanDescription(s *string) *string {
	if s == nil {
		return nil
	}
	return NonEmpty(collapseWhitespace(CleanText(*s)))
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = spaceRE.ReplaceAllString(s, " ")
	s = multiSpaceRE.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRightFunc(lines[i], unicode.IsSpace)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
