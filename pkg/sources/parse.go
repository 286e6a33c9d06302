package sources

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	chapterNumberRe = regexp.MustCompile(`(?i)(?:chapter|chap|chương|ch\.?)\s*(\d+(?:[.,]\d+)?)`)
	firstNumberRe   = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

func parseDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// lastSegment returns the part of s after its final slash.
func lastSegment(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// between returns the text between the first start marker and the next
// end marker after it.
func between(s, start, end string) (string, bool) {
	i := strings.Index(s, start)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}

// parseChapterNumber reads the chapter number from a display name, or -1.
func parseChapterNumber(name string) float64 {
	raw := ""
	if m := chapterNumberRe.FindStringSubmatch(name); m != nil {
		raw = m[1]
	} else if m := firstNumberRe.FindString(name); m != "" {
		raw = m
	}
	if raw == "" {
		return -1
	}
	n, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return -1
	}
	return n
}

// firstAttr returns the first non-empty attribute among names.
func firstAttr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// selectFirst tries selectors in order and returns the first non-empty match.
func selectFirst(s interface {
	Find(string) *goquery.Selection
}, selectors ...string) *goquery.Selection {
	var found *goquery.Selection
	for _, sel := range selectors {
		found = s.Find(sel)
		if found.Length() > 0 {
			return found
		}
	}
	return found
}
