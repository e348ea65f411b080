package imagegrab

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractOGImageURL pulls the og:image URL from raw HTML.
// Returns empty string if not found.
func ExtractOGImageURL(pageHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}
	return ogImageFromDocument(doc)
}

func ogImageFromDocument(doc *goquery.Document) string {
	var img string
	doc.Find(`meta[property="og:image"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		img = strings.TrimSpace(s.AttrOr("content", ""))
		return img == ""
	})
	return img
}

// validSourceURL reports whether raw is an absolute http(s) URL with a host.
func validSourceURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
