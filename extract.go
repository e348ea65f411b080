package imagegrab

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractImageURLs returns the absolute http(s) URLs of every image
// referenced by pageHTML, in document order and without repeats: each
// <img src>, each candidate in <img srcset>, then og:image.
// Relative, protocol-relative and root-relative references are resolved
// against baseURL; data: URIs are skipped.
func ExtractImageURLs(pageHTML, baseURL string) []string {
	doc, base, err := parsePage(pageHTML, baseURL)
	if err != nil {
		slog.Debug("imagegrab: html parse failed", "url", baseURL, "error", err.Error())
		return nil
	}
	return ImageURLsFromDocument(doc, base)
}

// ImageURLsFromDocument is ExtractImageURLs over an already parsed page.
func ImageURLsFromDocument(doc *goquery.Document, base *url.URL) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(ref string) {
		abs := ResolveURL(base, ref)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok {
			add(src)
		}
		if srcset, ok := img.Attr("srcset"); ok {
			for _, ref := range parseSrcset(srcset) {
				add(ref)
			}
		}
	})

	if og := ogImageFromDocument(doc); og != "" {
		add(og)
	}

	return out
}

// parsePage parses pageHTML once for every document-level extractor.
func parsePage(pageHTML, baseURL string) (*goquery.Document, *url.URL, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, nil, err
	}
	return doc, base, nil
}

// ResolveURL resolves ref against base. Returns "" for empty references,
// data: URIs, unparsable input and non-http(s) results.
func ResolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(strings.ToLower(ref), "data:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	if abs.Host == "" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

// parseSrcset returns the URL part of each comma-separated srcset candidate.
func parseSrcset(srcset string) []string {
	var refs []string
	for _, part := range strings.Split(srcset, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		refs = append(refs, fields[0])
	}
	return refs
}
