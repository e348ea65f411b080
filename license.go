package imagegrab

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// License is a coarse usage-rights verdict for a stored thumbnail.
type License int

const (
	LicenseUnknown License = iota // no evidence either way
	LicenseFree                   // free host, or a Creative Commons declaration
	LicenseStock                  // stock agency host or credit
)

func (l License) String() string {
	switch l {
	case LicenseFree:
		return "free"
	case LicenseStock:
		return "stock"
	default:
		return "unknown"
	}
}

// StockDomains are host substrings of stock photo agencies.
var StockDomains = []string{
	"shutterstock",
	"gettyimages",
	"istockphoto",
	"adobestock",
	"depositphotos",
	"dreamstime",
	"123rf",
	"alamy",
	"bigstockphoto",
	"stocksy",
	"pond5",
	"canstockphoto",
	"masterfile",
	"superstock",
	"agefotostock",
	"colourbox",
	"vectorstock",
	"freepik",
}

// stockPathPatterns mark stock listing pages regardless of host.
var stockPathPatterns = []string{
	"/stock-photo",
	"/stock-image",
	"/editorial-image",
	"/premium-photo",
}

// FreeDomains are host substrings of free or attribution-friendly sources.
var FreeDomains = []string{
	"unsplash",
	"pexels",
	"pixabay",
	"wikimedia",
	"flickr",
	"rawpixel",
	"stocksnap",
}

// stockCreditMarkers are matched case-insensitively against credit metadata.
var stockCreditMarkers = []string{
	"shutterstock",
	"gettyimages",
	"getty images",
	"istock",
	"alamy",
	"depositphotos",
	"dreamstime",
	"123rf",
	"adobe stock",
	"adobestock",
	"stocksy",
	"agefotostock",
	"age fotostock",
}

var ccPathSegments = []string{
	"creativecommons.org/licenses/",
	"creativecommons.org/publicdomain/",
}

// IsCCLicenseURL reports whether s contains a Creative Commons license or
// public-domain dedication URL. The CC homepage alone does not count.
func IsCCLicenseURL(s string) bool {
	lower := strings.ToLower(s)
	for _, seg := range ccPathSegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	return false
}

// IsStockURL reports whether rawURL is hosted by a stock agency (built-in
// list plus extra) or points at a stock listing path.
func IsStockURL(rawURL string, extra []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host != "" && (containsAny(host, StockDomains) || containsAny(host, extra)) {
		return true
	}
	return containsAny(strings.ToLower(u.Path), stockPathPatterns)
}

func isFreeURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host != "" && containsAny(host, FreeDomains)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// AssessLicense combines the image URL, the page's declared license and the
// image's own credit metadata into one verdict. Stock evidence wins over
// free evidence.
func AssessLicense(imageURL, pageLicense string, attr *Attribution, extraStock []string) License {
	if IsStockURL(imageURL, extraStock) {
		return LicenseStock
	}
	if attr != nil {
		for _, f := range []string{attr.Copyright, attr.Artist, attr.Credit, attr.Source} {
			if containsAny(strings.ToLower(f), stockCreditMarkers) {
				return LicenseStock
			}
		}
		if IsCCLicenseURL(attr.License) || IsCCLicenseURL(attr.Copyright) {
			return LicenseFree
		}
	}
	if IsCCLicenseURL(pageLicense) || isFreeURL(imageURL) {
		return LicenseFree
	}
	return LicenseUnknown
}

// ExtractCCLicense returns the Creative Commons license URL a page declares,
// or "". rel="license" links are preferred, then any link to a CC license,
// then meta content.
func ExtractCCLicense(pageHTML, baseURL string) string {
	doc, base, err := parsePage(pageHTML, baseURL)
	if err != nil {
		return ""
	}
	return CCLicenseFromDocument(doc, base)
}

// CCLicenseFromDocument is ExtractCCLicense over an already parsed page.
func CCLicenseFromDocument(doc *goquery.Document, base *url.URL) string {
	var found string
	pick := func(sel *goquery.Selection, attr string) {
		sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, ok := s.Attr(attr)
			if !ok || !IsCCLicenseURL(v) {
				return true
			}
			if abs := ResolveURL(base, v); abs != "" {
				found = abs
				return false
			}
			return true
		})
	}

	pick(doc.Find(`a[rel~="license"], link[rel~="license"]`), "href")
	if found == "" {
		pick(doc.Find("a[href], link[href]"), "href")
	}
	if found == "" {
		pick(doc.Find("meta[content]"), "content")
	}
	return found
}
