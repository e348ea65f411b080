package imagegrab

import (
	"net/url"
	"strings"
)

// LogoBannerPatterns are URL path substrings indicating decoration rather
// than content images.
var LogoBannerPatterns = []string{
	"favicon", "logo", "icon", "banner", "sprite",
	"badge", "button", "widget", "avatar", "pixel", "spacer",
}

// IsLogoOrBanner checks if the path of rawURL contains logo/banner patterns.
// The host is ignored so that e.g. "logos.example.com/photo.jpg" is not matched.
func IsLogoOrBanner(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		p = u.Path
	}
	lower := strings.ToLower(p)
	for _, pat := range LogoBannerPatterns {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	return false
}
