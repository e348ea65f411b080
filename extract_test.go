package imagegrab

import (
	"net/url"
	"slices"
	"testing"
)

func TestExtractImageURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		base string
		want []string
	}{
		{
			name: "absolute and relative src",
			html: `<img src="https://cdn.example.com/a.jpg"><img src="b.png"><img src="/c.gif">`,
			base: "https://example.com/blog/post.html",
			want: []string{
				"https://cdn.example.com/a.jpg",
				"https://example.com/blog/b.png",
				"https://example.com/c.gif",
			},
		},
		{
			name: "protocol-relative keeps base scheme",
			html: `<img src="//static.example.net/p.webp">`,
			base: "http://example.com/",
			want: []string{"http://static.example.net/p.webp"},
		},
		{
			name: "srcset candidates follow src",
			html: `<img src="small.jpg" srcset="medium.jpg 600w, large.jpg 1200w">`,
			base: "https://example.com/",
			want: []string{
				"https://example.com/small.jpg",
				"https://example.com/medium.jpg",
				"https://example.com/large.jpg",
			},
		},
		{
			name: "og:image appended last",
			html: `<head><meta property="og:image" content="/cover.jpg"></head><body><img src="inline.png"></body>`,
			base: "https://example.com/",
			want: []string{
				"https://example.com/inline.png",
				"https://example.com/cover.jpg",
			},
		},
		{
			name: "duplicates removed",
			html: `<img src="/a.jpg"><img src="https://example.com/a.jpg"><img src="a.jpg#frag">`,
			base: "https://example.com/",
			want: []string{"https://example.com/a.jpg"},
		},
		{
			name: "data and non-http schemes skipped",
			html: `<img src="data:image/png;base64,AAAA"><img src="ftp://x/y.png"><img src=""><img><img src="ok.png">`,
			base: "https://example.com/",
			want: []string{"https://example.com/ok.png"},
		},
		{
			name: "no images",
			html: `<p>text only</p>`,
			base: "https://example.com/",
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractImageURLs(tc.html, tc.base)
			if !slices.Equal(got, tc.want) {
				t.Errorf("ExtractImageURLs = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://example.com/a/b/page.html?q=1")

	tests := []struct {
		ref  string
		want string
	}{
		{"img.png", "https://example.com/a/b/img.png"},
		{"../img.png", "https://example.com/a/img.png"},
		{"/root.png", "https://example.com/root.png"},
		{"//other.org/x.png", "https://other.org/x.png"},
		{"  spaced.png  ", "https://example.com/a/b/spaced.png"},
		{"DATA:image/gif;base64,R0lG", ""},
		{"mailto:me@example.com", ""},
		{"", ""},
	}

	for _, tc := range tests {
		if got := ResolveURL(base, tc.ref); got != tc.want {
			t.Errorf("ResolveURL(%q) = %q, want %q", tc.ref, got, tc.want)
		}
	}
}

func TestDocumentExtractorsShareOneParse(t *testing.T) {
	t.Parallel()

	const page = `<head>
<meta property="og:image" content="/cover.jpg">
<link rel="license" href="//creativecommons.org/licenses/by/4.0/">
</head><body><img src="a.png" srcset="a.png 1x, /b.png 2x"></body>`

	doc, base, err := parsePage(page, "https://example.com/post/")
	if err != nil {
		t.Fatalf("parsePage: %v", err)
	}

	wantURLs := []string{
		"https://example.com/post/a.png",
		"https://example.com/b.png",
		"https://example.com/cover.jpg",
	}
	if got := ImageURLsFromDocument(doc, base); !slices.Equal(got, wantURLs) {
		t.Errorf("ImageURLsFromDocument = %v, want %v", got, wantURLs)
	}
	if got, want := CCLicenseFromDocument(doc, base), "https://creativecommons.org/licenses/by/4.0/"; got != want {
		t.Errorf("CCLicenseFromDocument = %q, want %q", got, want)
	}

	// The string entry points agree with the document ones.
	if got := ExtractImageURLs(page, "https://example.com/post/"); !slices.Equal(got, wantURLs) {
		t.Errorf("ExtractImageURLs = %v, want %v", got, wantURLs)
	}
	if got := ExtractOGImageURL(page); got != "/cover.jpg" {
		t.Errorf("ExtractOGImageURL = %q, want /cover.jpg", got)
	}

	if _, _, err := parsePage(page, "://bad"); err == nil {
		t.Error("parsePage accepted an unparsable base URL")
	}
}
