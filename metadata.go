package imagegrab

import (
	"bytes"

	"github.com/bep/imagemeta"
)

// Attribution holds the credit fields found in an accepted image's
// EXIF, IPTC or XMP metadata.
type Attribution struct {
	Artist    string // EXIF Artist, IPTC By-line or XMP dc:creator
	Copyright string // EXIF Copyright, IPTC CopyrightNotice or XMP dc:rights
	Credit    string // IPTC Credit
	Source    string // IPTC Source
	License   string // XMP License, WebStatement or UsageTerms
}

// wantedTags maps (source, tag-name) → true for every tag we care about.
var wantedTags = map[imagemeta.Source]map[string]bool{
	imagemeta.IPTC: {
		"CopyrightNotice": true,
		"Credit":          true,
		"Byline":          true,
		"Source":          true,
	},
	imagemeta.EXIF: {
		"Copyright": true,
		"Artist":    true,
	},
	imagemeta.XMP: {
		"Rights":       true,
		"Creator":      true,
		"License":      true,
		"WebStatement": true,
		"UsageTerms":   true,
	},
}

// ExtractAttribution parses EXIF/IPTC/XMP credit fields from raw image bytes.
// Returns nil if the data is empty, unparsable, or carries no credit.
// EXIF wins over IPTC, IPTC over XMP, for fields present in several.
func ExtractAttribution(data []byte) *Attribution {
	if len(data) == 0 {
		return nil
	}

	var exif, iptc, xmp Attribution

	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			if tags, ok := wantedTags[ti.Source]; ok {
				return tags[ti.Tag]
			}
			return false
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			s := tagValueString(ti.Value)
			if s == "" {
				return nil
			}
			switch ti.Source {
			case imagemeta.EXIF:
				setCredit(&exif, ti.Tag, s)
			case imagemeta.IPTC:
				setCredit(&iptc, ti.Tag, s)
			case imagemeta.XMP:
				setCredit(&xmp, ti.Tag, s)
			}
			return nil
		},
	})
	if err != nil {
		return nil
	}

	a := &Attribution{
		Artist:    firstNonEmpty(exif.Artist, iptc.Artist, xmp.Artist),
		Copyright: firstNonEmpty(exif.Copyright, iptc.Copyright, xmp.Copyright),
		Credit:    iptc.Credit,
		Source:    iptc.Source,
		License:   xmp.License,
	}
	if *a == (Attribution{}) {
		return nil
	}
	return a
}

func setCredit(a *Attribution, tag, value string) {
	switch tag {
	case "Artist", "Byline", "Creator":
		a.Artist = value
	case "Copyright", "CopyrightNotice", "Rights":
		a.Copyright = value
	case "Credit":
		a.Credit = value
	case "Source":
		a.Source = value
	case "License", "WebStatement", "UsageTerms":
		// first one seen wins
		if a.License == "" {
			a.License = value
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// tagValueString extracts a string from a tag value.
// XMP values may be string or []string (from altList/seqList).
func tagValueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
		return ""
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}
