package utility

import "strings"

// ParseUserAgent derives coarse browser, OS and device classes from a
// User-Agent header. Order matters: Edge and Opera embed "Chrome", Chrome
// embeds "Safari", iPads report "Mac"-ish strings.
func ParseUserAgent(ua string) (browser, os, device string) {
	l := strings.ToLower(ua)

	switch {
	case strings.Contains(l, "edg/"), strings.Contains(l, "edge"):
		browser = "edge"
	case strings.Contains(l, "opr/"), strings.Contains(l, "opera"):
		browser = "opera"
	case strings.Contains(l, "firefox"):
		browser = "firefox"
	case strings.Contains(l, "chrome"):
		browser = "chrome"
	case strings.Contains(l, "safari"):
		browser = "safari"
	default:
		browser = "other"
	}

	switch {
	case strings.Contains(l, "android"):
		os = "android"
	case strings.Contains(l, "iphone"), strings.Contains(l, "ipad"), strings.Contains(l, "ios"):
		os = "ios"
	case strings.Contains(l, "windows"):
		os = "windows"
	case strings.Contains(l, "mac os"), strings.Contains(l, "macintosh"):
		os = "macos"
	case strings.Contains(l, "linux"):
		os = "linux"
	default:
		os = "other"
	}

	switch {
	case strings.Contains(l, "ipad"), strings.Contains(l, "tablet"):
		device = "tablet"
	case strings.Contains(l, "mobile"), strings.Contains(l, "iphone"), strings.Contains(l, "android"):
		device = "mobile"
	default:
		device = "desktop"
	}
	return browser, os, device
}

// FirstLanguage picks the primary tag from an Accept-Language header.
func FirstLanguage(header string) string {
	if header == "" {
		return ""
	}
	first := header
	if i := strings.IndexByte(first, ','); i >= 0 {
		first = first[:i]
	}
	if i := strings.IndexByte(first, ';'); i >= 0 {
		first = first[:i]
	}
	return strings.TrimSpace(first)
}
