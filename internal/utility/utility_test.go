package utility

import "testing"

func TestParseUserAgent(t *testing.T) {
	cases := []struct {
		ua      string
		browser string
		os      string
		device  string
	}{
		{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			"chrome", "windows", "desktop",
		},
		{
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			"safari", "ios", "mobile",
		},
		{
			"Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0",
			"firefox", "linux", "desktop",
		},
		{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0",
			"edge", "windows", "desktop",
		},
		{
			"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36",
			"chrome", "android", "mobile",
		},
		{
			"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			"safari", "ios", "tablet",
		},
		{"curl/8.1", "other", "other", "desktop"},
	}

	for _, c := range cases {
		browser, os, device := ParseUserAgent(c.ua)
		if browser != c.browser || os != c.os || device != c.device {
			t.Errorf("ParseUserAgent(%q) = (%q, %q, %q), want (%q, %q, %q)",
				c.ua, browser, os, device, c.browser, c.os, c.device)
		}
	}
}

func TestFirstLanguage(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"en-US,en;q=0.9,de;q=0.8", "en-US"},
		{"fr", "fr"},
		{"ja;q=0.7", "ja"},
		{"", ""},
	}
	for _, c := range cases {
		if got := FirstLanguage(c.header); got != c.want {
			t.Errorf("FirstLanguage(%q) = %q, want %q", c.header, got, c.want)
		}
	}
}
