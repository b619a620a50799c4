// Package platform classifies submitted video URLs into supported source
// platforms. Detection is pure and side-effect free; it is used both for
// admission validation at submission time and for display.
package platform

import (
	"net/url"
	"strings"
)

// Platform is a supported video source.
type Platform string

const (
	None      Platform = ""
	TikTok    Platform = "tiktok"
	Instagram Platform = "instagram"
	YouTube   Platform = "youtube"
)

// Detect returns the platform for rawURL, or None. Rules are evaluated in
// fixed priority order tiktok, instagram, youtube. A URL that fails parsing
// matches nothing.
func Detect(rawURL string) Platform {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return None
	}
	host := strings.ToLower(u.Host)

	switch {
	case strings.Contains(host, "tiktok.com"):
		return TikTok
	case strings.Contains(host, "instagram.com") && strings.Contains(rawURL, "/reel"):
		return Instagram
	case (strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be")) &&
		strings.Contains(rawURL, "/shorts"):
		return YouTube
	}
	return None
}

// Supported reports whether rawURL belongs to a supported platform.
func Supported(rawURL string) bool {
	return Detect(rawURL) != None
}
