package service

import (
	"net/url"
	"strings"
)

const fontAssetRoute = "/fonts/s/"

// assetPrefixes lists the spellings of the font asset origin that may appear
// inside stylesheet url() references.
func assetPrefixes(origin *url.URL) []string {
	host := origin.Host
	return []string{
		"https://" + host + "/s/",
		"http://" + host + "/s/",
		"//" + host + "/s/",
	}
}

// publicBase returns the proxy's own base for asset references, e.g.
// "https://cdn.example.com/fonts/s/". Without a host it is root-relative.
func publicBase(protocol, host string) string {
	if host == "" {
		return fontAssetRoute
	}
	switch strings.ToLower(protocol) {
	case "https":
		protocol = "https"
	default:
		protocol = "http"
	}
	return protocol + "://" + host + fontAssetRoute
}

// rewriteAssetURLs points every asset reference in css at base. Text that
// does not reference the asset origin is returned unchanged.
func rewriteAssetURLs(css string, prefixes []string, base string) string {
	pairs := make([]string, 0, len(prefixes)*2)
	for _, p := range prefixes {
		pairs = append(pairs, p, base)
	}
	return strings.NewReplacer(pairs...).Replace(css)
}
