package resolver

import (
	"net/url"
	"path"
	"strings"
)

var fontContentTypes = map[string]string{
	".woff2": "font/woff2",
	".woff":  "font/woff",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",
}

// FontContentType returns the content type for a font file name, or
// application/octet-stream for anything not in the table.
func FontContentType(name string) string {
	if dec, err := url.PathUnescape(name); err == nil {
		name = dec
	}
	if ct, ok := fontContentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
