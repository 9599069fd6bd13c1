package resolver

import (
	"net/url"
	"strings"

	"cdn-proxy-go/internal/model"
)

// checkSegments validates escaped path segments before they are joined onto
// an origin. Dot segments are rejected rather than collapsed so the upstream
// path is always exactly what the client sent. Only a trailing empty segment
// (a directory listing such as "npm/vue@3/") is permitted.
func checkSegments(kind model.RouteKind, segments []string) error {
	if len(segments) == 0 || (len(segments) == 1 && segments[0] == "") {
		return invalid(kind, "missing path")
	}
	for i, s := range segments {
		if s == "" {
			if i == len(segments)-1 {
				continue
			}
			return invalid(kind, "empty path segment at position %d", i)
		}
		if !validSegment(s) {
			return invalid(kind, "illegal path segment %q", s)
		}
	}
	return nil
}

// validSegment reports whether s is a safe escaped path segment.
func validSegment(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isPathByte(s[i]) {
			return false
		}
	}
	dec, err := url.PathUnescape(s)
	if err != nil {
		return false
	}
	if dec == "." || dec == ".." {
		return false
	}
	if strings.ContainsAny(dec, "/\\") {
		return false
	}
	for i := 0; i < len(dec); i++ {
		if dec[i] < 0x20 || dec[i] == 0x7f {
			return false
		}
	}
	return true
}

// isPathByte reports whether c may appear unescaped in a path segment
// (RFC 3986 pchar, plus '%' for escapes).
func isPathByte(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-._~!$&'()*+,;=:@%", c) >= 0
}

// validQuery reports whether a raw query string can be appended to a URL
// without changing its structure.
func validQuery(q string) bool {
	for i := 0; i < len(q); i++ {
		c := q[i]
		if c <= ' ' || c == 0x7f || c == '#' {
			return false
		}
	}
	return true
}

// parseShortcut turns "<name>@<version>/<file...>" (optionally scoped as
// "@scope/<name>@<version>/<file...>") into the npm path suffix.
func parseShortcut(segments []string) (string, error) {
	kind := model.RoutePackageShortcut
	if err := checkSegments(kind, segments); err != nil {
		return "", err
	}

	i := 0
	if strings.HasPrefix(segments[0], "@") {
		i = 1
	}
	if len(segments) < i+2 {
		return "", invalid(kind, "expected <name>@<version>/<file>")
	}

	nameVersion := segments[i]
	at := strings.LastIndex(nameVersion, "@")
	if at <= 0 || at == len(nameVersion)-1 {
		return "", invalid(kind, "missing @version in %q", nameVersion)
	}
	if segments[len(segments)-1] == "" {
		return "", invalid(kind, "missing file")
	}

	return strings.Join(segments, "/"), nil
}
