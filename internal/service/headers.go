package service

import (
	"net/http"
	"strconv"

	"cdn-proxy-go/internal/model"
)

const defaultContentType = "text/plain"

// cacheControl renders the Cache-Control value for a policy.
func cacheControl(p model.Policy) string {
	v := "public, max-age=" + strconv.Itoa(p.CacheMaxAgeSeconds)
	if p.Immutable {
		v += ", immutable"
	}
	return v
}

// responseHeaders builds the client-facing header set. Only the headers
// named here are ever sent; everything else the upstream returned is dropped.
// Content-Length and Content-Encoding are carried over only when the body is
// relayed byte for byte.
func responseHeaders(p model.Policy, upstream http.Header, passthrough bool) *model.Header {
	h := model.NewHeader()

	ct := p.ContentTypeOverride
	if ct == "" {
		ct = upstream.Get("Content-Type")
	}
	if ct == "" {
		ct = defaultContentType
	}
	h.Set("Content-Type", ct)
	h.Set("Cache-Control", cacheControl(p))
	if p.CORSOpen {
		h.Set("Access-Control-Allow-Origin", "*")
	}
	if passthrough {
		h.Set("Content-Length", upstream.Get("Content-Length"))
		h.Set("Content-Encoding", upstream.Get("Content-Encoding"))
	}
	return h
}
