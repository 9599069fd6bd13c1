package model

import (
	"net/http"
	"reflect"
	"testing"
)

func TestHeader_SetKeepsInsertionOrder(t *testing.T) {
	h := NewHeader()
	h.Set("content-type", "text/css")
	h.Set("Cache-Control", "public, max-age=60")
	h.Set("Content-Type", "font/woff2")

	want := []string{"Content-Type", "Cache-Control"}
	if got := h.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if got := h.Get("content-type"); got != "font/woff2" {
		t.Errorf("Get(content-type) = %q, want %q", got, "font/woff2")
	}
}

func TestHeader_EmptyValueIgnored(t *testing.T) {
	h := NewHeader()
	h.Set("Content-Length", "")
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}

func TestHeader_Del(t *testing.T) {
	h := NewHeader()
	h.Set("A", "1")
	h.Set("B", "2")
	h.Set("C", "3")
	h.Del("b")
	h.Del("missing")

	want := []string{"A", "C"}
	if got := h.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestHeader_CopyTo(t *testing.T) {
	h := NewHeader()
	h.Set("Content-Type", "text/plain")
	h.Set("Access-Control-Allow-Origin", "*")

	dst := http.Header{"Content-Type": {"application/json"}}
	h.CopyTo(dst)

	if got := dst.Get("Content-Type"); got != "text/plain" {
		t.Errorf("Content-Type = %q, want %q", got, "text/plain")
	}
	if got := dst.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
}

func TestRouteKind_String(t *testing.T) {
	tests := []struct {
		kind RouteKind
		want string
	}{
		{RoutePackageFile, "package_file"},
		{RoutePackageShortcut, "package_shortcut"},
		{RouteFontCSS, "font_css"},
		{RouteFontAsset, "font_asset"},
		{RouteKind(0), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
