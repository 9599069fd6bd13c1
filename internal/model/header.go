package model

import "net/http"

// Header is an insertion-ordered, single-valued header set. Keys are stored in
// canonical form; setting an existing key replaces its value in place.
type Header struct {
	keys   []string
	values map[string]string
}

// NewHeader returns an empty Header.
func NewHeader() *Header {
	return &Header{values: make(map[string]string)}
}

// Set stores value under key. An empty value is ignored.
func (h *Header) Set(key, value string) {
	if value == "" {
		return
	}
	key = http.CanonicalHeaderKey(key)
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = value
}

// Get returns the value for key, or "".
func (h *Header) Get(key string) string {
	return h.values[http.CanonicalHeaderKey(key)]
}

// Del removes key.
func (h *Header) Del(key string) {
	key = http.CanonicalHeaderKey(key)
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)
	for i, k := range h.keys {
		if k == key {
			h.keys = append(h.keys[:i], h.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (h *Header) Keys() []string {
	return append([]string(nil), h.keys...)
}

// Len returns the number of keys.
func (h *Header) Len() int {
	return len(h.keys)
}

// CopyTo copies the header set onto dst, replacing existing values.
func (h *Header) CopyTo(dst http.Header) {
	for _, k := range h.keys {
		dst.Set(k, h.values[k])
	}
}
