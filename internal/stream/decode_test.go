package stream

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
)

const css = `@font-face { src: url(https://fonts.gstatic.com/s/roboto/v30/a.woff2) format('woff2'); }`

func encode(t *testing.T, encoding string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch encoding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "deflate":
		w = zlib.NewWriter(&buf)
	case "br":
		w = brotli.NewWriter(&buf)
	default:
		return []byte(css)
	}
	if _, err := w.Write([]byte(css)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	for _, enc := range []string{"", "identity", "gzip", "deflate", "br", "GZIP"} {
		t.Run(enc, func(t *testing.T) {
			body := &trackingBody{Reader: bytes.NewReader(encode(t, strings.ToLower(enc)))}
			rc, err := Decode(enc, body)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(got) != css {
				t.Errorf("decoded = %q, want %q", got, css)
			}
			if err := rc.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
			if body.closed != 1 {
				t.Errorf("body closed %d times, want 1", body.closed)
			}
		})
	}
}

func TestDecode_Unsupported(t *testing.T) {
	_, err := Decode("zstd", io.NopCloser(strings.NewReader("")))
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("Decode(zstd) error = %v, want ErrUnsupportedEncoding", err)
	}
}

func TestDecode_CorruptGzip(t *testing.T) {
	_, err := Decode("gzip", io.NopCloser(strings.NewReader("plain text")))
	if err == nil {
		t.Fatal("Decode() expected error for corrupt gzip header, got nil")
	}
}

func TestReadAllLimit(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		limit   int64
		wantErr bool
	}{
		{"under", "abc", 10, false},
		{"exact", "abcdefghij", 10, false},
		{"over", "abcdefghijk", 10, true},
		{"unlimited", strings.Repeat("x", 1<<16), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadAllLimit(strings.NewReader(tt.input), tt.limit)
			if tt.wantErr {
				if !errors.Is(err, ErrBodyTooLarge) {
					t.Errorf("error = %v, want ErrBodyTooLarge", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadAllLimit() error = %v", err)
			}
			if string(got) != tt.input {
				t.Errorf("got %d bytes, want %d", len(got), len(tt.input))
			}
		})
	}
}
