package compression

import (
	"bytes"
	"testing"
)

func TestCompressors(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"title":"Race day","body":"Lap after lap"}`), 50)

	for _, name := range []string{"zstd", "gzip", "none"} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName(name)
			if err != nil {
				t.Fatalf("Expected codec for %q, got error: %v", name, err)
			}
			if c.Name() != name {
				t.Errorf("Expected name %q, got %q", name, c.Name())
			}

			packed, err := c.Compress(payload)
			if err != nil {
				t.Fatalf("Compress failed: %v", err)
			}
			if name != "none" && len(packed) >= len(payload) {
				t.Errorf("Expected repetitive payload to shrink, got %d >= %d", len(packed), len(payload))
			}

			unpacked, err := c.Decompress(packed)
			if err != nil {
				t.Fatalf("Decompress failed: %v", err)
			}
			if !bytes.Equal(unpacked, payload) {
				t.Error("Expected decompressed data to match the original")
			}
		})
	}
}

func TestByName(t *testing.T) {
	c, err := ByName("")
	if err != nil {
		t.Fatalf("Expected default codec, got error: %v", err)
	}
	if c.Name() != "zstd" {
		t.Errorf("Expected zstd as default, got %q", c.Name())
	}

	if _, err := ByName("brotli"); err == nil {
		t.Error("Expected error for unknown codec")
	}
}

func TestGzipDecompressGarbage(t *testing.T) {
	if _, err := (GzipCompressor{}).Decompress([]byte("not gzip")); err == nil {
		t.Error("Expected error decompressing garbage")
	}
}
