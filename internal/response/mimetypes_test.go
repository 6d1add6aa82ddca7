package response

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89,
}

func TestMimeTypeResolver_Sniff(t *testing.T) {
	resolver, err := NewMimeTypeResolver(map[string]string{".MD": "text/markdown"}, "")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		file     string
		head     []byte
		expected string
	}{
		{"png signature", "logo.png", pngHeader, "image/png"},
		{"signature wins over extension", "logo.md", pngHeader, "image/png"},
		{"gif signature", "anim.bin", []byte("GIF89a\x01\x00\x01\x00"), "image/gif"},
		{"pdf signature", "doc", []byte("%PDF-1.7\n"), "application/pdf"},
		{"unknown falls back to extension override", "notes.md", []byte("# title"), "text/markdown"},
		{"extension lookup ignores case", "NOTES.Md", []byte("# title"), "text/markdown"},
		{"unknown without override", "notes.txt", []byte("hello"), "text/plain"},
		{"empty file", "empty", nil, "text/plain"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, resolver.Sniff(tc.file, tc.head))
		})
	}
}

func TestMimeTypeResolver_NilUsesSignaturesOnly(t *testing.T) {
	var resolver *MimeTypeResolver
	assert.Equal(t, "image/png", resolver.Sniff("x", pngHeader))
	assert.Equal(t, "text/plain", resolver.Sniff("x.md", []byte("text")))
}

func TestNewMimeTypeResolver_FileOverridesInline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mime.json")
	require.NoError(t, os.WriteFile(path, []byte(`{".md": "text/x-markdown", ".LOG": "text/x-log"}`), 0644))

	resolver, err := NewMimeTypeResolver(map[string]string{".md": "text/markdown"}, path)
	require.NoError(t, err)
	assert.Equal(t, "text/x-markdown", resolver.Sniff("a.md", []byte("x")))
	assert.Equal(t, "text/x-log", resolver.Sniff("server.log", []byte("x")))
}

func TestLoadCustomMimeTypesFromFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}

	testCases := []struct {
		name        string
		path        string
		expected    map[string]string
		errContains string
	}{
		{
			name:     "valid",
			path:     write("ok.json", `{".WASM": "application/wasm"}`),
			expected: map[string]string{".wasm": "application/wasm"},
		},
		{
			name:        "missing file",
			path:        filepath.Join(dir, "absent.json"),
			errContains: "failed to read MIME types file",
		},
		{
			name:        "malformed json",
			path:        write("bad.json", `{".a": `),
			errContains: "failed to parse JSON",
		},
		{
			name:        "extension without dot",
			path:        write("nodot.json", `{"txt": "text/plain"}`),
			errContains: "must start with a '.'",
		},
		{
			name:        "empty type",
			path:        write("empty.json", `{".txt": ""}`),
			errContains: "empty MIME type",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LoadCustomMimeTypesFromFile(tc.path)
			if tc.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}
