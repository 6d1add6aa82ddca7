package response

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeComponent(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"index", "index"},
		{"a b.txt", "a%20b%2Etxt"},
		{"100%", "100%25"},
		{"a/b", "a%2Fb"},
		{"é", "%C3%A9"},
		{"", ""},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, EncodeComponent(tc.in), "EncodeComponent(%q)", tc.in)
	}
}

func TestEncodePath(t *testing.T) {
	assert.Equal(t, "/", EncodePath("/"))
	assert.Equal(t, "/sub/a%20b%2Etxt", EncodePath("/sub/a b.txt"))
	assert.Equal(t, "/%E6%97%A5/x", EncodePath("/日/x"))
}

func TestDecode_Lenient(t *testing.T) {
	testCases := []struct {
		name     string
		in       string
		expected string
	}{
		{"plain", "/sub/file.txt", "/sub/file.txt"},
		{"space", "/a%20b", "/a b"},
		{"lower-case hex", "/%c3%a9", "/é"},
		{"invalid hex digits kept", "/%zz", "/%zz"},
		{"truncated escape kept", "/a%4", "/a%4"},
		{"trailing percent kept", "/100%", "/100%"},
		{"invalid utf-8 replaced", "/%E2%82", "/�"},
		{"raw invalid utf-8 replaced", "/\xff", "/�"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tc.expected, Decode(tc.in))
			})
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	var printable strings.Builder
	for c := byte(0x20); c < 0x7f; c++ {
		printable.WriteByte(c)
	}

	names := []string{
		printable.String(),
		"README.md",
		"héllo wörld.txt",
		"日本語のファイル名",
		"emoji 🎉.png",
		"<script>&amp;",
		"%41%zz",
	}
	for _, name := range names {
		assert.Equal(t, name, Decode(EncodeComponent(name)), "round trip of %q", name)
		assert.Equal(t, "/dir/"+name, Decode(EncodePath("/dir/"+name)), "path round trip of %q", name)
	}
}

func TestDecodeOctets_KeepsRawBytes(t *testing.T) {
	assert.Equal(t, "/a\xffb", decodeOctets("/a%FFb"))
	assert.Equal(t, "/\xe2\x82", decodeOctets("/%E2%82"))
	assert.Equal(t, "/%zz", decodeOctets("/%zz"))
	for _, name := range []string{"\xff.txt", "a\xc3(b", "plain"} {
		assert.Equal(t, "/"+name, decodeOctets(EncodePath("/"+name)), "round trip of %q", name)
	}
}
