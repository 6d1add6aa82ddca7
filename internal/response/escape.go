package response

import (
	"strings"
	"unicode/utf8"
)

const upperHex = "0123456789ABCDEF"

// Decode percent-decodes s. Sequences that are not '%' followed by two hex
// digits are kept as-is, and byte sequences that are not valid UTF-8 after
// decoding are replaced with U+FFFD. It never fails.
func Decode(s string) string {
	return strings.ToValidUTF8(decodeOctets(s), string(utf8.RuneError))
}

// decodeOctets is Decode without the UTF-8 repair. Filesystem names are raw
// bytes, so lookups use this form.
func decodeOctets(s string) string {
	if strings.IndexByte(s, '%') < 0 {
		return s
	}
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			buf = append(buf, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
			continue
		}
		buf = append(buf, c)
	}
	return string(buf)
}

// EncodeComponent escapes every byte of s that is not an ASCII letter or
// digit as %XX.
func EncodeComponent(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperHex[c>>4])
		sb.WriteByte(upperHex[c&0x0f])
	}
	return sb.String()
}

// EncodePath applies EncodeComponent to each '/'-separated segment of p and
// keeps the separators.
func EncodePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = EncodeComponent(seg)
	}
	return strings.Join(segments, "/")
}

func isAlnum(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
