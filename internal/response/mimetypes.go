package response

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

const (
	defaultMimeType = "text/plain"
	htmlMimeType    = "text/html"
)

// MimeTypeResolver determines the content type of a file from its leading
// bytes. Custom extension mappings are consulted only when no signature matches.
type MimeTypeResolver struct {
	customMimeTypes map[string]string
}

// NewMimeTypeResolver creates a MimeTypeResolver. Entries loaded from
// mimeTypesPath (if non-empty) override the inline map.
func NewMimeTypeResolver(inline map[string]string, mimeTypesPath string) (*MimeTypeResolver, error) {
	resolver := &MimeTypeResolver{
		customMimeTypes: make(map[string]string, len(inline)),
	}
	for ext, mimeType := range inline {
		resolver.customMimeTypes[strings.ToLower(ext)] = mimeType
	}

	if mimeTypesPath != "" {
		fileTypes, err := LoadCustomMimeTypesFromFile(mimeTypesPath)
		if err != nil {
			return nil, err
		}
		for ext, mimeType := range fileTypes {
			resolver.customMimeTypes[ext] = mimeType
		}
	}
	return resolver, nil
}

// Sniff returns the content type for a file named name whose contents start
// with head. Unrecognised content falls back to a custom mapping for the
// file's extension, then to text/plain.
func (r *MimeTypeResolver) Sniff(name string, head []byte) string {
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if r != nil && len(r.customMimeTypes) > 0 {
		if mimeType, ok := r.customMimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
			return mimeType
		}
	}
	return defaultMimeType
}

// LoadCustomMimeTypesFromFile reads a JSON object mapping extensions to MIME
// types. Extensions must start with '.', values must be non-empty, and keys
// are lowercased.
func LoadCustomMimeTypesFromFile(filePath string) (map[string]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIME types file %q: %w", filePath, err)
	}

	var parsed map[string]string
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from MIME types file %q: %w", filePath, err)
	}

	custom := make(map[string]string, len(parsed))
	for ext, mimeType := range parsed {
		if !strings.HasPrefix(ext, ".") {
			return nil, fmt.Errorf("invalid extension %q in MIME types file %q: must start with a '.'", ext, filePath)
		}
		if mimeType == "" {
			return nil, fmt.Errorf("empty MIME type for extension %q in MIME types file %q", ext, filePath)
		}
		custom[strings.ToLower(ext)] = mimeType
	}
	return custom, nil
}
