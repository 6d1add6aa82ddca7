package response

import (
	"fmt"
	"html"
	"os"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"example.com/rawhttpd/internal/logger"
)

const notFoundPage = "\n" +
	"                <html>\n" +
	"                <body>\n" +
	"                <h1>404 NOT FOUND</h1>\n" +
	"                </body>\n" +
	"                </html>"

func buildNotFound() *body {
	return &body{
		status:       StatusNotFound,
		acceptRanges: AcceptRangesNone,
		contentType:  htmlMimeType,
		data:         []byte(notFoundPage),
	}
}

func (r *Responder) buildFile(t *ResolvedTarget) (*body, error) {
	data, err := r.readFile(t.Path)
	if err != nil {
		r.log.Error("Failed to read file", logger.LogFields{"path": t.Path, "error": err.Error()})
		return nil, fmt.Errorf("failed to read file %q: %w", t.Path, err)
	}
	return &body{
		status:       StatusOK,
		acceptRanges: AcceptRangesBytes,
		contentType:  r.opts.MimeTypes.Sniff(t.Path, data),
		data:         data,
	}, nil
}

// buildListing renders the HTML index for the directory t. Entries keep the
// filesystem's enumeration order unless SortEntries is set.
func (r *Responder) buildListing(t *ResolvedTarget) (*body, error) {
	names, err := r.readDir(t.Path)
	if err != nil {
		r.log.Error("Failed to read directory", logger.LogFields{"path": t.Path, "error": err.Error()})
		return nil, err
	}
	if r.opts.SortEntries {
		sort.Strings(names)
	}

	var sb strings.Builder
	sb.WriteString(`<html><head><meta charset="utf-8"/></head><body><h1>Directory Listing</h1>`)
	sb.WriteString("<p>Current directory: ")
	sb.WriteString(displayText(strings.ReplaceAll(t.Path, `\`, "/")))
	sb.WriteString("</p>")

	if !t.AtRoot() {
		sb.WriteString(`<p><a href="`)
		sb.WriteString(EncodePath(path.Dir(t.URLPath)))
		sb.WriteString(`">Up One Level</a></p>`)
	}

	sb.WriteString("<ul>")
	for _, name := range names {
		sb.WriteString(`<li><a href="`)
		sb.WriteString(EncodePath(path.Join(t.URLPath, name)))
		sb.WriteString(`">`)
		sb.WriteString(displayText(name))
		sb.WriteString("</a></li>")
	}
	sb.WriteString("</ul></body></html>")

	return &body{
		status:       StatusOK,
		acceptRanges: AcceptRangesNone,
		contentType:  htmlMimeType,
		data:         []byte(sb.String()),
	}, nil
}

// readDirNames lists dir without sorting. os.ReadDir would sort.
func readDirNames(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory %q: %w", dir, err)
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate directory %q: %w", dir, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// displayText makes s safe as HTML text, replacing invalid UTF-8.
func displayText(s string) string {
	return html.EscapeString(strings.ToValidUTF8(s, string(utf8.RuneError)))
}
