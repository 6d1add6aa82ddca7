package response

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"unicode/utf8"
)

// ResolvedTarget is a request path mapped onto the served root.
type ResolvedTarget struct {
	// CurrentPath is the percent-decoded request path.
	CurrentPath string
	// URLPath is the decoded request path as raw bytes, cleaned as a rooted
	// path; links are built from it. When the request climbs with "..", it
	// names the canonical target instead.
	URLPath string
	// Root and Path are canonical (absolute, symlinks evaluated).
	Root string
	Path string

	RootDepth int
	Depth     int

	// Absent is set when nothing inside the root exists at URLPath.
	Absent bool
}

// AtRoot reports whether the target is the served root itself.
func (t *ResolvedTarget) AtRoot() bool {
	return !t.Absent && t.Path == t.Root
}

// canonicalRoot returns the absolute, symlink-free form of dir, which must be a directory.
// An empty dir means the working directory.
func canonicalRoot(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to determine working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to make document root %q absolute: %w", dir, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize document root %q: %w", abs, err)
	}
	fi, err := os.Stat(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to stat document root %q: %w", canonical, err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("document root %q is not a directory", canonical)
	}
	return canonical, nil
}

// resolve decodes rawPath and maps it to a canonical filesystem path under root.
// Only operational failures are returned as errors; anything that does not exist
// or escapes the root comes back with Absent set.
func resolve(root, rawPath string) (*ResolvedTarget, error) {
	octets := decodeOctets(rawPath)
	rel := clampParents(strings.TrimPrefix(octets, "/"))

	t := &ResolvedTarget{
		CurrentPath: strings.ToValidUTF8(octets, string(utf8.RuneError)),
		URLPath:     path.Clean("/" + rel),
		Root:        root,
		RootDepth:   depth(root),
	}

	if strings.IndexByte(octets, 0) >= 0 {
		t.Absent = true
		return t, nil
	}

	// Not cleaned first: EvalSymlinks applies each ".." to the prefix it has
	// already resolved, so a ".." after a symlink leaves the link's target.
	joined := root + string(filepath.Separator) + filepath.FromSlash(rel)
	canonical, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if isAbsent(err) {
			t.Absent = true
			return t, nil
		}
		return nil, fmt.Errorf("failed to canonicalize %q: %w", joined, err)
	}

	if !within(root, canonical) {
		t.Absent = true
		return t, nil
	}

	t.Path = canonical
	t.Depth = depth(canonical)
	if hasParentSegment(rel) {
		t.URLPath = urlPathOf(root, canonical)
	}
	return t, nil
}

// clampParents drops the leading ".." segments of rel, which would climb
// above the root before entering anything.
func clampParents(rel string) string {
	for {
		seg, rest, found := strings.Cut(rel, "/")
		if seg != ".." && seg != "." && (seg != "" || !found) {
			return rel
		}
		if !found {
			return ""
		}
		rel = rest
	}
}

func hasParentSegment(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// urlPathOf returns the rooted slash path naming target, which lies within root.
func urlPathOf(root, target string) string {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

// isAbsent reports whether err means the path names nothing that can be served.
func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, syscall.ENOTDIR) ||
		errors.Is(err, syscall.ENAMETOOLONG) ||
		errors.Is(err, syscall.ELOOP)
}

func within(root, target string) bool {
	if target == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(target, prefix)
}

// depth counts the components of an absolute path; the filesystem root has depth 0.
func depth(p string) int {
	trimmed := strings.Trim(filepath.ToSlash(filepath.Clean(p)), "/")
	if vol := filepath.VolumeName(p); vol != "" {
		trimmed = strings.Trim(strings.TrimPrefix(trimmed, filepath.ToSlash(vol)), "/")
	}
	if trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, "/") + 1
}
