package scenario

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ResolveTarget turns a scenario or step URL into an absolute URL.
//
//   - "" resolves to base.
//   - http(s) URLs are returned unchanged.
//   - "file:<path>" resolves path against fileRoot (or the working directory if empty).
//   - anything else is resolved relative to base.
func ResolveTarget(base, fileRoot, ref string) (string, error) {
	if ref == "" {
		ref = base
	}

	if path, ok := strings.CutPrefix(ref, "file:"); ok {
		path = strings.TrimPrefix(path, "//")
		if !filepath.IsAbs(path) {
			if fileRoot != "" {
				path = filepath.Join(fileRoot, path)
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return "", fmt.Errorf("resolving file target: %w", err)
			}
			path = abs
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing target %q: %w", ref, err)
	}
	if refURL.IsAbs() {
		return refURL.String(), nil
	}

	if base == "" {
		return "", fmt.Errorf("relative target %q needs a base URL", ref)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing base URL %q: %w", base, err)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// IsFileTarget reports whether a resolved target points to the local file system.
func IsFileTarget(target string) bool {
	return strings.HasPrefix(target, "file:")
}

// FilePath returns the local path of a resolved file target.
func FilePath(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%s is not a file target", target)
	}
	return filepath.FromSlash(u.Path), nil
}
