// Package fixture embeds a stub of the game page the builtin scenarios are
// written against. It serves local demos and the acceptance tests.
package fixture

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

//go:embed site
var site embed.FS

// FS returns the fixture files rooted at the directory containing index.html.
func FS() fs.FS {
	sub, err := fs.Sub(site, "site")
	if err != nil {
		panic(err)
	}
	return sub
}

// Handler serves the fixture files.
func Handler() http.Handler {
	files := http.FileServerFS(FS())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		files.ServeHTTP(w, r)
	})
}

// Dir writes the fixture files to dir, so they can be loaded as file: targets.
// Existing files are replaced.
func Dir(dir string) error {
	return fs.WalkDir(FS(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := fs.ReadFile(FS(), path)
		if err != nil {
			return err
		}
		if err := atomic.WriteFile(target, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("writing fixture file %s: %w", path, err)
		}
		return nil
	})
}
