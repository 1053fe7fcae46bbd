package runner

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/natefinch/atomic"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func debugArtifactName(scenarioName string, step int) string {
	return fmt.Sprintf("debug-%s-%d.png", unsafeNameChars.ReplaceAllString(scenarioName, "-"), step)
}

// writeArtifact writes data to name below the artifacts directory,
// replacing an existing file atomically. It returns the written path.
func (r *Runner) writeArtifact(name string, data []byte) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("artifact path %q must be relative and stay within the artifacts directory", name)
	}
	path := filepath.Join(r.opts.ArtifactsDir, name)
	if err := writeFile(path, data); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	return path, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}
