package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// compareGolden compares text with the golden file name below GoldenDir.
// With UpdateGoldens the file is written instead.
func (r *Runner) compareGolden(name, text string) error {
	if !filepath.IsLocal(name) {
		return fmt.Errorf("golden path %q must be relative and stay within the golden directory", name)
	}
	path := filepath.Join(r.opts.GoldenDir, name)

	if r.opts.UpdateGoldens {
		if err := writeFile(path, []byte(text+"\n")); err != nil {
			return fmt.Errorf("updating golden file: %w", err)
		}
		r.opts.Logger.Info("Golden file updated", "path", path)
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: golden file %s does not exist, run with golden updates enabled to create it", ErrAssertion, path)
	}
	if err != nil {
		return fmt.Errorf("reading golden file: %w", err)
	}

	expected := strings.TrimSuffix(string(data), "\n")
	if expected == text {
		return nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected + "\n"),
		B:        difflib.SplitLines(text + "\n"),
		FromFile: path,
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return fmt.Errorf("diffing golden file: %w", err)
	}
	return fmt.Errorf("%w: text differs from golden file %s:\n%s", ErrAssertion, path, diff)
}
