package compose

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pihole-wizard/pihole-wizard/internal/wizard"
)

// WriteAll renders and writes every file under dir, creating subdirectories
// as needed. Returns the relative paths written.
func WriteAll(st wizard.State, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var written []string
	for _, f := range Render(st) {
		path := filepath.Join(dir, filepath.FromSlash(f.Filename))
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return written, fmt.Errorf("creating directory for %s: %w", f.Filename, err)
		}
		if err := os.WriteFile(path, []byte(f.Content), 0640); err != nil {
			return written, fmt.Errorf("writing %s: %w", f.Filename, err)
		}
		written = append(written, f.Filename)
	}
	return written, nil
}

// ListWritten walks the output directory and returns relative paths and sizes
// of everything previously generated.
func ListWritten(dir string) ([]WrittenFile, error) {
	var files []WrittenFile
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipAll
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, WrittenFile{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// WrittenFile describes one file in the output directory.
type WrittenFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}
