// Package render turns reports into files and hands them to the desktop.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/verte-zerg/yiiprof/internal/stats"
)

// Renderer turns a report into a document.
type Renderer interface {
	Render(r stats.Report) ([]byte, error)
	// Ext is the preferred file extension, including the dot.
	Ext() string
}

// Formats lists the names accepted by ForFormat.
var Formats = []string{"html", "text", "json"}

// ForFormat returns the renderer for a format name.
func ForFormat(name string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "html":
		return NewHTML()
	case "text", "txt":
		return &Text{}, nil
	case "json":
		return &JSON{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (available: %s)", name, strings.Join(Formats, ", "))
	}
}

// TempDirPattern names the directories created when no output dir is given.
const TempDirPattern = "yii-profile-"

// reportFileMode keeps reports readable by other users of a shared output dir.
const reportFileMode = 0o644

// Persist writes artifact to dir/filename and returns the path. An empty dir
// means a fresh temporary directory.
func Persist(artifact []byte, dir, filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("output file name is empty")
	}
	if dir == "" {
		tmp, err := os.MkdirTemp("", TempDirPattern)
		if err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, filename)
	tmpFile, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp report: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmpFile.Write(artifact); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmpFile.Chmod(reportFileMode); err != nil {
		return "", fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
