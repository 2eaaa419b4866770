// Package artifacts manages the on-disk diagnostic output of a run: one
// directory per scenario holding its trace and, on failure, a screenshot.
package artifacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/gherkit/gherkit/internal/config"
)

const screenshotName = "failure.png"

// Store lays out artifact directories under one run root.
type Store struct {
	root     string
	compress bool
	logger   *zap.Logger
}

// New creates the run root directory and returns the store.
func New(cfg config.ArtifactsConfig, runID string, logger *zap.Logger) (*Store, error) {
	root := filepath.Join(cfg.Dir, runID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts root: %w", err)
	}
	return &Store{
		root:     root,
		compress: cfg.Compress,
		logger:   logger.Named("artifacts"),
	}, nil
}

// Root returns the run's artifact root directory.
func (s *Store) Root() string { return s.root }

// ScenarioDir creates and returns the directory for one scenario, named
// after the slugged scenario name plus a short ID suffix to keep repeated
// scenario names apart.
func (s *Store) ScenarioDir(name, id string) (string, error) {
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	dir := filepath.Join(s.root, Slug(name)+"-"+suffix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create scenario artifact dir: %w", err)
	}
	return dir, nil
}

// WriteScreenshot persists failure screenshot bytes into dir and returns the
// written path.
func (s *Store) WriteScreenshot(dir string, data []byte) (string, error) {
	path := filepath.Join(dir, screenshotName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

// FinishTrace post-processes a trace artifact the browsing context already
// wrote. Text logs are brotli-compressed in place when compression is
// enabled; binary traces pass through untouched. Returns the final path;
// compression failures keep the plain file, so there is no error to report.
func (s *Store) FinishTrace(path string) string {
	if !s.compress || !strings.HasSuffix(path, ".log") {
		return path
	}
	compressed, err := CompressFile(path)
	if err != nil {
		// A trace that stays uncompressed is still a trace.
		s.logger.Warn("Failed to compress trace log; keeping the plain file.",
			zap.String("path", path), zap.Error(err))
		return path
	}
	return compressed
}

// CompressFile brotli-compresses path into path.br and removes the original.
func CompressFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer in.Close()

	outPath := path + ".br"
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", outPath, err)
	}

	w := brotli.NewWriterLevel(out, brotli.BestCompression)
	if _, err := io.Copy(w, in); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("compress %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("flush %s: %w", outPath, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", outPath, err)
	}

	in.Close()
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("remove %s: %w", path, err)
	}
	return outPath, nil
}

// Slug converts a scenario name into a filesystem-safe directory component:
// lowercase, runs of non-alphanumerics collapsed to single hyphens.
func Slug(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "scenario"
	}
	if len(slug) > 60 {
		slug = strings.TrimSuffix(slug[:60], "-")
	}
	return slug
}
