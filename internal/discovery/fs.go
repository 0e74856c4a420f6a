package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoPipeline indicates that no pipeline file was found during discovery.
var ErrNoPipeline = errors.New("no pipeline file discovered")

// DefaultNames are tried in order when no pipeline file is given.
var DefaultNames = []string{"deploy.yml", "deploy.yaml"}

// PipelineFile returns the pipeline definition path relative to root when
// possible. An explicit path is validated; otherwise the first of
// DefaultNames present in root is used.
func PipelineFile(root, explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return resolveExplicit(root, explicit)
	}

	for _, name := range DefaultNames {
		path := filepath.Join(root, name)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("stat %q: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		return mustRelOrClean(root, path), nil
	}
	return "", ErrNoPipeline
}

// ArtifactsDir resolves the build output directory against root.
func ArtifactsDir(root, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}

func resolveExplicit(root, input string) (string, error) {
	cleaned := input
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(root, cleaned)
	}
	info, err := os.Stat(cleaned)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("pipeline %q not found", input)
		}
		return "", fmt.Errorf("stat %q: %w", input, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("pipeline %q is a directory", input)
	}
	return mustRelOrClean(root, cleaned), nil
}

func mustRelOrClean(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Clean(path)
	}
	rel = filepath.Clean(rel)
	if rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Clean(path)
	}
	return rel
}
