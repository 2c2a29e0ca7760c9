// Package prompts provides the analysis and digest templates, embedded by default
// and optionally replaced by files on disk.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed analysis.txt
var defaultAnalysis string

//go:embed digest.txt
var defaultDigest string

// Set bundles the two templates a run needs.
type Set struct {
	Analysis string
	Digest   string
}

// Load returns the embedded templates, replacing each with the file at its path when one is given.
func Load(analysisPath, digestPath string) (Set, error) {
	analysis, err := loadOne(analysisPath, defaultAnalysis)
	if err != nil {
		return Set{}, err
	}
	digest, err := loadOne(digestPath, defaultDigest)
	if err != nil {
		return Set{}, err
	}
	return Set{Analysis: analysis, Digest: digest}, nil
}

func loadOne(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", fmt.Errorf("prompt %s is empty", path)
	}
	return string(raw), nil
}
