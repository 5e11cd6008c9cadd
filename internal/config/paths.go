package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveOutputPath resolves the final output path using the following precedence:
//  1. If output is absolute, use it as-is
//  2. If output is relative and outputDir is set, join them
//  3. If output is empty, use defaultName in outputDir (or cwd if no outputDir)
//
// All paths are cleaned using filepath.Clean.
func ResolveOutputPath(output, outputDir, defaultName string) string {
	outputDir = ExpandPath(outputDir)
	switch {
	case output != "" && filepath.IsAbs(output):
		return filepath.Clean(output)
	case output != "" && outputDir != "":
		return filepath.Clean(filepath.Join(outputDir, output))
	case output != "":
		return filepath.Clean(output)
	case outputDir != "":
		return filepath.Clean(filepath.Join(outputDir, defaultName))
	default:
		return filepath.Clean(defaultName)
	}
}

// EnsureOutputDir checks that d can hold output files, creating it if missing.
func EnsureOutputDir(d string) error {
	if d == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}
	d = ExpandPath(d)

	info, err := os.Stat(d)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(d, 0o750); err != nil { // #nosec G301 -- user output dir
			return fmt.Errorf("cannot create directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", d, ErrNotDirectory)
	}

	// Probe with a real file.
	f, err := os.CreateTemp(d, ".docpipe-write-test-*")
	if err != nil {
		return fmt.Errorf("%s: %w: %w", d, ErrNotWritable, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return p
}
