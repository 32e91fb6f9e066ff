// SPDX-License-Identifier: MIT

// Package fsutil guards filesystem access against traversal and symlink
// escapes. Both the content scanner and the artifact file server must only
// ever touch paths physically below their configured roots.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfineRelPath joins root and relTarget and ensures the result lies
// physically underneath the resolved root. The target must be relative.
func ConfineRelPath(root, relTarget string) (string, error) {
	// Backslashes are rejected outright to avoid OS-specific parsing
	// ambiguity on non-Windows systems.
	if strings.Contains(relTarget, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", relTarget)
	}

	cleanRel := filepath.Clean(relTarget)
	if filepath.IsAbs(cleanRel) || strings.HasPrefix(cleanRel, "/") {
		return "", fmt.Errorf("target path must be relative: %s", relTarget)
	}

	// filepath.Clean collapses "a/../b", so a remaining leading ".." means
	// the target points outside the root.
	if cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt: %s", relTarget)
	}

	realRoot, err := resolveRoot(root)
	if err != nil {
		return "", err
	}

	return resolveAndCheck(realRoot, filepath.Join(realRoot, cleanRel))
}

// ConfineAbsPath ensures targetAbs lies physically underneath the resolved
// root. The target must be absolute.
func ConfineAbsPath(rootAbs, targetAbs string) (string, error) {
	if strings.Contains(targetAbs, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", targetAbs)
	}
	if !filepath.IsAbs(targetAbs) {
		return "", fmt.Errorf("target path must be absolute: %s", targetAbs)
	}

	realRoot, err := resolveRoot(rootAbs)
	if err != nil {
		return "", err
	}

	return resolveAndCheck(realRoot, filepath.Clean(targetAbs))
}

func resolveRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return "", err
		}
		realRoot = absRoot
	}
	return realRoot, nil
}

// resolveAndCheck resolves symlinks in fullPath and verifies it stays
// within realRoot. Non-existent leaves are checked via their parent.
func resolveAndCheck(realRoot, fullPath string) (string, error) {
	var realPath string
	if _, err := os.Lstat(fullPath); err == nil {
		rp, err := filepath.EvalSymlinks(fullPath)
		if err != nil {
			// Existing path that cannot be resolved: fail closed.
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		realPath = rp
	} else {
		dir := filepath.Dir(fullPath)
		if rp, err := filepath.EvalSymlinks(dir); err == nil {
			realPath = filepath.Join(rp, filepath.Base(fullPath))
		} else {
			if _, statErr := os.Stat(dir); statErr == nil {
				// Parent exists but did not resolve (permissions, loop).
				return "", fmt.Errorf("failed to resolve parent path: %v", err)
			}
			// Parent missing as well; rely on the Rel check below.
			realPath = fullPath
		}
	}

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil {
		return "", fmt.Errorf("rel computation failed: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root via symlinks: %s", realPath)
	}

	return realPath, nil
}

// IsRegularFile checks that path exists and is a regular file.
func IsRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	return nil
}
