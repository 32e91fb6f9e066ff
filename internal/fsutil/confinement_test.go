// SPDX-License-Identifier: MIT

package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfineRelPath(t *testing.T) {
	tmpDir := t.TempDir()

	subDir := filepath.Join(tmpDir, "guides")
	if err := os.Mkdir(subDir, 0o750); err != nil {
		t.Fatal(err)
	}

	safeFile := filepath.Join(tmpDir, "index.md")
	if err := os.WriteFile(safeFile, []byte("# hi"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Symlink pointing above the root.
	linkOutside := filepath.Join(tmpDir, "link_outside")
	if err := os.Symlink("..", linkOutside); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		root     string
		target   string
		wantErr  bool
		wantPath string // suffix match when non-empty
	}{
		{
			name:     "valid simple file",
			root:     tmpDir,
			target:   "index.md",
			wantPath: "index.md",
		},
		{
			name:     "valid nested file that does not exist yet",
			root:     tmpDir,
			target:   "guides/new.md",
			wantPath: filepath.Join("guides", "new.md"),
		},
		{
			name:    "traversal attempt ..",
			root:    tmpDir,
			target:  "../outside.md",
			wantErr: true,
		},
		{
			name:    "absolute target rejected",
			root:    tmpDir,
			target:  "/etc/passwd",
			wantErr: true,
		},
		{
			name:    "backslash rejected",
			root:    tmpDir,
			target:  "guides\\..\\secret",
			wantErr: true,
		},
		{
			name:    "symlink escape",
			root:    tmpDir,
			target:  "link_outside/anything",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfineRelPath(tt.root, tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ConfineRelPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.wantPath != "" && !strings.HasSuffix(got, tt.wantPath) {
				t.Errorf("ConfineRelPath() got = %v, want suffix %v", got, tt.wantPath)
			}
		})
	}
}

func TestConfineAbsPath(t *testing.T) {
	tmpDir := t.TempDir()

	safePath := filepath.Join(tmpDir, "manifest.json")
	if err := os.WriteFile(safePath, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	outsideDir := t.TempDir()
	outsidePath := filepath.Join(outsideDir, "secret.json")

	tests := []struct {
		name    string
		target  string
		wantErr bool
	}{
		{name: "valid absolute path", target: safePath},
		{name: "outside absolute path", target: outsidePath, wantErr: true},
		{name: "relative path input", target: "manifest.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConfineAbsPath(tmpDir, tt.target)
			if (err != nil) != tt.wantErr {
				t.Errorf("ConfineAbsPath() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsRegularFile(t *testing.T) {
	tmpDir := t.TempDir()

	file := filepath.Join(tmpDir, "page.md")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := IsRegularFile(file); err != nil {
		t.Errorf("IsRegularFile(file) = %v, want nil", err)
	}
	if err := IsRegularFile(tmpDir); err == nil {
		t.Error("IsRegularFile(dir) = nil, want error")
	}
	if err := IsRegularFile(filepath.Join(tmpDir, "missing.md")); err == nil {
		t.Error("IsRegularFile(missing) = nil, want error")
	}
}
