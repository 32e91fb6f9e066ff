// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestManagerRequiresHandler(t *testing.T) {
	if _, err := NewManager(":0", nil, 0); !errors.Is(err, ErrMissingHandler) {
		t.Errorf("NewManager(nil handler) error = %v, want ErrMissingHandler", err)
	}
}

func TestManagerStartAndShutdown(t *testing.T) {
	addr := freeAddr(t)
	m, err := NewManager(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), time.Second)
	if err != nil {
		t.Fatal(err)
	}

	var hooksRun []string
	m.RegisterShutdownHook("first", func(context.Context) error {
		hooksRun = append(hooksRun, "first")
		return nil
	})
	m.RegisterShutdownHook("second", func(context.Context) error {
		hooksRun = append(hooksRun, "second")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	// Wait until the server answers.
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server never came up")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}

	// Hooks run in reverse registration order.
	if len(hooksRun) != 2 || hooksRun[0] != "second" || hooksRun[1] != "first" {
		t.Errorf("hook order = %v, want [second first]", hooksRun)
	}
}

func TestManagerDoubleStart(t *testing.T) {
	m, err := NewManager(freeAddr(t), http.NotFoundHandler(), time.Second)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if err := m.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	cancel()
	<-done
}

func TestManagerShutdownBeforeStart(t *testing.T) {
	m, err := NewManager(freeAddr(t), http.NotFoundHandler(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Shutdown(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Shutdown() error = %v, want ErrNotStarted", err)
	}
}

func TestContentWatcherTriggersRebuild(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "guides"), 0750); err != nil {
		t.Fatal(err)
	}

	var triggers atomic.Int32
	w := NewContentWatcher(root, 50*time.Millisecond, func(context.Context) {
		triggers.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// A burst of writes must collapse into one trigger.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(filepath.Join(root, "guides", "page.md"), []byte("# hi"), 0600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	deadline := time.Now().Add(3 * time.Second)
	for triggers.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if got := triggers.Load(); got != 1 {
		t.Errorf("triggers = %d, want 1 (debounced)", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestContentWatcherIgnoresNonMarkdown(t *testing.T) {
	root := t.TempDir()

	var triggers atomic.Int32
	w := NewContentWatcher(root, 50*time.Millisecond, func(context.Context) {
		triggers.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := triggers.Load(); got != 0 {
		t.Errorf("triggers = %d, want 0 for non-markdown file", got)
	}

	cancel()
	<-done
}

func writeEvent(path string) fsnotify.Event {
	return fsnotify.Event{Name: path, Op: fsnotify.Write}
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"markdown", "/c/page.md", true},
		{"markdown long ext", "/c/page.markdown", true},
		{"uppercase ext", "/c/PAGE.MD", true},
		{"text file", "/c/notes.txt", false},
		{"swap file", "/c/.page.md.swp", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := writeEvent(tt.path)
			if got := relevant(ev); got != tt.want {
				t.Errorf("relevant(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
