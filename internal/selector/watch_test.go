package selector

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestFileSourceWatchReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "filters.txt", "type:book\n")
	src, err := NewFileSource(path, LoadOptions{}, 1)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := src.Watch(ctx, zap.NewNop()); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("type:movie\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if src.RandomQuery() == "type:movie" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("watcher did not reload file, still %q", src.RandomQuery())
}

func TestFileSourceReloadKeepsValuesWhenTruncated(t *testing.T) {
	path := writeFile(t, "queries.txt", "a\nb\n")
	src, err := NewFileSource(path, LoadOptions{}, 1)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}

	if err := os.Truncate(path, 0); err != nil {
		t.Fatal(err)
	}
	if err := src.Reload(); !errors.Is(err, ErrEmptyReload) {
		t.Fatalf("Reload() error = %v, want ErrEmptyReload", err)
	}
	if src.Len() != 2 {
		t.Fatalf("Len() = %d, want previous 2 values", src.Len())
	}
	if q := src.RandomQuery(); q != "a" && q != "b" {
		t.Fatalf("RandomQuery() = %q after truncate", q)
	}

	if err := os.WriteFile(path, []byte("c\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := src.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := src.RandomQuery(); got != "c" {
		t.Errorf("RandomQuery() = %q, want c", got)
	}
}

func TestFileSourceEmptyReloadAllowedWhenPoolEmpty(t *testing.T) {
	path := writeFile(t, "queries.txt", "")
	src, err := NewFileSource(path, LoadOptions{}, 1)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}
	if err := src.Reload(); err != nil {
		t.Errorf("Reload() error = %v", err)
	}
}

func TestFileSourceWatchNeverEmptiesOnTruncateRewrite(t *testing.T) {
	path := writeFile(t, "queries.txt", "old\n")
	src, err := NewFileSource(path, LoadOptions{}, 1)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := src.Watch(ctx, zap.NewNop()); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	var sawEmpty atomic.Bool
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if src.RandomQuery() == "" {
				sawEmpty.Store(true)
			}
			time.Sleep(time.Millisecond)
		}
	}()

	if err := os.Truncate(path, 0); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("new\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && src.RandomQuery() != "new" {
		time.Sleep(20 * time.Millisecond)
	}
	close(stop)
	<-done

	if got := src.RandomQuery(); got != "new" {
		t.Fatalf("watcher did not pick up rewrite, got %q", got)
	}
	if sawEmpty.Load() {
		t.Error("selector returned an empty value while the file was truncated")
	}
}
