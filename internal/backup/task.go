// Package backup mirrors a source directory into a destination on a fixed
// interval. Files are copied only when the destination copy is missing or
// older than the source.
package backup

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dirplan/internal/core"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusStopped Status = "Stopped"
	StatusRunning Status = "Running"
)

// copyWorkers bounds the parallel file copies within one pass.
const copyWorkers = 4

// Task is one named source to destination mirror.
type Task struct {
	Name        string
	Source      string
	Destination string
	Interval    time.Duration

	mu     sync.Mutex
	status Status
	stop   chan struct{}
	done   chan struct{}
	logger *slog.Logger
}

// NewTask returns a stopped task.
func NewTask(name, source, destination string, interval time.Duration) *Task {
	return &Task{
		Name:        name,
		Source:      source,
		Destination: destination,
		Interval:    interval,
		status:      StatusStopped,
		logger:      slog.Default(),
	}
}

// Validate checks the fields a task needs before it can run.
func (t *Task) Validate() error {
	var err error
	if t.Name, err = core.RequireName("name", t.Name); err != nil {
		return err
	}
	if t.Source, err = core.RequireName("source", t.Source); err != nil {
		return err
	}
	if t.Destination, err = core.RequireName("destination", t.Destination); err != nil {
		return err
	}
	if t.Interval < time.Second {
		return &core.ValidationError{Field: "interval", Cause: "must be at least one second"}
	}
	if filepath.Clean(t.Source) == filepath.Clean(t.Destination) {
		return &core.ValidationError{Field: "destination", Cause: "must differ from source"}
	}
	return nil
}

func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Start launches the pass loop. Starting a running task does nothing.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusRunning {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done
	t.status = StatusRunning
	t.logger.Info("backup task started", "task", t.Name, "interval", t.Interval)

	go t.loop(ctx, stop, done)
}

// Stop asks the loop to exit after the pass in progress. It returns at once.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusRunning {
		return
	}
	close(t.stop)
	t.status = StatusStopped
	t.logger.Info("backup task stopping", "task", t.Name)
}

// Wait blocks until the most recently started loop has exited.
func (t *Task) Wait() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (t *Task) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		res, err := t.RunPass(ctx)
		if err != nil {
			t.logger.Error("backup pass failed", "task", t.Name, "error", err)
		} else {
			t.logger.Info("backup pass complete",
				"task", t.Name,
				"dirs", res.Dirs,
				"copied", res.Copied,
				"skipped", res.Skipped,
			)
		}

		select {
		case <-ticker.C:
		case <-stop:
			return
		case <-ctx.Done():
			t.mu.Lock()
			if t.stop == stop {
				t.status = StatusStopped
			}
			t.mu.Unlock()
			return
		}
	}
}

// PassResult counts what one pass did.
type PassResult struct {
	Dirs    int `json:"dirs"`
	Copied  int `json:"copied"`
	Skipped int `json:"skipped"`
}

// RunPass mirrors Source into Destination once.
func (t *Task) RunPass(ctx context.Context) (*PassResult, error) {
	info, err := os.Stat(t.Source)
	if err != nil {
		return nil, fmt.Errorf("backup source %s: %w", t.Source, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("backup source %s is not a directory", t.Source)
	}

	res := &PassResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(copyWorkers)

	walkErr := filepath.WalkDir(t.Source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(t.Source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(t.Destination, rel)

		if d.IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
			res.Dirs++
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		g.Go(func() error {
			copied, err := copyIfNewer(path, target)
			if err != nil {
				return err
			}
			mu.Lock()
			if copied {
				res.Copied++
			} else {
				res.Skipped++
			}
			mu.Unlock()
			return nil
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return res, err
	}
	if walkErr != nil {
		return res, walkErr
	}
	return res, nil
}

// copyIfNewer copies src to dst unless dst exists and is at least as new.
// The copy keeps the source mode and modification time.
func copyIfNewer(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	if dstInfo, err := os.Stat(dst); err == nil && !srcInfo.ModTime().After(dstInfo.ModTime()) {
		return false, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return false, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return false, err
	}
	if err := os.Chmod(dst, srcInfo.Mode().Perm()); err != nil {
		return false, err
	}
	if err := os.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		return false, err
	}
	return true, nil
}
