package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakePruner struct {
	calls int
	idle  time.Duration
}

func (p *fakePruner) PruneSessions(idle time.Duration) int {
	p.calls++
	p.idle = idle
	return 2
}

func TestCleanupService_RunOnce(t *testing.T) {
	dir := t.TempDir()
	store := NewFileSystemStore(dir)
	id := uuid.NewString()
	if _, err := store.Save(id, bytes.NewReader([]byte("zip"))); err != nil {
		t.Fatalf("save: %v", err)
	}
	old := time.Now().Add(-2 * time.Hour)
	os.Chtimes(filepath.Join(dir, id+".zip"), old, old)

	pruner := &fakePruner{}
	cs := NewCleanupService(store, pruner, time.Hour, 30*time.Minute, time.Minute)
	cs.RunOnce(time.Now())

	if _, err := store.GetPath(id); err == nil {
		t.Error("expected expired export to be removed")
	}
	if pruner.calls != 1 || pruner.idle != 30*time.Minute {
		t.Errorf("expected one prune with 30m idle, got %d calls with %v", pruner.calls, pruner.idle)
	}
}
