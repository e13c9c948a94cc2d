package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultFile is where a Manager keeps its task list.
const DefaultFile = "backup_tasks.json"

var (
	ErrTaskNotFound = errors.New("backup task not found")
	ErrTaskExists   = errors.New("backup task already exists")
)

// record is the persisted form of a Task. Interval is in seconds.
type record struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Interval    int64  `json:"interval"`
	Status      Status `json:"status"`
}

// TaskInfo is a snapshot of one task for listing.
type TaskInfo struct {
	Name        string        `json:"name" yaml:"name"`
	Source      string        `json:"source" yaml:"source"`
	Destination string        `json:"destination" yaml:"destination"`
	Interval    time.Duration `json:"interval" yaml:"interval"`
	Status      Status        `json:"status" yaml:"status"`
}

// Manager owns the task list and its JSON file.
type Manager struct {
	path   string
	mu     sync.Mutex
	tasks  []*Task
	logger *slog.Logger
}

func NewManager(path string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{path: path, logger: logger}
}

// Load reads the task list. A missing file yields no tasks. Loaded tasks
// are always stopped, whatever status was recorded.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", m.path, err)
	}

	var records []record
	if len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("failed to parse %s: %w", m.path, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = m.tasks[:0]
	for _, r := range records {
		t := NewTask(r.Name, r.Source, r.Destination, time.Duration(r.Interval)*time.Second)
		t.logger = m.logger
		m.tasks = append(m.tasks, t)
	}
	return nil
}

// Save writes the task list.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	records := make([]record, 0, len(m.tasks))
	for _, t := range m.tasks {
		records = append(records, record{
			Name:        t.Name,
			Source:      t.Source,
			Destination: t.Destination,
			Interval:    int64(t.Interval / time.Second),
			Status:      t.Status(),
		})
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(m.path, data, 0644)
}

func (m *Manager) indexLocked(name string) int {
	for i, t := range m.tasks {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// Add validates t, appends it and saves the list.
func (m *Manager) Add(t *Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexLocked(t.Name) >= 0 {
		return fmt.Errorf("%w: %s", ErrTaskExists, t.Name)
	}
	t.logger = m.logger
	m.tasks = append(m.tasks, t)
	return m.saveLocked()
}

// Update replaces the task called name with t. The old task is stopped.
func (m *Manager) Update(name string, t *Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	if j := m.indexLocked(t.Name); j >= 0 && j != i {
		return fmt.Errorf("%w: %s", ErrTaskExists, t.Name)
	}
	m.tasks[i].Stop()
	t.logger = m.logger
	m.tasks[i] = t
	return m.saveLocked()
}

// Remove stops and deletes the named task.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	m.tasks[i].Stop()
	m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
	return m.saveLocked()
}

// Get returns the named task.
func (m *Manager) Get(name string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return m.tasks[i], nil
}

func (m *Manager) Start(ctx context.Context, name string) error {
	t, err := m.Get(name)
	if err != nil {
		return err
	}
	t.Start(ctx)
	return m.Save()
}

func (m *Manager) Stop(name string) error {
	t, err := m.Get(name)
	if err != nil {
		return err
	}
	t.Stop()
	return m.Save()
}

// StopAll stops every task and waits for their loops to exit.
func (m *Manager) StopAll() {
	m.mu.Lock()
	tasks := append([]*Task(nil), m.tasks...)
	m.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
	for _, t := range tasks {
		t.Wait()
	}
}

func (m *Manager) List() []TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TaskInfo, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, TaskInfo{
			Name:        t.Name,
			Source:      t.Source,
			Destination: t.Destination,
			Interval:    t.Interval,
			Status:      t.Status(),
		})
	}
	return out
}
