package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dirplan/internal/core"
	"dirplan/internal/editor"
	"dirplan/internal/server/config"
	"dirplan/internal/server/storage"
	"dirplan/internal/template"

	"github.com/google/uuid"
)

// Sentinel errors for the service layer.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrImportTooLarge  = errors.New("archive exceeds maximum allowed size")
	ErrInvalidZip      = errors.New("invalid or corrupt ZIP file")
)

// SessionView is the state of one editing session as returned to clients.
type SessionView struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	Text      string    `json:"text"`
	Structure core.Tree `json:"structure"`
	Names     []string  `json:"names"`
	Folders   int       `json:"folders"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// session owns one editor. mu serializes every operation on it.
type session struct {
	mu        sync.Mutex
	id        string
	editor    *editor.Editor
	createdAt time.Time
	updatedAt time.Time
	lastUsed  time.Time
}

func (s *session) view() *SessionView {
	tree := s.editor.Tree()
	if tree == nil {
		tree = core.Tree{}
	}
	return &SessionView{
		ID:        s.id,
		State:     s.editor.State().String(),
		Text:      s.editor.Text(),
		Structure: tree,
		Names:     s.editor.Names(),
		Folders:   tree.Len(),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
}

// StructureService keeps one editor per session and runs edits, exports
// and template operations against it.
type StructureService struct {
	templates template.Store
	exports   storage.Store
	cfg       *config.Config
	now       func() time.Time

	mu          sync.RWMutex
	sessions    map[string]*session
	exportNames map[string]string
}

// NewStructureService creates a new structure service.
func NewStructureService(templates template.Store, exports storage.Store, cfg *config.Config) *StructureService {
	return &StructureService{
		templates:   templates,
		exports:     exports,
		cfg:         cfg,
		now:         time.Now,
		sessions:    make(map[string]*session),
		exportNames: make(map[string]string),
	}
}

// CreateSession starts a session whose buffer holds text.
func (s *StructureService) CreateSession(text string) *SessionView {
	now := s.now()
	sess := &session{
		id:        uuid.NewString(),
		editor:    editor.New(),
		createdAt: now,
		updatedAt: now,
		lastUsed:  now,
	}
	sess.editor.Load(text)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	slog.Info("session created", "session_id", sess.id, "state", sess.editor.State().String())
	return sess.view()
}

func (s *StructureService) lookup(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// read runs fn under the session lock without marking the session modified.
func (s *StructureService) read(id string, fn func(*session) error) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastUsed = s.now()
	return fn(sess)
}

// edit runs fn under the session lock and returns the resulting view.
func (s *StructureService) edit(id string, fn func(*editor.Editor) error) (*SessionView, error) {
	var view *SessionView
	err := s.read(id, func(sess *session) error {
		if err := fn(sess.editor); err != nil {
			return err
		}
		sess.updatedAt = sess.lastUsed
		view = sess.view()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// GetSession returns the current state of a session.
func (s *StructureService) GetSession(id string) (*SessionView, error) {
	var view *SessionView
	err := s.read(id, func(sess *session) error {
		view = sess.view()
		return nil
	})
	return view, err
}

// ReplaceText reparses the session buffer from text.
func (s *StructureService) ReplaceText(id, text string) (*SessionView, error) {
	return s.edit(id, func(e *editor.Editor) error {
		e.Load(text)
		return nil
	})
}

// ClearSession empties the session's tree.
func (s *StructureService) ClearSession(id string) (*SessionView, error) {
	return s.edit(id, func(e *editor.Editor) error {
		e.Clear()
		return nil
	})
}

// DeleteSession discards a session.
func (s *StructureService) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	slog.Info("session deleted", "session_id", id)
	return nil
}

// AddFolders appends names under the first folder called parent, or as
// top-level folders when parent is empty.
func (s *StructureService) AddFolders(id, parent string, names []string) (*SessionView, error) {
	return s.edit(id, func(e *editor.Editor) error {
		if parent != "" {
			return e.InsertChild(parent, names...)
		}
		if len(names) == 0 {
			return &core.ValidationError{Field: "names", Cause: "at least one folder name is required"}
		}
		for _, n := range names {
			if _, err := core.RequireName("name", n); err != nil {
				return err
			}
		}
		for _, n := range names {
			if err := e.AddRoot(n); err != nil {
				return err
			}
		}
		return nil
	})
}

// GenerateSubfolders adds base_1 ... base_count under parent.
func (s *StructureService) GenerateSubfolders(id, parent, base string, count int) (*SessionView, error) {
	return s.edit(id, func(e *editor.Editor) error {
		return e.GenerateSubfolders(parent, base, count)
	})
}

// RenameFolder renames every folder called oldName.
func (s *StructureService) RenameFolder(id, oldName, newName string) (*SessionView, int, error) {
	var renamed int
	view, err := s.edit(id, func(e *editor.Editor) error {
		var err error
		renamed, err = e.RenameNode(oldName, newName)
		return err
	})
	return view, renamed, err
}

// DeleteFolder removes the first folder called name and its subtree.
func (s *StructureService) DeleteFolder(id, name string) (*SessionView, error) {
	return s.edit(id, func(e *editor.Editor) error {
		return e.DeleteSubtree(name)
	})
}

// MoveFolder swaps a folder with its neighbour; direction is "up" or "down".
func (s *StructureService) MoveFolder(id, name, direction string) (*SessionView, error) {
	dir, err := editor.ParseDirection(direction)
	if err != nil {
		return nil, err
	}
	return s.edit(id, func(e *editor.Editor) error {
		return e.MoveSibling(name, dir)
	})
}

// Materialize creates the session's folders under relPath inside the
// configured materialize root.
func (s *StructureService) Materialize(ctx context.Context, id, relPath string, dryRun bool) (*editor.MaterializeResult, error) {
	target, err := editor.SafeJoin(s.cfg.MaterializeRoot, relPath)
	if err != nil {
		return nil, err
	}

	var res *editor.MaterializeResult
	err = s.read(id, func(sess *session) error {
		var err error
		res, err = sess.editor.Materialize(ctx, target, editor.MaterializeOptions{
			DryRun: dryRun,
			Logger: slog.Default().With("session_id", id),
		})
		return err
	})
	return res, err
}

// PruneSessions drops sessions unused for longer than idle and returns how
// many were dropped.
func (s *StructureService) PruneSessions(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for id, sess := range s.sessions {
		// A session whose lock is held is in use.
		if !sess.mu.TryLock() {
			continue
		}
		stale := sess.lastUsed.Before(cutoff)
		sess.mu.Unlock()
		if stale {
			delete(s.sessions, id)
			pruned++
		}
	}
	return pruned
}

// SessionCount reports how many sessions are live.
func (s *StructureService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
