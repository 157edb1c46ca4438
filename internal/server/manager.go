package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"interview-engine/internal/interview"
	"interview-engine/internal/session"
)

// Factory builds the controller of a new session around its browser bridge.
type Factory func(remote *Remote) (*session.Controller, error)

// Entry is one live session.
type Entry struct {
	Controller *session.Controller
	Remote     *Remote

	unsubscribe  func()
	mu           sync.Mutex
	lastActivity time.Time
}

func (e *Entry) touch(t time.Time) {
	e.mu.Lock()
	e.lastActivity = t
	e.mu.Unlock()
}

func (e *Entry) LastActivity() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActivity
}

type ManagerOptions struct {
	IdleTTL         time.Duration
	CleanupInterval time.Duration
	Remote          RemoteOptions
	Logger          *zap.SugaredLogger
	Clock           func() time.Time
}

// Manager keeps the live sessions keyed by session ID and drops the ones
// that have been idle for longer than IdleTTL.
type Manager struct {
	factory Factory
	opts    ManagerOptions
	log     *zap.SugaredLogger
	now     func() time.Time

	sessions      map[string]*Entry
	sessionsMutex sync.RWMutex
}

func NewManager(factory Factory, opts ManagerOptions) *Manager {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 24 * time.Hour
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = min(time.Hour, opts.IdleTTL)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Remote.Logger == nil {
		opts.Remote.Logger = log
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Manager{
		factory:  factory,
		opts:     opts,
		log:      log,
		now:      now,
		sessions: make(map[string]*Entry),
	}
}

// Create builds a session and runs its setup. A session whose setup failed
// is not registered.
func (m *Manager) Create(ctx context.Context, candidateID string) (*Entry, error) {
	remote := NewRemote(m.opts.Remote)
	ctrl, err := m.factory(remote)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	e := &Entry{Controller: ctrl, Remote: remote, lastActivity: m.now()}
	e.unsubscribe = ctrl.Subscribe(remote.Hub())

	if err := ctrl.Setup(ctx, candidateID); err != nil {
		m.shutdown(ctx, e)
		return nil, err
	}

	id := ctrl.Snapshot().Session.SessionID
	remote.Hub().Bind(id)

	m.sessionsMutex.Lock()
	m.sessions[id] = e
	m.sessionsMutex.Unlock()
	m.log.Infof("Session %s registered for candidate %s", id, candidateID)
	return e, nil
}

// Get returns a live session and marks it active.
func (m *Manager) Get(id string) (*Entry, error) {
	m.sessionsMutex.RLock()
	e, ok := m.sessions[id]
	m.sessionsMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, interview.ErrSessionNotFound)
	}
	e.touch(m.now())
	return e, nil
}

// Remove aborts an unfinished session and forgets it.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.sessionsMutex.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.sessionsMutex.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, interview.ErrSessionNotFound)
	}
	m.shutdown(ctx, e)
	return nil
}

func (m *Manager) Len() int {
	m.sessionsMutex.RLock()
	defer m.sessionsMutex.RUnlock()
	return len(m.sessions)
}

// Run removes idle sessions until ctx is cancelled, then closes every
// remaining session.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			m.cleanupInactiveSessions(ctx)
		}
	}
}

func (m *Manager) cleanupInactiveSessions(ctx context.Context) {
	cutoff := m.now().Add(-m.opts.IdleTTL)

	m.sessionsMutex.Lock()
	var idle []*Entry
	for id, e := range m.sessions {
		if e.LastActivity().Before(cutoff) {
			idle = append(idle, e)
			delete(m.sessions, id)
		}
	}
	m.sessionsMutex.Unlock()

	for _, e := range idle {
		m.shutdown(ctx, e)
	}
	if len(idle) > 0 {
		m.log.Infof("Removed %d inactive sessions", len(idle))
	}
}

// CloseAll shuts down every session.
func (m *Manager) CloseAll(ctx context.Context) {
	m.sessionsMutex.Lock()
	entries := make([]*Entry, 0, len(m.sessions))
	for id, e := range m.sessions {
		entries = append(entries, e)
		delete(m.sessions, id)
	}
	m.sessionsMutex.Unlock()

	for _, e := range entries {
		m.shutdown(ctx, e)
	}
}

func (m *Manager) shutdown(ctx context.Context, e *Entry) {
	state := e.Controller.Snapshot().Session.State
	if state != interview.StateCompleted && state != interview.StateError {
		err := e.Controller.Abort(ctx, errors.New("session closed"))
		if err != nil {
			m.log.Warnf("Could not abort session: %v", err)
		}
	}
	e.Controller.Wait()
	e.unsubscribe()
	e.Remote.Close()
}
