package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/networkteam/pageprobe/collector"
)

// ErrTooManySessions is returned when MaxSessions viewers are already connected.
var ErrTooManySessions = errors.New("too many dashboard sessions")

// sessionState tracks a viewer's run storage
type sessionState struct {
	storageID  uuid.UUID
	lastActive time.Time
}

// SessionManager manages one run storage per dashboard viewer.
// The viewer ID doubles as the suite ID of runs the viewer triggers, so a
// storage in suite mode only shows the viewer's own runs.
type SessionManager struct {
	eventAggregator *collector.EventAggregator
	logger          *slog.Logger

	sessions   map[uuid.UUID]*sessionState
	sessionsMu sync.RWMutex

	storageCapacity uint64
	idleTimeout     time.Duration
	maxSessions     int

	cleanupCtx       context.Context
	cleanupCtxCancel context.CancelFunc
}

// SessionManagerOptions configures a SessionManager
type SessionManagerOptions struct {
	EventAggregator *collector.EventAggregator
	StorageCapacity uint64
	IdleTimeout     time.Duration
	// MaxSessions limits concurrent viewers, 0 means unlimited.
	MaxSessions int
	Logger      *slog.Logger
}

// NewSessionManager creates a new SessionManager and starts the cleanup goroutine
func NewSessionManager(opts SessionManagerOptions) *SessionManager {
	storageCapacity := opts.StorageCapacity
	if storageCapacity == 0 {
		storageCapacity = DefaultStorageCapacity
	}

	idleTimeout := opts.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = DefaultSessionIdleTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cleanupCtx, cleanupCtxCancel := context.WithCancel(context.Background())

	sm := &SessionManager{
		eventAggregator:  opts.EventAggregator,
		logger:           logger,
		sessions:         make(map[uuid.UUID]*sessionState),
		storageCapacity:  storageCapacity,
		idleTimeout:      idleTimeout,
		maxSessions:      opts.MaxSessions,
		cleanupCtx:       cleanupCtx,
		cleanupCtxCancel: cleanupCtxCancel,
	}

	go sm.cleanupLoop()

	return sm
}

// Get returns the storage for a viewer, or nil if not found
func (sm *SessionManager) Get(viewerID uuid.UUID) *collector.RunStorage {
	sm.sessionsMu.RLock()
	state, exists := sm.sessions[viewerID]
	sm.sessionsMu.RUnlock()

	if !exists {
		return nil
	}

	storage := sm.eventAggregator.GetStorage(state.storageID)
	if storage == nil {
		return nil
	}

	return storage.(*collector.RunStorage)
}

// GetOrCreate returns the storage for a viewer, creating it if it doesn't exist.
// Returns the storage and whether it was newly created.
func (sm *SessionManager) GetOrCreate(viewerID uuid.UUID, mode collector.CaptureMode) (*collector.RunStorage, bool, error) {
	sm.sessionsMu.Lock()
	defer sm.sessionsMu.Unlock()

	if state, exists := sm.sessions[viewerID]; exists {
		if storage := sm.eventAggregator.GetStorage(state.storageID); storage != nil {
			state.lastActive = time.Now()
			return storage.(*collector.RunStorage), false, nil
		}
		// Storage was removed but session state remains
		delete(sm.sessions, viewerID)
	}

	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		return nil, false, ErrTooManySessions
	}

	storage := collector.NewRunStorage(viewerID, sm.storageCapacity, mode)
	sm.eventAggregator.RegisterStorage(storage)

	sm.sessions[viewerID] = &sessionState{
		storageID:  storage.ID(),
		lastActive: time.Now(),
	}

	return storage, true, nil
}

// Delete removes a viewer and its storage
func (sm *SessionManager) Delete(viewerID uuid.UUID) {
	sm.sessionsMu.Lock()
	defer sm.sessionsMu.Unlock()

	state, exists := sm.sessions[viewerID]
	if !exists {
		return
	}
	sm.removeLocked(viewerID, state)
}

// UpdateActivity updates the last active time for a viewer
func (sm *SessionManager) UpdateActivity(viewerID uuid.UUID) {
	sm.sessionsMu.Lock()
	if state, exists := sm.sessions[viewerID]; exists {
		state.lastActive = time.Now()
	}
	sm.sessionsMu.Unlock()
}

// Count returns the number of active viewers
func (sm *SessionManager) Count() int {
	sm.sessionsMu.RLock()
	defer sm.sessionsMu.RUnlock()
	return len(sm.sessions)
}

// IdleTimeout returns the configured idle timeout duration
func (sm *SessionManager) IdleTimeout() time.Duration {
	return sm.idleTimeout
}

// Close shuts down the session manager and cleans up all sessions
func (sm *SessionManager) Close() {
	sm.cleanupCtxCancel()

	sm.sessionsMu.Lock()
	defer sm.sessionsMu.Unlock()

	for viewerID, state := range sm.sessions {
		sm.removeLocked(viewerID, state)
	}
}

// Must be called with lock held.
func (sm *SessionManager) removeLocked(viewerID uuid.UUID, state *sessionState) {
	if storage := sm.eventAggregator.GetStorage(state.storageID); storage != nil {
		storage.Close()
	}
	sm.eventAggregator.UnregisterStorage(state.storageID)
	delete(sm.sessions, viewerID)
}

// cleanupLoop periodically checks for idle sessions and cleans them up
func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(sm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-sm.cleanupCtx.Done():
			return
		case <-ticker.C:
			sm.cleanupIdleSessions()
		}
	}
}

func (sm *SessionManager) cleanupIdleSessions() {
	now := time.Now()

	sm.sessionsMu.Lock()
	defer sm.sessionsMu.Unlock()

	for viewerID, state := range sm.sessions {
		if idle := now.Sub(state.lastActive); idle > sm.idleTimeout {
			sm.logger.Debug("Removing idle dashboard session", "viewer", viewerID, "idle", idle)
			sm.removeLocked(viewerID, state)
		}
	}
}
