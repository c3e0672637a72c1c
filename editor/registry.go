package editor

import (
	"github.com/Viktor-Kode/bloghub/store"
	"log"
	"sync"
	"time"
)

// DefaultIdleTimeout - editors unused for this long are dropped
const DefaultIdleTimeout = time.Hour

type registryEntry struct {
	editor   *Editor
	lastUsed time.Time
}

// Registry - keeps one editor per session email, so the edit selection survives between page loads
// Sessions that expire without signing out are evicted once idle for longer than the idle timeout
type Registry struct {
	store       store.Store
	idleTimeout time.Duration
	logInfo     *log.Logger
	logError    *log.Logger
	now         func() time.Time

	mu      sync.Mutex
	editors map[string]*registryEntry
}

// NewRegistry - creates registry. idleTimeout <= 0 means DefaultIdleTimeout
func NewRegistry(s store.Store, idleTimeout time.Duration, logInfo, logError *log.Logger) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Registry{
		store:       s,
		idleTimeout: idleTimeout,
		logInfo:     logInfo,
		logError:    logError,
		now:         time.Now,
		editors:     make(map[string]*registryEntry),
	}
}

// For - editor of the session
func (r *Registry) For(email string) *Editor {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.evictIdle(now)

	entry, ok := r.editors[email]
	if !ok {
		entry = &registryEntry{editor: New(r.store, r.logInfo, r.logError)}
		r.editors[email] = entry
	}
	entry.lastUsed = now
	return entry.editor
}

// evictIdle - must be called with mu held
func (r *Registry) evictIdle(now time.Time) {
	for email, entry := range r.editors {
		if now.Sub(entry.lastUsed) > r.idleTimeout {
			delete(r.editors, email)
			r.logInfo.Printf("Dropped idle editor of %s", email)
		}
	}
}

// Forget - drops the editor of the session, e.g. on sign out
func (r *Registry) Forget(email string) {
	r.mu.Lock()
	delete(r.editors, email)
	r.mu.Unlock()
}

// Len - number of live editors
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.editors)
}
