package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// DefaultKey is the key the snapshot is stored under.
const DefaultKey = "session"

// KV is a string key-value store that survives restarts.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Manager loads and saves the snapshot of one engine.
type Manager struct {
	kv     KV
	key    string
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	source   string
	autosave *rate.Sometimes
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithKey stores the snapshot under key instead of DefaultKey.
func WithKey(key string) ManagerOption {
	return func(m *Manager) {
		m.key = key
	}
}

// WithLogger sets the logger used for recovered failures.
func WithLogger(l *log.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithAutosaveInterval limits Autosave to one write per interval.
func WithAutosaveInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.autosave = &rate.Sometimes{Interval: d}
	}
}

// NewManager returns a Manager persisting to kv.
func NewManager(kv KV, opts ...ManagerOption) *Manager {
	m := &Manager{
		kv:       kv,
		key:      DefaultKey,
		logger:   log.New(io.Discard),
		now:      time.Now,
		autosave: &rate.Sometimes{Interval: time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetSource records the label of the text being read, stored with every
// snapshot.
func (m *Manager) SetSource(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = source
}

// Load returns the saved snapshot. Missing, unreadable or malformed records
// yield false; a malformed record is removed.
func (m *Manager) Load(ctx context.Context) (Snapshot, bool) {
	raw, ok, err := m.kv.Get(ctx, m.key)
	if err != nil {
		m.logger.Warn("failed to read saved session", "error", err)
		return Snapshot{}, false
	}
	if !ok {
		return Snapshot{}, false
	}
	snap, err := Decode(raw)
	if err != nil {
		m.logger.Warn("discarding saved session", "error", err)
		if rerr := m.kv.Remove(ctx, m.key); rerr != nil {
			m.logger.Warn("failed to remove saved session", "error", rerr)
		}
		return Snapshot{}, false
	}
	m.SetSource(snap.Source)
	return snap, true
}

// Save writes the snapshot of e.
func (m *Manager) Save(ctx context.Context, e StatusSource) error {
	snap := Capture(e)
	m.mu.Lock()
	snap.Source = m.source
	m.mu.Unlock()
	snap.SavedAt = m.now().UTC()
	raw, err := Encode(snap)
	if err != nil {
		return err
	}
	return m.kv.Set(ctx, m.key, raw)
}

// Autosave saves e at most once per autosave interval. Failures are logged.
func (m *Manager) Autosave(ctx context.Context, e StatusSource) {
	m.autosave.Do(func() {
		if err := m.Save(ctx, e); err != nil {
			m.logger.Warn("autosave failed", "error", err)
		}
	})
}

// Clear removes the saved snapshot.
func (m *Manager) Clear(ctx context.Context) error {
	return m.kv.Remove(ctx, m.key)
}

// MemoryKV is an in-process KV, used when no database is available.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: map[string]string{}}
}

// Get implements KV.
func (kv *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.values[key]
	return v, ok, nil
}

// Set implements KV.
func (kv *MemoryKV) Set(_ context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
	return nil
}

// Remove implements KV.
func (kv *MemoryKV) Remove(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.values, key)
	return nil
}
