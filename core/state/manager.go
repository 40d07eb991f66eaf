package state

import (
	"errors"
	"sort"

	"lendledger/storage"
)

// Manager is a journaled overlay on top of a storage.Database. Writes land in
// an in-memory dirty set and reach the backing store only on Commit; every
// write is journaled so any prefix of a logical action can be rolled back via
// Snapshot/RevertToSnapshot.
type Manager struct {
	db      storage.Database
	dirty   map[string]*dirtyValue
	journal []journalEntry
}

type dirtyValue struct {
	data    []byte
	deleted bool
}

type journalEntry struct {
	key  string
	prev *dirtyValue
}

// NewManager wraps the backing database in a fresh overlay.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string]*dirtyValue)}
}

// Get reads through the overlay, returning storage.ErrNotFound for absent or
// deleted keys.
func (m *Manager) Get(key string) ([]byte, error) {
	if entry, ok := m.dirty[key]; ok {
		if entry.deleted {
			return nil, storage.ErrNotFound
		}
		return append([]byte(nil), entry.data...), nil
	}
	if m.db == nil {
		return nil, storage.ErrNotFound
	}
	return m.db.Get([]byte(key))
}

// Put stages a write in the overlay.
func (m *Manager) Put(key string, value []byte) {
	m.record(key)
	m.dirty[key] = &dirtyValue{data: append([]byte(nil), value...)}
}

// Delete stages a deletion in the overlay.
func (m *Manager) Delete(key string) {
	m.record(key)
	m.dirty[key] = &dirtyValue{deleted: true}
}

func (m *Manager) record(key string) {
	m.journal = append(m.journal, journalEntry{key: key, prev: m.dirty[key]})
}

// Snapshot marks the current journal position for a later revert.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot unwinds every staged write made since the snapshot.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 || id > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.prev == nil {
			delete(m.dirty, entry.key)
		} else {
			m.dirty[entry.key] = entry.prev
		}
	}
	m.journal = m.journal[:id]
}

// Commit flushes the overlay to the backing store and resets the journal.
// Keys are flushed in sorted order so commits are deterministic.
func (m *Manager) Commit() error {
	if m.db == nil {
		return errors.New("state: no backing database")
	}
	keys := make([]string, 0, len(m.dirty))
	for key := range m.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		entry := m.dirty[key]
		if entry.deleted {
			if err := m.db.Delete([]byte(key)); err != nil {
				return err
			}
			continue
		}
		if err := m.db.Put([]byte(key), entry.data); err != nil {
			return err
		}
	}
	m.dirty = make(map[string]*dirtyValue)
	m.journal = m.journal[:0]
	return nil
}

// Discard drops every staged write without touching the backing store.
func (m *Manager) Discard() {
	m.dirty = make(map[string]*dirtyValue)
	m.journal = m.journal[:0]
}
