package storage

import (
	"time"
)

// Metadata is the encrypted per-vault record of entry details.
type Metadata struct {
	Version  int         `json:"version"`
	Created  time.Time   `json:"created"`
	Modified time.Time   `json:"modified"`
	Entries  []EntryInfo `json:"entries"`
}

// EntryInfo describes one stored entry.
type EntryInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// NewMetadata creates a new metadata structure.
func NewMetadata() *Metadata {
	now := time.Now()
	return &Metadata{
		Version:  1,
		Created:  now,
		Modified: now,
		Entries:  make([]EntryInfo, 0),
	}
}

// AddEntry adds or updates an entry record.
func (m *Metadata) AddEntry(info EntryInfo) {
	if info.Size < 0 {
		info.Size = 0
	}
	for i := range m.Entries {
		if m.Entries[i].Name == info.Name {
			m.Entries[i] = info
			m.Modified = time.Now()
			return
		}
	}
	m.Entries = append(m.Entries, info)
	m.Modified = time.Now()
}

// RemoveEntry removes an entry record.
func (m *Metadata) RemoveEntry(name string) bool {
	for i, e := range m.Entries {
		if e.Name == name {
			m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)
			m.Modified = time.Now()
			return true
		}
	}
	return false
}

// FindEntry finds an entry record by name.
func (m *Metadata) FindEntry(name string) *EntryInfo {
	for i := range m.Entries {
		if m.Entries[i].Name == name {
			return &m.Entries[i]
		}
	}
	return nil
}
