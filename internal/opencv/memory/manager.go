// Package memory keeps count of the native OpenCV buffers currently owned
// by safe.Mat values so leaks show up in logs and tests.
package memory

import (
	"sort"
	"sync"
	"time"

	"face-augmentor/internal/logger"
)

// Default receives every allocation made through package safe.
var Default = NewManager()

type Manager struct {
	mu           sync.RWMutex
	usedMemory   int64
	allocCount   int64
	deallocCount int64
	activeMats   map[uint64]*MatInfo
}

type MatInfo struct {
	ID        uint64
	Tag       string
	Size      int64
	Timestamp time.Time
}

func NewManager() *Manager {
	return &Manager{activeMats: make(map[uint64]*MatInfo)}
}

func (m *Manager) TrackAllocation(id uint64, size int64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allocCount++
	m.usedMemory += size
	m.activeMats[id] = &MatInfo{
		ID:        id,
		Tag:       tag,
		Size:      size,
		Timestamp: time.Now(),
	}
}

// TrackDeallocation ignores ids that were never tracked.
func (m *Manager) TrackDeallocation(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.activeMats[id]
	if !ok {
		return
	}
	delete(m.activeMats, id)
	m.usedMemory -= info.Size
	m.deallocCount++
}

func (m *Manager) GetStats() (allocCount, deallocCount int64, usedMemory int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allocCount, m.deallocCount, m.usedMemory
}

func (m *Manager) GetActiveMatCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activeMats)
}

// Oldest returns up to count live Mats, oldest first.
func (m *Manager) Oldest(count int) []MatInfo {
	m.mu.RLock()
	infos := make([]MatInfo, 0, len(m.activeMats))
	for _, info := range m.activeMats {
		infos = append(infos, *info)
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Timestamp.Equal(infos[j].Timestamp) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Timestamp.Before(infos[j].Timestamp)
	})
	if len(infos) > count {
		infos = infos[:count]
	}
	return infos
}

// LogStats writes the counters at debug level and warns about the oldest
// survivors when more than threshold Mats are alive.
func (m *Manager) LogStats(log logger.Logger, threshold int) {
	alloc, dealloc, used := m.GetStats()
	active := m.GetActiveMatCount()

	log.Debug("MemoryManager", "memory statistics", logger.Fields{
		"allocations":   alloc,
		"deallocations": dealloc,
		"used_bytes":    used,
		"active_mats":   active,
	})

	if active <= threshold {
		return
	}
	for _, info := range m.Oldest(5) {
		log.Warning("MemoryManager", "long-lived Mat", logger.Fields{
			"mat_id": info.ID,
			"tag":    info.Tag,
			"size":   info.Size,
			"age":    time.Since(info.Timestamp),
		})
	}
}
