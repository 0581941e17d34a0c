package memory

import (
	"bytes"
	"strings"
	"testing"

	"face-augmentor/internal/logger"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTrackAllocationAndRelease(t *testing.T) {
	m := NewManager()
	m.TrackAllocation(1, 100, "a")
	m.TrackAllocation(2, 50, "b")

	alloc, dealloc, used := m.GetStats()
	assert.EqualValues(t, 2, alloc)
	assert.EqualValues(t, 0, dealloc)
	assert.EqualValues(t, 150, used)
	assert.Equal(t, 2, m.GetActiveMatCount())

	m.TrackDeallocation(1)
	m.TrackDeallocation(1)
	m.TrackDeallocation(99)

	alloc, dealloc, used = m.GetStats()
	assert.EqualValues(t, 2, alloc)
	assert.EqualValues(t, 1, dealloc)
	assert.EqualValues(t, 50, used)
	assert.Equal(t, 1, m.GetActiveMatCount())
}

func TestOldestOrdersByAge(t *testing.T) {
	m := NewManager()
	for id := uint64(1); id <= 4; id++ {
		m.TrackAllocation(id, 1, "mat")
	}

	got := m.Oldest(2)
	assert.Len(t, got, 2)
	assert.Less(t, got[0].ID, got[1].ID)
	assert.Len(t, m.Oldest(10), 4)
}

func TestLogStatsWarnsAboveThreshold(t *testing.T) {
	m := NewManager()
	m.TrackAllocation(1, 10, "leaky")

	var buf bytes.Buffer
	m.LogStats(logger.NewZerolog(&buf, zerolog.DebugLevel), 0)
	assert.True(t, strings.Contains(buf.String(), "leaky"))

	buf.Reset()
	m.LogStats(logger.NewZerolog(&buf, zerolog.DebugLevel), 5)
	assert.False(t, strings.Contains(buf.String(), "long-lived"))
}
